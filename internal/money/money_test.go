package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParse(t *testing.T) {
	a, err := Parse("123.456")
	require.NoError(t, err)
	assert.Equal(t, "123.46", a.String())

	_, err = Parse("-1.00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegative)

	_, err = Parse("abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRound2HalfUp(t *testing.T) {
	assert.Equal(t, "0.01", Round2(dec("0.005")).StringFixed(2))
	assert.Equal(t, "1.24", Round2(dec("1.235")).StringFixed(2))
	assert.Equal(t, "1.23", Round2(dec("1.234")).StringFixed(2))
}

func TestLineTotalTaxInclusive(t *testing.T) {
	// quantity=2, unit_price=100.00, tax_rate=0.15 -> 230.00
	total := LineTotal(dec("2"), dec("100.00"), dec("0.15"))
	assert.Equal(t, "230.00", total.String())

	// quantity=1, unit_price=500, tax_rate=0.15 -> 575.00
	total = LineTotal(dec("1"), dec("500"), dec("0.15"))
	assert.Equal(t, "575.00", total.String())
}

func TestSumFixedPoint(t *testing.T) {
	a := LineTotal(dec("2"), dec("100.00"), dec("0.15"))
	b := LineTotal(dec("2"), dec("100.00"), dec("0.15"))
	assert.Equal(t, "460.00", Sum(a, b).String())

	// Repeated 0.10 additions must not drift.
	tenth, err := Parse("0.10")
	require.NoError(t, err)
	total := Zero()
	for i := 0; i < 100; i++ {
		total = total.Add(tenth)
	}
	assert.Equal(t, "10.00", total.String())
}

func TestAmountJSON(t *testing.T) {
	a, err := Parse("575.00")
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, "575.00", string(data))

	var back Amount
	require.NoError(t, json.Unmarshal([]byte("230.5"), &back))
	assert.Equal(t, "230.50", back.String())

	require.NoError(t, json.Unmarshal([]byte(`"42.10"`), &back))
	assert.Equal(t, "42.10", back.String())
}

func TestAmountScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("12.34"))
	assert.Equal(t, "12.34", a.String())

	require.NoError(t, a.Scan([]byte("0.05")))
	assert.Equal(t, "0.05", a.String())

	require.Error(t, a.Scan(struct{}{}))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateQuantity(dec("0")))
	assert.Error(t, ValidateQuantity(dec("-1")))
	assert.NoError(t, ValidateUnitPrice(dec("19.99")))
	assert.Error(t, ValidateUnitPrice(dec("-0.01")))
	assert.NoError(t, ValidateTaxRate(dec("0.15")))
	assert.Error(t, ValidateTaxRate(dec("1.5")))
	assert.Error(t, ValidateTaxRate(dec("-0.1")))
}
