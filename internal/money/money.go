// Package money provides fixed-point monetary arithmetic for billing
// documents. All amounts are carried as decimals and rounded half-up to
// two places, so copying line items between documents never drifts the
// way float accumulation would.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegative indicates a monetary input below zero.
	ErrNegative = errors.New("money: negative value")
	// ErrInvalid indicates a non-numeric monetary input.
	ErrInvalid = errors.New("money: invalid value")
)

var one = decimal.NewFromInt(1)

// Amount is a monetary value with two decimal places of precision.
// The zero value is usable and equals 0.00.
type Amount struct {
	dec decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// Parse converts a decimal string into an Amount. Negative and
// non-numeric inputs are rejected.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q", ErrNegative, s)
	}
	return Amount{dec: Round2(d)}, nil
}

// FromFloat converts a float into an Amount, rounding to two places.
func FromFloat(f float64) Amount {
	return Amount{dec: Round2(decimal.NewFromFloat(f))}
}

// FromDecimal rounds d to two places and wraps it as an Amount.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{dec: Round2(d)}
}

// Round2 rounds half-up to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes the tax-inclusive total for one line:
// round2(quantity * unitPrice * (1 + taxRate)). The tax rate is a
// fraction, e.g. 0.15 for 15%.
func LineTotal(quantity, unitPrice, taxRate decimal.Decimal) Amount {
	return FromDecimal(quantity.Mul(unitPrice).Mul(one.Add(taxRate)))
}

// Sum adds amounts in fixed point.
func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.dec)
	}
	return Amount{dec: Round2(total)}
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.dec
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{dec: a.dec.Add(b.dec)}
}

// Equal reports whether two amounts are numerically equal.
func (a Amount) Equal(b Amount) bool {
	return a.dec.Equal(b.dec)
}

// IsZero reports whether the amount equals 0.00.
func (a Amount) IsZero() bool {
	return a.dec.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a.dec.IsNegative()
}

// Float64 returns the amount as a float, for display only.
func (a Amount) Float64() float64 {
	f, _ := a.dec.Float64()
	return f
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	return a.dec.StringFixed(2)
}

// MarshalJSON encodes the amount as a plain JSON number with two
// decimal places, matching what API clients expect.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.dec.StringFixed(2)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		a.dec = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	a.dec = Round2(d)
	return nil
}

// Scan implements sql.Scanner for numeric columns.
func (a *Amount) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		a.dec = decimal.Zero
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		a.dec = d
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		a.dec = d
		return nil
	case float64:
		a.dec = decimal.NewFromFloat(v)
		return nil
	case int64:
		a.dec = decimal.NewFromInt(v)
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", value)
	}
}

// Value implements driver.Valuer, encoding as a decimal string.
func (a Amount) Value() (driver.Value, error) {
	return a.dec.StringFixed(2), nil
}

// ValidateQuantity rejects negative or undefined quantities.
func ValidateQuantity(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: quantity %s", ErrNegative, d)
	}
	return nil
}

// ValidateUnitPrice rejects negative unit prices.
func ValidateUnitPrice(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: unit price %s", ErrNegative, d)
	}
	return nil
}

// ValidateTaxRate bounds the tax fraction to [0, 1].
func ValidateTaxRate(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(one) {
		return fmt.Errorf("%w: tax rate %s", ErrInvalid, d)
	}
	return nil
}
