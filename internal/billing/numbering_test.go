package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInvoiceNumberFormat(t *testing.T) {
	clock := fixedClock(time.Date(2025, 3, 10, 14, 30, 5, 0, time.UTC))
	gen := NewNumberGeneratorWith(clock, func(int) int { return 42 })

	assert.Equal(t, "INV-20250310-143005-042", gen.InvoiceNumber())
	assert.Equal(t, "QUO-20250310-143005-042", gen.QuotationNumber())
}

func TestNumberSuffixPadding(t *testing.T) {
	clock := fixedClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	gen := NewNumberGeneratorWith(clock, func(int) int { return 7 })
	assert.Equal(t, "INV-20250102-030405-007", gen.InvoiceNumber())
}

func TestNumbersSortableByTime(t *testing.T) {
	earlier := NewNumberGeneratorWith(fixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)), func(int) int { return 999 })
	later := NewNumberGeneratorWith(fixedClock(time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)), func(int) int { return 0 })

	assert.Less(t, earlier.InvoiceNumber(), later.InvoiceNumber())
}

func TestDefaultGeneratorDistinctSuffixes(t *testing.T) {
	gen := NewNumberGenerator()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[gen.InvoiceNumber()] = true
	}
	// With 1000 suffix values, 50 draws within the same second should
	// produce more than one distinct number.
	assert.Greater(t, len(seen), 1)
}
