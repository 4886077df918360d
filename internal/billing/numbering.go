package billing

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces collision-resistant, sortable document
// numbers from the current time plus a random suffix. It is a pure
// function of its clock and random source, so tests can pin both.
// Collisions are still possible within the same second; callers must
// treat a duplicate-number failure as retryable.
type NumberGenerator struct {
	now     func() time.Time
	randInt func(n int) int
}

// NewNumberGenerator returns a generator backed by the wall clock and
// the default random source.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, randInt: rand.IntN}
}

// NewNumberGeneratorWith returns a generator with an injected clock and
// random source.
func NewNumberGeneratorWith(now func() time.Time, randInt func(n int) int) *NumberGenerator {
	return &NumberGenerator{now: now, randInt: randInt}
}

// InvoiceNumber formats INV-{YYYYMMDD}-{HHMMSS}-{3-digit-random}.
func (g *NumberGenerator) InvoiceNumber() string {
	return g.number("INV")
}

// QuotationNumber formats QUO-{YYYYMMDD}-{HHMMSS}-{3-digit-random}.
func (g *NumberGenerator) QuotationNumber() string {
	return g.number("QUO")
}

func (g *NumberGenerator) number(prefix string) string {
	t := g.now()
	return fmt.Sprintf("%s-%s-%s-%03d", prefix, t.Format("20060102"), t.Format("150405"), g.randInt(1000))
}
