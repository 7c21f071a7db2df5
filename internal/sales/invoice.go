package sales

import (
	"context"
	"fmt"
	"time"
)

const invoicePrefix = "INV-"

// SequencePort yields the next per-day invoice sequence atomically.
type SequencePort interface {
	NextInvoiceSeq(ctx context.Context, day string) (int64, error)
}

// InvoiceGenerator produces unique, sortable invoice numbers of the form
// INV-YYYYMMDD#### with a sequence that resets each day.
type InvoiceGenerator struct {
	seq SequencePort
	now func() time.Time
}

// NewInvoiceGenerator builds the generator. now may be nil for wall-clock time.
func NewInvoiceGenerator(seq SequencePort, now func() time.Time) *InvoiceGenerator {
	if now == nil {
		now = time.Now
	}
	return &InvoiceGenerator{seq: seq, now: now}
}

// Generate returns the next invoice number for today.
func (g *InvoiceGenerator) Generate(ctx context.Context) (string, error) {
	day := g.now().Format("20060102")
	seq, err := g.seq.NextInvoiceSeq(ctx, day)
	if err != nil {
		return "", fmt.Errorf("sales: next invoice seq: %w", err)
	}
	if seq > 9999 {
		return "", ErrInvoiceSequenceExhausted
	}
	return fmt.Sprintf("%s%s%04d", invoicePrefix, day, seq), nil
}
