package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySeq struct {
	seqs map[string]int64
}

func (s *memorySeq) NextInvoiceSeq(ctx context.Context, day string) (int64, error) {
	if s.seqs == nil {
		s.seqs = make(map[string]int64)
	}
	s.seqs[day]++
	return s.seqs[day], nil
}

func TestInvoiceFormat(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	}
	gen := NewInvoiceGenerator(&memorySeq{}, clock)
	ctx := context.Background()

	first, err := gen.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, "INV-202503140001", first)

	second, err := gen.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, "INV-202503140002", second)
}

func TestInvoiceSequenceResetsPerDay(t *testing.T) {
	day := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	gen := NewInvoiceGenerator(&memorySeq{}, func() time.Time { return day })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(ctx)
		require.NoError(t, err)
	}

	day = time.Date(2025, 3, 15, 0, 1, 0, 0, time.UTC)
	next, err := gen.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, "INV-202503150001", next)
}

func TestInvoiceSequenceExhausted(t *testing.T) {
	seq := &memorySeq{seqs: map[string]int64{"20250314": 9999}}
	gen := NewInvoiceGenerator(seq, func() time.Time {
		return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	})

	_, err := gen.Generate(context.Background())
	require.ErrorIs(t, err, ErrInvoiceSequenceExhausted)
}
