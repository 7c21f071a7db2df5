package combo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
)

type memoryComboRepo struct {
	combos map[int64]Combo
	stocks map[string]int64
	nextID int64
}

func newMemoryComboRepo() *memoryComboRepo {
	return &memoryComboRepo{combos: make(map[int64]Combo), stocks: make(map[string]int64)}
}

func targetKey(target ledger.Target) string {
	return fmt.Sprintf("%s:%d", target.Kind, target.ID)
}

func (r *memoryComboRepo) seedStock(target ledger.Target, qty int64) {
	r.stocks[targetKey(target)] = qty
}

func (r *memoryComboRepo) Get(ctx context.Context, id int64) (Combo, error) {
	c, ok := r.combos[id]
	if !ok {
		return Combo{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryComboRepo) List(ctx context.Context, outletID int64, activeOnly bool) ([]Combo, error) {
	result := []Combo{}
	for _, c := range r.combos {
		if activeOnly && !c.IsActive {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *memoryComboRepo) Create(ctx context.Context, combo Combo) (Combo, error) {
	r.nextID++
	combo.ID = r.nextID
	for i := range combo.Items {
		r.nextID++
		combo.Items[i].ID = r.nextID
		combo.Items[i].ComboID = combo.ID
	}
	r.combos[combo.ID] = combo
	return combo, nil
}

func (r *memoryComboRepo) SetActive(ctx context.Context, id int64, active bool) error {
	c, ok := r.combos[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = active
	r.combos[id] = c
	return nil
}

func (r *memoryComboRepo) GetStock(ctx context.Context, target ledger.Target) (int64, error) {
	qty, ok := r.stocks[targetKey(target)]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return qty, nil
}

func TestMaxQuantityBottleneck(t *testing.T) {
	repo := newMemoryComboRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.seedStock(ledger.ProductTarget(1), 9)
	repo.seedStock(ledger.ProductTarget(2), 10)
	c, err := svc.Create(ctx, CreateInput{Name: "Breakfast Set", Price: 25000, Items: []ItemInput{
		{Target: ledger.ProductTarget(1), Qty: 2},
		{Target: ledger.ProductTarget(2), Qty: 3},
	}})
	require.NoError(t, err)

	maxQty, err := svc.MaxQuantity(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), maxQty)

	ok, err := svc.HasEnoughStock(ctx, c.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasEnoughStock(ctx, c.ID, 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMissingVariantFailsClosed(t *testing.T) {
	repo := newMemoryComboRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.seedStock(ledger.ProductTarget(1), 100)
	c, err := svc.Create(ctx, CreateInput{Name: "Set", Price: 1000, Items: []ItemInput{
		{Target: ledger.ProductTarget(1), Qty: 1},
		{Target: ledger.VariantTarget(77), Qty: 1},
	}})
	require.NoError(t, err)

	maxQty, err := svc.MaxQuantity(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), maxQty)

	ok, err := svc.HasEnoughStock(ctx, c.ID, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSufficiencyMatchesMaxQuantity(t *testing.T) {
	repo := newMemoryComboRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.seedStock(ledger.ProductTarget(1), 7)
	repo.seedStock(ledger.VariantTarget(2), 5)
	c, err := svc.Create(ctx, CreateInput{Name: "Duo", Price: 5000, Items: []ItemInput{
		{Target: ledger.ProductTarget(1), Qty: 1},
		{Target: ledger.VariantTarget(2), Qty: 2},
	}})
	require.NoError(t, err)

	maxQty, err := svc.MaxQuantity(ctx, c.ID)
	require.NoError(t, err)
	for n := int64(1); n <= maxQty+2; n++ {
		ok, err := svc.HasEnoughStock(ctx, c.ID, n)
		require.NoError(t, err)
		require.Equal(t, n <= maxQty, ok, "qty %d", n)
	}
}

func TestNegativeStockClampedToZero(t *testing.T) {
	repo := newMemoryComboRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.seedStock(ledger.ProductTarget(1), -3)
	c, err := svc.Create(ctx, CreateInput{Name: "Solo", Price: 1000, Items: []ItemInput{
		{Target: ledger.ProductTarget(1), Qty: 1},
	}})
	require.NoError(t, err)

	maxQty, err := svc.MaxQuantity(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), maxQty)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryComboRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "", Price: 100, Items: []ItemInput{{Target: ledger.ProductTarget(1), Qty: 1}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "x", Price: 100, Items: nil})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "x", Price: 100, Items: []ItemInput{
		{Target: ledger.ProductTarget(1), Qty: 1},
		{Target: ledger.ProductTarget(1), Qty: 2},
	}})
	require.ErrorIs(t, err, ErrDuplicateItem)

	_, err = svc.Create(ctx, CreateInput{Name: "x", Price: 100, Items: []ItemInput{{Target: ledger.ProductTarget(1), Qty: 0}}})
	require.ErrorIs(t, err, ErrValidation)
}
