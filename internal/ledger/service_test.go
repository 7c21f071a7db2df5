package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	stocks    map[string]int64
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stocks: make(map[string]int64)}
}

func stockKey(target Target) string {
	return fmt.Sprintf("%s:%d", target.Kind, target.ID)
}

func (r *memoryRepo) seed(target Target, qty int64) {
	r.stocks[stockKey(target)] = qty
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	return fn(ctx, tx)
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, target Target) (int64, error) {
	qty, ok := tx.repo.stocks[stockKey(target)]
	if !ok {
		return 0, ErrStockHolderNotFound
	}
	return qty, nil
}

func (tx *memoryTx) SetStock(ctx context.Context, target Target, qty int64) error {
	key := stockKey(target)
	if _, ok := tx.repo.stocks[key]; !ok {
		return ErrStockHolderNotFound
	}
	tx.repo.stocks[key] = qty
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement.ID, nil
}

func TestOutMovementSnapshots(t *testing.T) {
	repo := newMemoryRepo()
	target := ProductTarget(1)
	repo.seed(target, 10)
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	m, err := svc.CreateMovement(ctx, MovementInput{Type: MovementOut, Target: target, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, int64(10), m.BeforeQty)
	require.Equal(t, int64(7), m.AfterQty)
	require.Equal(t, MovementOut, m.Type)
	require.Equal(t, int64(7), repo.stocks[stockKey(target)])
}

func TestInAndAdjustment(t *testing.T) {
	repo := newMemoryRepo()
	target := VariantTarget(9)
	repo.seed(target, 2)
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	m, err := svc.CreateMovement(ctx, MovementInput{Type: MovementIn, Target: target, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, int64(2), m.BeforeQty)
	require.Equal(t, int64(7), m.AfterQty)

	m, err = svc.CreateMovement(ctx, MovementInput{Type: MovementAdjustment, Target: target, Quantity: 20})
	require.NoError(t, err)
	require.Equal(t, int64(7), m.BeforeQty)
	require.Equal(t, int64(20), m.AfterQty)
	require.Equal(t, int64(20), repo.stocks[stockKey(target)])
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	target := ProductTarget(1)
	repo.seed(target, 4)
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateMovement(ctx, MovementInput{Type: MovementOut, Target: target, Quantity: 5})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Equal(t, int64(4), repo.stocks[stockKey(target)])
	require.Empty(t, repo.movements)
}

func TestNegativeStockAllowed(t *testing.T) {
	repo := newMemoryRepo()
	target := ProductTarget(1)
	repo.seed(target, 4)
	svc := NewService(repo, nil, nil, ServiceConfig{AllowNegativeStock: true})
	ctx := context.Background()

	m, err := svc.CreateMovement(ctx, MovementInput{Type: MovementOut, Target: target, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, int64(-1), m.AfterQty)
}

func TestInvalidInputs(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateMovement(ctx, MovementInput{Type: MovementIn, Target: ProductTarget(0), Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.CreateMovement(ctx, MovementInput{Type: MovementIn, Target: ProductTarget(1), Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateMovement(ctx, MovementInput{Type: "TRANSFER", Target: ProductTarget(1), Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.CreateMovement(ctx, MovementInput{Type: MovementOut, Target: ProductTarget(404), Quantity: 1})
	require.ErrorIs(t, err, ErrStockHolderNotFound)
}

func TestMovementRecordsAreAppendOnly(t *testing.T) {
	repo := newMemoryRepo()
	target := ProductTarget(1)
	repo.seed(target, 100)
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateMovement(ctx, MovementInput{Type: MovementOut, Target: target, Quantity: 10})
		require.NoError(t, err)
	}
	movements, err := svc.ListMovements(ctx, MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movements, 3)
	require.Equal(t, int64(100), movements[0].BeforeQty)
	require.Equal(t, int64(70), movements[2].AfterQty)
}
