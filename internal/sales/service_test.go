package sales

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokapos/lokapos/internal/combo"
	"github.com/lokapos/lokapos/internal/ledger"
)

// memorySalesRepo keeps committed state; every write goes through a staging
// memorySalesTx that is discarded when the callback fails, mirroring the
// rollback semantics of the real repository.
type memorySalesRepo struct {
	transactions map[int64]Transaction
	stocks       map[string]int64
	movements    []ledger.Movement
	pricing      map[string][2]float64
	seqs         map[string]int64
	nextID       int64
	nextItemID   int64
}

func newMemorySalesRepo() *memorySalesRepo {
	return &memorySalesRepo{
		transactions: make(map[int64]Transaction),
		stocks:       make(map[string]int64),
		pricing:      make(map[string][2]float64),
		seqs:         make(map[string]int64),
	}
}

func pricingKey(target ledger.Target) string {
	return fmt.Sprintf("%s:%d", target.Kind, target.ID)
}

func (r *memorySalesRepo) seedPricing(target ledger.Target, price, cost float64) {
	r.pricing[pricingKey(target)] = [2]float64{price, cost}
}

func (r *memorySalesRepo) seedStock(target ledger.Target, qty int64) {
	r.stocks[pricingKey(target)] = qty
}

func (r *memorySalesRepo) stockOf(target ledger.Target) int64 {
	return r.stocks[pricingKey(target)]
}

func (r *memorySalesRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memorySalesTx{
		transactions: make(map[int64]Transaction, len(r.transactions)),
		stocks:       make(map[string]int64, len(r.stocks)),
		nextID:       r.nextID,
		nextItemID:   r.nextItemID,
	}
	for id, txn := range r.transactions {
		tx.transactions[id] = txn
	}
	for key, qty := range r.stocks {
		tx.stocks[key] = qty
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.transactions = tx.transactions
	r.stocks = tx.stocks
	r.movements = append(r.movements, tx.movements...)
	r.nextID = tx.nextID
	r.nextItemID = tx.nextItemID
	return nil
}

func (r *memorySalesRepo) Get(ctx context.Context, id int64) (Transaction, error) {
	txn, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (r *memorySalesRepo) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	var out []Transaction
	for _, txn := range r.transactions {
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		out = append(out, txn)
	}
	return out, len(out), nil
}

func (r *memorySalesRepo) GetHolderPricing(ctx context.Context, target ledger.Target) (float64, float64, error) {
	p, ok := r.pricing[pricingKey(target)]
	if !ok {
		return 0, 0, ErrNotFound
	}
	return p[0], p[1], nil
}

func (r *memorySalesRepo) NextInvoiceSeq(ctx context.Context, day string) (int64, error) {
	r.seqs[day]++
	return r.seqs[day], nil
}

type memorySalesTx struct {
	transactions map[int64]Transaction
	stocks       map[string]int64
	movements    []ledger.Movement
	nextID       int64
	nextItemID   int64
}

func (tx *memorySalesTx) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	tx.nextID++
	txn.ID = tx.nextID
	// store the header only; InsertItem is the sole item writer, mirroring
	// the real repository where items live in their own rows
	txn.Items = nil
	tx.transactions[txn.ID] = txn
	return txn.ID, nil
}

func (tx *memorySalesTx) InsertItem(ctx context.Context, item TransactionItem) (int64, error) {
	tx.nextItemID++
	txn := tx.transactions[item.TransactionID]
	item.ID = tx.nextItemID
	txn.Items = append(txn.Items, item)
	tx.transactions[item.TransactionID] = txn
	return item.ID, nil
}

func (tx *memorySalesTx) InsertItemDetail(ctx context.Context, detail ItemDetail) (int64, error) {
	for id, txn := range tx.transactions {
		for i := range txn.Items {
			if txn.Items[i].ID == detail.ItemID {
				detail.ID = int64(len(txn.Items[i].Details) + 1)
				txn.Items[i].Details = append(txn.Items[i].Details, detail)
				tx.transactions[id] = txn
				return detail.ID, nil
			}
		}
	}
	return 0, ErrNotFound
}

func (tx *memorySalesTx) UpdateStatus(ctx context.Context, id int64, to Status, voidReason, refundReason string, from ...Status) error {
	txn, ok := tx.transactions[id]
	if !ok {
		return ErrNotFound
	}
	matched := false
	for _, s := range from {
		if txn.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidState
	}
	txn.Status = to
	txn.VoidReason = voidReason
	txn.RefundReason = refundReason
	tx.transactions[id] = txn
	return nil
}

func (tx *memorySalesTx) UpdatePayment(ctx context.Context, id int64, paid, change float64, status Status) error {
	txn, ok := tx.transactions[id]
	if !ok {
		return ErrNotFound
	}
	if txn.Status != StatusPending {
		return ErrInvalidState
	}
	txn.PaidAmount = paid
	txn.ChangeAmount = change
	txn.Status = status
	tx.transactions[id] = txn
	return nil
}

func (tx *memorySalesTx) Ledger() ledger.TxRepository {
	return &memoryLedgerTx{tx: tx}
}

// memoryLedgerTx exposes the staged stock map to the real ledger service, so
// its movements roll back together with the sale rows.
type memoryLedgerTx struct {
	tx *memorySalesTx
}

func (l *memoryLedgerTx) GetStockForUpdate(ctx context.Context, target ledger.Target) (int64, error) {
	qty, ok := l.tx.stocks[pricingKey(target)]
	if !ok {
		return 0, ledger.ErrStockHolderNotFound
	}
	return qty, nil
}

func (l *memoryLedgerTx) SetStock(ctx context.Context, target ledger.Target, qty int64) error {
	if _, ok := l.tx.stocks[pricingKey(target)]; !ok {
		return ledger.ErrStockHolderNotFound
	}
	l.tx.stocks[pricingKey(target)] = qty
	return nil
}

func (l *memoryLedgerTx) InsertMovement(ctx context.Context, movement ledger.Movement) (int64, error) {
	movement.ID = int64(len(l.tx.movements) + 1)
	l.tx.movements = append(l.tx.movements, movement)
	return movement.ID, nil
}

type memoryCombos struct {
	combos map[int64]combo.Combo
	maxQty map[int64]int64
}

func (c *memoryCombos) Get(ctx context.Context, id int64) (combo.Combo, error) {
	cb, ok := c.combos[id]
	if !ok {
		return combo.Combo{}, combo.ErrNotFound
	}
	return cb, nil
}

func (c *memoryCombos) MaxQuantity(ctx context.Context, id int64) (int64, error) {
	return c.maxQty[id], nil
}

func newTestService(repo *memorySalesRepo, combos *memoryCombos) *Service {
	invoices := NewInvoiceGenerator(repo, nil)
	stockLedger := ledger.NewService(nil, nil, nil, ledger.ServiceConfig{})
	return NewService(repo, stockLedger, combos, invoices, nil, nil, ServiceConfig{}, nil)
}

func TestCreateDeductsStockAndCompletes(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 25000, 12000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  7,
		OutletID:   1,
		PaidAmount: 100000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, txn.Status)
	require.Equal(t, 75000.0, txn.Subtotal)
	require.Equal(t, 75000.0, txn.FinalAmount)
	require.Equal(t, 25000.0, txn.ChangeAmount)
	require.Equal(t, int64(7), repo.stockOf(target))
	require.Len(t, repo.movements, 1)
	require.Equal(t, ledger.MovementOut, repo.movements[0].Type)
	require.Equal(t, int64(10), repo.movements[0].BeforeQty)
	require.Equal(t, int64(7), repo.movements[0].AfterQty)
	require.NotEmpty(t, txn.UUID)
	require.NotEmpty(t, txn.InvoiceNumber)
}

func TestCreateInsufficientStock(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 10000, 4000)
	repo.seedStock(target, 2)
	svc := newTestService(repo, &memoryCombos{})

	_, err := svc.Create(context.Background(), CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 50000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 5}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	// nothing persisted on failure
	require.Empty(t, repo.transactions)
	require.Equal(t, int64(2), repo.stockOf(target))
}

func TestCreateSecondLineFailureRollsBackFirst(t *testing.T) {
	repo := newMemorySalesRepo()
	kopi := ledger.ProductTarget(1)
	gula := ledger.ProductTarget(2)
	repo.seedPricing(kopi, 25000, 12000)
	repo.seedPricing(gula, 8000, 3000)
	repo.seedStock(kopi, 10)
	repo.seedStock(gula, 1)
	svc := newTestService(repo, &memoryCombos{})

	_, err := svc.Create(context.Background(), CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 200000,
		Lines: []LineInput{
			{Type: ItemProduct, Target: kopi, Quantity: 3},
			{Type: ItemProduct, Target: gula, Quantity: 5},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	// the first line's deduction rolls back with the transaction row
	require.Equal(t, int64(10), repo.stockOf(kopi))
	require.Equal(t, int64(1), repo.stockOf(gula))
	require.Empty(t, repo.movements)
	require.Empty(t, repo.transactions)
}

func TestCreateComboExplodesDetails(t *testing.T) {
	repo := newMemorySalesRepo()
	burger := ledger.ProductTarget(1)
	fries := ledger.VariantTarget(2)
	repo.seedPricing(burger, 20000, 9000)
	repo.seedPricing(fries, 8000, 3000)
	repo.seedStock(burger, 9)
	repo.seedStock(fries, 10)
	combos := &memoryCombos{
		combos: map[int64]combo.Combo{
			5: {ID: 5, Name: "Meal", Price: 30000, IsActive: true, Items: []combo.Item{
				{Target: burger, Qty: 2},
				{Target: fries, Qty: 3},
			}},
		},
		maxQty: map[int64]int64{5: 3},
	}
	svc := newTestService(repo, combos)

	txn, err := svc.Create(context.Background(), CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 60000,
		Lines:      []LineInput{{Type: ItemCombo, ComboID: 5, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, txn.Items, 1)
	item := txn.Items[0]
	require.Equal(t, ItemCombo, item.Type)
	require.Len(t, item.Details, 2)
	require.Equal(t, int64(4), item.Details[0].Quantity)
	require.Equal(t, int64(6), item.Details[1].Quantity)
	require.Equal(t, int64(5), repo.stockOf(burger))
	require.Equal(t, int64(4), repo.stockOf(fries))
	// per-unit combo cost = sum of constituent costs
	require.Equal(t, 27000.0, item.Cost)
}

func TestCreateComboBeyondAvailability(t *testing.T) {
	repo := newMemorySalesRepo()
	combos := &memoryCombos{
		combos: map[int64]combo.Combo{5: {ID: 5, Price: 10000, IsActive: true}},
		maxQty: map[int64]int64{5: 3},
	}
	svc := newTestService(repo, combos)

	_, err := svc.Create(context.Background(), CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 40000,
		Lines:      []LineInput{{Type: ItemCombo, ComboID: 5, Quantity: 4}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestVoidRestoresStock(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 5000, 2000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 20000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), repo.stockOf(target))

	voided, err := svc.Void(ctx, txn.ID, "wrong order", 9)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)
	require.True(t, voided.IsVoid())
	require.Equal(t, int64(10), repo.stockOf(target))
	require.Equal(t, ledger.MovementIn, repo.movements[len(repo.movements)-1].Type)
}

func TestVoidTwiceRejected(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 5000, 2000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 5000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Void(ctx, txn.ID, "first", 9)
	require.NoError(t, err)
	_, err = svc.Void(ctx, txn.ID, "second", 9)
	require.ErrorIs(t, err, ErrInvalidState)
	// stock restored exactly once
	require.Equal(t, int64(10), repo.stockOf(target))
}

func TestVoidRetryAfterFailureRestoresOnce(t *testing.T) {
	repo := newMemorySalesRepo()
	kopi := ledger.ProductTarget(1)
	gula := ledger.ProductTarget(2)
	repo.seedPricing(kopi, 5000, 2000)
	repo.seedPricing(gula, 3000, 1000)
	repo.seedStock(kopi, 10)
	repo.seedStock(gula, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 50000,
		Lines: []LineInput{
			{Type: ItemProduct, Target: kopi, Quantity: 3},
			{Type: ItemProduct, Target: gula, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), repo.stockOf(kopi))
	require.Equal(t, int64(8), repo.stockOf(gula))

	// second restoration fails: the whole void must roll back, including the
	// first item's restoration and the status write
	delete(repo.stocks, pricingKey(gula))
	_, err = svc.Void(ctx, txn.ID, "failed attempt", 9)
	require.ErrorIs(t, err, ledger.ErrStockHolderNotFound)
	require.Equal(t, int64(7), repo.stockOf(kopi))
	stored, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)

	repo.seedStock(gula, 8)
	voided, err := svc.Void(ctx, txn.ID, "retry", 9)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)
	// each item restored exactly once across the failed and retried void
	require.Equal(t, int64(10), repo.stockOf(kopi))
	require.Equal(t, int64(10), repo.stockOf(gula))
}

func TestRefundRequiresCompletedAndKeepsStock(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 5000, 2000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 10000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, txn.Status)

	refunded, err := svc.Refund(ctx, txn.ID, "customer complaint", 9)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)
	require.True(t, refunded.IsRefund())
	require.Equal(t, int64(8), repo.stockOf(target))

	_, err = svc.Refund(ctx, txn.ID, "again", 9)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestVoidAfterRefundRejected(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 5000, 2000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 5000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Refund(ctx, txn.ID, "complaint", 9)
	require.NoError(t, err)
	_, err = svc.Void(ctx, txn.ID, "too late", 9)
	require.ErrorIs(t, err, ErrInvalidState)
}

// staleGetRepo serves a stale snapshot from Get while writes hit the live
// store, reproducing a void that loses the race with a concurrent refund.
type staleGetRepo struct {
	*memorySalesRepo
	stale Transaction
}

func (r *staleGetRepo) Get(ctx context.Context, id int64) (Transaction, error) {
	return r.stale, nil
}

func TestVoidLosingRaceWithRefundRejected(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 5000, 2000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID:  1,
		OutletID:   1,
		PaidAmount: 10000,
		Lines:      []LineInput{{Type: ItemProduct, Target: target, Quantity: 2}},
	})
	require.NoError(t, err)
	snapshot, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, snapshot.Status)

	_, err = svc.Refund(ctx, txn.ID, "complaint", 9)
	require.NoError(t, err)

	// the racing void still sees the completed snapshot; the conditional
	// status write must reject it and leave stock untouched
	stale := &staleGetRepo{memorySalesRepo: repo, stale: snapshot}
	raceSvc := NewService(stale, ledger.NewService(nil, nil, nil, ledger.ServiceConfig{}), &memoryCombos{}, NewInvoiceGenerator(repo, nil), nil, nil, ServiceConfig{}, nil)
	_, err = raceSvc.Void(ctx, txn.ID, "too late", 9)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, int64(8), repo.stockOf(target))
	stored, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, stored.Status)
}

func TestPendingThenComplete(t *testing.T) {
	repo := newMemorySalesRepo()
	target := ledger.ProductTarget(1)
	repo.seedPricing(target, 10000, 4000)
	repo.seedStock(target, 10)
	svc := newTestService(repo, &memoryCombos{})
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateInput{
		CashierID: 1,
		OutletID:  1,
		Lines:     []LineInput{{Type: ItemProduct, Target: target, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, txn.Status)
	// stock is held from creation even while payment is pending
	require.Equal(t, int64(8), repo.stockOf(target))

	_, err = svc.Complete(ctx, txn.ID, 15000, 1)
	require.ErrorIs(t, err, ErrValidation)

	done, err := svc.Complete(ctx, txn.ID, 25000, 1)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, 5000.0, done.ChangeAmount)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemorySalesRepo(), &memoryCombos{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CashierID: 1, OutletID: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		OutletID: 1,
		Lines:    []LineInput{{Type: ItemProduct, Target: ledger.ProductTarget(1), Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		CashierID: 1, OutletID: 1,
		Lines: []LineInput{{Type: ItemProduct, Target: ledger.ProductTarget(1), Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		CashierID: 1, OutletID: 1,
		Lines: []LineInput{{Type: "GIFT", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}
