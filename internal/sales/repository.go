package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
)

// Repository persists transactions in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires the repository to a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get loads one transaction including its items and combo details.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	const query = `
        SELECT id, uuid, invoice_number, status, subtotal, discount_amount, tax_amount,
               service_charge_amount, total_amount, final_amount, paid_amount, change_amount,
               COALESCE(void_reason, ''), COALESCE(refund_reason, ''),
               cashier_id, COALESCE(customer_id, 0), outlet_id, created_at, updated_at
        FROM transactions
        WHERE id = $1`
	var txn Transaction
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&txn.ID, &txn.UUID, &txn.InvoiceNumber, &txn.Status, &txn.Subtotal, &txn.DiscountAmount,
		&txn.TaxAmount, &txn.ServiceChargeAmount, &txn.TotalAmount, &txn.FinalAmount,
		&txn.PaidAmount, &txn.ChangeAmount, &txn.VoidReason, &txn.RefundReason,
		&txn.CashierID, &txn.CustomerID, &txn.OutletID, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	items, err := r.loadItems(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	txn.Items = items
	return txn, nil
}

// List returns transactions matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.OutletID > 0 {
		args = append(args, filter.OutletID)
		where = append(where, "outlet_id = $"+strconv.Itoa(len(args)))
	}
	if filter.CashierID > 0 {
		args = append(args, filter.CashierID)
		where = append(where, "cashier_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, "created_at < $"+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`
        SELECT id, uuid, invoice_number, status, subtotal, discount_amount, tax_amount,
               service_charge_amount, total_amount, final_amount, paid_amount, change_amount,
               COALESCE(void_reason, ''), COALESCE(refund_reason, ''),
               cashier_id, COALESCE(customer_id, 0), outlet_id, created_at, updated_at
        FROM transactions
        WHERE %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(
			&txn.ID, &txn.UUID, &txn.InvoiceNumber, &txn.Status, &txn.Subtotal, &txn.DiscountAmount,
			&txn.TaxAmount, &txn.ServiceChargeAmount, &txn.TotalAmount, &txn.FinalAmount,
			&txn.PaidAmount, &txn.ChangeAmount, &txn.VoidReason, &txn.RefundReason,
			&txn.CashierID, &txn.CustomerID, &txn.OutletID, &txn.CreatedAt, &txn.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, txn)
	}
	return out, total, rows.Err()
}

// GetHolderPricing reads the current price and cost of a product or variant.
func (r *Repository) GetHolderPricing(ctx context.Context, target ledger.Target) (float64, float64, error) {
	var query string
	switch target.Kind {
	case ledger.TargetProduct:
		query = `SELECT price, cost FROM products WHERE id = $1 AND is_active`
	case ledger.TargetVariant:
		query = `SELECT price, cost FROM product_variants WHERE id = $1 AND is_active`
	default:
		return 0, 0, ledger.ErrInvalidTarget
	}
	var price, cost float64
	if err := r.pool.QueryRow(ctx, query, target.ID).Scan(&price, &cost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, shared.ErrNotFound
		}
		return 0, 0, err
	}
	return price, cost, nil
}

// NextInvoiceSeq increments and returns the invoice counter for the day.
// The upsert makes the read-increment atomic under concurrent sales.
func (r *Repository) NextInvoiceSeq(ctx context.Context, day string) (int64, error) {
	const query = `
        INSERT INTO invoice_counters (day, seq)
        VALUES ($1, 1)
        ON CONFLICT (day) DO UPDATE SET seq = invoice_counters.seq + 1
        RETURNING seq`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, day).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *Repository) loadItems(ctx context.Context, txnID int64) ([]TransactionItem, error) {
	const query = `
        SELECT id, item_type, COALESCE(product_id, 0), COALESCE(variant_id, 0), COALESCE(combo_id, 0),
               quantity, price, cost, discount_amount, tax_amount, subtotal, total_price
        FROM transaction_items
        WHERE transaction_id = $1
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionItem
	for rows.Next() {
		var (
			item                 TransactionItem
			productID, variantID int64
		)
		if err := rows.Scan(
			&item.ID, &item.Type, &productID, &variantID, &item.ComboID,
			&item.Quantity, &item.Price, &item.Cost, &item.DiscountAmount,
			&item.TaxAmount, &item.Subtotal, &item.TotalPrice,
		); err != nil {
			return nil, err
		}
		item.TransactionID = txnID
		item.Target = targetFromColumns(productID, variantID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Type != ItemCombo {
			continue
		}
		details, err := r.loadDetails(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Details = details
	}
	return items, nil
}

func (r *Repository) loadDetails(ctx context.Context, itemID int64) ([]ItemDetail, error) {
	const query = `
        SELECT id, COALESCE(product_id, 0), COALESCE(variant_id, 0), quantity, unit_cost
        FROM transaction_item_details
        WHERE transaction_item_id = $1
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []ItemDetail
	for rows.Next() {
		var (
			detail               ItemDetail
			productID, variantID int64
		)
		if err := rows.Scan(&detail.ID, &productID, &variantID, &detail.Quantity, &detail.UnitCost); err != nil {
			return nil, err
		}
		detail.ItemID = itemID
		detail.Target = targetFromColumns(productID, variantID)
		details = append(details, detail)
	}
	return details, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	const query = `
        INSERT INTO transactions (
            uuid, invoice_number, status, subtotal, discount_amount, tax_amount,
            service_charge_amount, total_amount, final_amount, paid_amount, change_amount,
            is_void, is_refund, cashier_id, customer_id, outlet_id
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, 0), $16)
        RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		txn.UUID, txn.InvoiceNumber, string(txn.Status), txn.Subtotal, txn.DiscountAmount,
		txn.TaxAmount, txn.ServiceChargeAmount, txn.TotalAmount, txn.FinalAmount,
		txn.PaidAmount, txn.ChangeAmount, txn.IsVoid(), txn.IsRefund(),
		txn.CashierID, txn.CustomerID, txn.OutletID,
	).Scan(&id)
	return id, err
}

func (t *txRepository) InsertItem(ctx context.Context, item TransactionItem) (int64, error) {
	const query = `
        INSERT INTO transaction_items (
            transaction_id, item_type, product_id, variant_id, combo_id,
            quantity, price, cost, discount_amount, tax_amount, subtotal, total_price
        ) VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), NULLIF($5, 0), $6, $7, $8, $9, $10, $11, $12)
        RETURNING id`
	productID, variantID := targetColumns(item.Target)
	var id int64
	err := t.tx.QueryRow(ctx, query,
		item.TransactionID, string(item.Type), productID, variantID, item.ComboID,
		item.Quantity, item.Price, item.Cost, item.DiscountAmount, item.TaxAmount,
		item.Subtotal, item.TotalPrice,
	).Scan(&id)
	return id, err
}

func (t *txRepository) InsertItemDetail(ctx context.Context, detail ItemDetail) (int64, error) {
	const query = `
        INSERT INTO transaction_item_details (transaction_item_id, product_id, variant_id, quantity, unit_cost)
        VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5)
        RETURNING id`
	productID, variantID := targetColumns(detail.Target)
	var id int64
	err := t.tx.QueryRow(ctx, query, detail.ItemID, productID, variantID, detail.Quantity, detail.UnitCost).Scan(&id)
	return id, err
}

// UpdateStatus writes the status and keeps the derived void/refund flags and
// reasons in lockstep with it. The row is only touched while its current
// status is one of from, so a transition that lost a race with a concurrent
// void or refund fails instead of overwriting a terminal state.
func (t *txRepository) UpdateStatus(ctx context.Context, id int64, to Status, voidReason, refundReason string, from ...Status) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	const query = `
        UPDATE transactions
        SET status = $2,
            is_void = $3,
            is_refund = $4,
            void_reason = NULLIF($5, ''),
            refund_reason = NULLIF($6, ''),
            updated_at = NOW()
        WHERE id = $1 AND status = ANY($7)`
	tag, err := t.tx.Exec(ctx, query, id, string(to),
		to == StatusVoided, to == StatusRefunded, voidReason, refundReason, allowed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (t *txRepository) UpdatePayment(ctx context.Context, id int64, paid, change float64, status Status) error {
	const query = `
        UPDATE transactions
        SET paid_amount = $2, change_amount = $3, status = $4, updated_at = NOW()
        WHERE id = $1 AND status = $5`
	tag, err := t.tx.Exec(ctx, query, id, paid, change, string(status), string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Ledger rebinds the stock ledger to this transaction; sale rows and their
// movements commit together.
func (t *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(t.tx)
}

func targetColumns(target ledger.Target) (productID, variantID int64) {
	switch target.Kind {
	case ledger.TargetProduct:
		return target.ID, 0
	case ledger.TargetVariant:
		return 0, target.ID
	}
	return 0, 0
}

func targetFromColumns(productID, variantID int64) ledger.Target {
	if variantID > 0 {
		return ledger.VariantTarget(variantID)
	}
	if productID > 0 {
		return ledger.ProductTarget(productID)
	}
	return ledger.Target{}
}
