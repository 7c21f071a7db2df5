package combo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
)

// Repository persists combos in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Combo, error) {
	var c Combo
	err := r.pool.QueryRow(ctx, `SELECT id, name, price, is_active, outlet_id, created_at, updated_at FROM combos WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Price, &c.IsActive, &c.OutletID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Combo{}, ErrNotFound
		}
		return Combo{}, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return Combo{}, err
	}
	c.Items = items
	return c, nil
}

func (r *Repository) List(ctx context.Context, outletID int64, activeOnly bool) ([]Combo, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price, is_active, outlet_id, created_at, updated_at FROM combos
WHERE ($1 = 0 OR outlet_id = $1) AND (NOT $2 OR is_active)
ORDER BY name ASC`, outletID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	combos := []Combo{}
	for rows.Next() {
		var c Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.IsActive, &c.OutletID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		combos = append(combos, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range combos {
		items, err := r.listItems(ctx, combos[i].ID)
		if err != nil {
			return nil, err
		}
		combos[i].Items = items
	}
	return combos, nil
}

func (r *Repository) Create(ctx context.Context, combo Combo) (Combo, error) {
	now := time.Now()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Combo{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO combos (name, price, is_active, outlet_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		combo.Name, combo.Price, combo.IsActive, combo.OutletID, now, now).Scan(&combo.ID)
	if err != nil {
		return Combo{}, err
	}
	for i := range combo.Items {
		item := &combo.Items[i]
		item.ComboID = combo.ID
		var productID, variantID any
		switch item.Target.Kind {
		case ledger.TargetProduct:
			productID = item.Target.ID
		case ledger.TargetVariant:
			variantID = item.Target.ID
		}
		err := tx.QueryRow(ctx, `INSERT INTO combo_items (combo_id, product_id, variant_id, qty) VALUES ($1, $2, $3, $4) RETURNING id`,
			combo.ID, productID, variantID, item.Qty).Scan(&item.ID)
		if err != nil {
			return Combo{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Combo{}, err
	}
	combo.CreatedAt = now
	combo.UpdatedAt = now
	return combo, nil
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE combos SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStock reads the current quantity of a stock holder.
func (r *Repository) GetStock(ctx context.Context, target ledger.Target) (int64, error) {
	var query string
	switch target.Kind {
	case ledger.TargetProduct:
		query = `SELECT stock_qty FROM products WHERE id = $1`
	case ledger.TargetVariant:
		query = `SELECT stock_qty FROM product_variants WHERE id = $1`
	default:
		return 0, ledger.ErrInvalidTarget
	}
	var qty int64
	if err := r.pool.QueryRow(ctx, query, target.ID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (r *Repository) listItems(ctx context.Context, comboID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, combo_id, COALESCE(product_id, 0), COALESCE(variant_id, 0), qty FROM combo_items WHERE combo_id = $1 ORDER BY id ASC`, comboID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		var productID, variantID int64
		if err := rows.Scan(&item.ID, &item.ComboID, &productID, &variantID, &item.Qty); err != nil {
			return nil, err
		}
		if variantID != 0 {
			item.Target = ledger.VariantTarget(variantID)
		} else {
			item.Target = ledger.ProductTarget(productID)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
