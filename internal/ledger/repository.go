package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, target Target) (int64, error)
	SetStock(ctx context.Context, target Target, qty int64) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger operations to an existing transaction so
// another module's writes and the stock movements commit atomically.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
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

// ListMovements returns ledger entries matching the filter, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var targetKind any
	var targetID any
	if filter.Target != nil {
		targetKind = string(filter.Target.Kind)
		targetID = filter.Target.ID
	}
	rows, err := r.pool.Query(ctx, `SELECT id, movement_type, target_kind, target_id, quantity, before_qty, after_qty, COALESCE(transaction_id, 0), COALESCE(actor_id, 0), outlet_id, note, created_at
FROM stock_movements
WHERE ($1::text IS NULL OR (target_kind = $1 AND target_id = $2))
  AND ($3 = 0 OR transaction_id = $3)
  AND ($4 = 0 OR outlet_id = $4)
  AND created_at BETWEEN COALESCE(NULLIF($5::timestamptz, '0001-01-01'), '-infinity') AND COALESCE(NULLIF($6::timestamptz, '0001-01-01'), 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $7`, targetKind, targetID, filter.TransactionID, filter.OutletID, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.Type, &kind, &m.Target.ID, &m.Quantity, &m.BeforeQty, &m.AfterQty, &m.TransactionID, &m.ActorID, &m.OutletID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Target.Kind = TargetKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, target Target) (int64, error) {
	var query string
	switch target.Kind {
	case TargetProduct:
		query = `SELECT stock_qty FROM products WHERE id = $1 FOR UPDATE`
	case TargetVariant:
		query = `SELECT stock_qty FROM product_variants WHERE id = $1 FOR UPDATE`
	default:
		return 0, ErrInvalidTarget
	}
	var qty int64
	if err := r.tx.QueryRow(ctx, query, target.ID).Scan(&qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStockHolderNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) SetStock(ctx context.Context, target Target, qty int64) error {
	var query string
	switch target.Kind {
	case TargetProduct:
		query = `UPDATE products SET stock_qty = $1, updated_at = NOW() WHERE id = $2`
	case TargetVariant:
		query = `UPDATE product_variants SET stock_qty = $1, updated_at = NOW() WHERE id = $2`
	default:
		return ErrInvalidTarget
	}
	tag, err := r.tx.Exec(ctx, query, qty, target.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockHolderNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (movement_type, target_kind, target_id, quantity, before_qty, after_qty, transaction_id, actor_id, outlet_id, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NULLIF($8, 0), $9, $10, $11)
RETURNING id`,
		string(movement.Type), string(movement.Target.Kind), movement.Target.ID, movement.Quantity, movement.BeforeQty, movement.AfterQty,
		movement.TransactionID, movement.ActorID, movement.OutletID, movement.Note, movement.CreatedAt).Scan(&id)
	return id, err
}
