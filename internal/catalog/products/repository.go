package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapos/lokapos/internal/shared"
)

// ListFilters narrows product listings.
type ListFilters struct {
	OutletID int64
	Search   string
	IsActive *bool
	Page     int
	Limit    int
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetVariant(ctx context.Context, id int64) (Variant, error)
	ListVariants(ctx context.Context, productID int64) ([]Variant, error)
	Create(ctx context.Context, product Product) (Product, error)
	CreateVariant(ctx context.Context, variant Variant) (Variant, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
	ListLowStock(ctx context.Context, outletID int64) ([]LowStockItem, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, price, cost, stock_qty, alert_threshold, is_active, outlet_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	appendCond := func(cond string, value any) {
		argCount++
		query += ` AND ` + cond + `$` + strconv.Itoa(argCount)
		countQuery += ` AND ` + cond + `$` + strconv.Itoa(argCount)
		args = append(args, value)
	}

	if filters.OutletID != 0 {
		appendCond("outlet_id = ", filters.OutletID)
	}
	if filters.Search != "" {
		argCount++
		placeholder := "$" + strconv.Itoa(argCount)
		query += ` AND (name ILIKE ` + placeholder + ` OR code ILIKE ` + placeholder + `)`
		countQuery += ` AND (name ILIKE ` + placeholder + ` OR code ILIKE ` + placeholder + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		appendCond("is_active = ", *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Cost, &p.StockQty, &p.AlertThreshold, &p.IsActive, &p.OutletID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Cost, &p.StockQty, &p.AlertThreshold, &p.IsActive, &p.OutletID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetVariant(ctx context.Context, id int64) (Variant, error) {
	var v Variant
	err := r.db.QueryRow(ctx, `SELECT id, product_id, name, sku, price, cost, stock_qty, alert_threshold, is_active, created_at, updated_at FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.Cost, &v.StockQty, &v.AlertThreshold, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, shared.ErrNotFound
	}
	return v, err
}

func (r *repository) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, name, sku, price, cost, stock_qty, alert_threshold, is_active, created_at, updated_at FROM product_variants WHERE product_id = $1 ORDER BY name ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.Cost, &v.StockQty, &v.AlertThreshold, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products (code, name, price, cost, stock_qty, alert_threshold, is_active, outlet_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		product.Code, product.Name, product.Price, product.Cost, product.StockQty, product.AlertThreshold, product.IsActive, product.OutletID, now, now).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) CreateVariant(ctx context.Context, variant Variant) (Variant, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO product_variants (product_id, name, sku, price, cost, stock_qty, alert_threshold, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		variant.ProductID, variant.Name, variant.SKU, variant.Price, variant.Cost, variant.StockQty, variant.AlertThreshold, variant.IsActive, now, now).Scan(&variant.ID)
	if err != nil {
		return Variant{}, err
	}
	variant.CreatedAt = now
	variant.UpdatedAt = now
	return variant, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET code=$1, name=$2, price=$3, cost=$4, alert_threshold=$5, is_active=$6, updated_at=$7 WHERE id=$8`,
		product.Code, product.Name, product.Price, product.Cost, product.AlertThreshold, product.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active=false, updated_at=$1 WHERE id=$2`, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListLowStock(ctx context.Context, outletID int64) ([]LowStockItem, error) {
	rows, err := r.db.Query(ctx, `
SELECT p.id, 0, p.code, p.name, p.stock_qty, p.alert_threshold, p.outlet_id
FROM products p
WHERE p.is_active AND p.stock_qty <= p.alert_threshold AND ($1 = 0 OR p.outlet_id = $1)
UNION ALL
SELECT v.product_id, v.id, v.sku, v.name, v.stock_qty, v.alert_threshold, p.outlet_id
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.is_active AND v.stock_qty <= v.alert_threshold AND ($1 = 0 OR p.outlet_id = $1)
ORDER BY 5 ASC`, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Code, &item.Name, &item.StockQty, &item.Threshold, &item.OutletID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
