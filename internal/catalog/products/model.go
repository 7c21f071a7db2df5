package products

import "time"

// Product represents a sellable product tracked per outlet.
type Product struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	Cost           float64   `json:"cost"`
	StockQty       int64     `json:"stock_qty"`
	AlertThreshold int64     `json:"alert_threshold"`
	IsActive       bool      `json:"is_active"`
	OutletID       int64     `json:"outlet_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Variant is a concrete variation of a product with its own stock.
type Variant struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Price          float64   `json:"price"`
	Cost           float64   `json:"cost"`
	StockQty       int64     `json:"stock_qty"`
	AlertThreshold int64     `json:"alert_threshold"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LowStockItem summarises a stock holder at or below its alert threshold.
type LowStockItem struct {
	ProductID   int64
	VariantID   int64
	Code        string
	Name        string
	StockQty    int64
	Threshold   int64
	OutletID    int64
}
