package sales

import (
	"context"
	"time"
)

// SaleCompletedEvent is emitted after a sale is persisted and stock deducted.
type SaleCompletedEvent struct {
	TransactionID int64
	InvoiceNumber string
	OutletID      int64
	FinalAmount   float64
	At            time.Time
}

// SaleVoidedEvent is emitted after a void restored stock.
type SaleVoidedEvent struct {
	TransactionID int64
	InvoiceNumber string
	OutletID      int64
	At            time.Time
}

// IntegrationHandler receives sale lifecycle events, e.g. to schedule
// low-stock scans after inventory changed.
type IntegrationHandler interface {
	HandleSaleCompleted(ctx context.Context, evt SaleCompletedEvent) error
	HandleSaleVoided(ctx context.Context, evt SaleVoidedEvent) error
}
