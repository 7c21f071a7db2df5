package jobs

import (
	"context"
	"log/slog"

	"github.com/lokapos/lokapos/internal/sales"
)

// SalesIntegration schedules follow-up work after sale lifecycle events.
// A completed or voided sale changed inventory, so a low-stock scan for the
// outlet is queued.
type SalesIntegration struct {
	client *Client
	logger *slog.Logger
}

// NewSalesIntegration constructs the integration bridge.
func NewSalesIntegration(client *Client, logger *slog.Logger) *SalesIntegration {
	return &SalesIntegration{client: client, logger: logger}
}

// HandleSaleCompleted queues a low-stock scan for the outlet.
func (i *SalesIntegration) HandleSaleCompleted(ctx context.Context, evt sales.SaleCompletedEvent) error {
	if i.client == nil {
		return nil
	}
	if _, err := i.client.EnqueueStockLowScan(ctx, evt.OutletID); err != nil {
		// The sale itself committed; queueing is best effort.
		i.logger.Warn("enqueue low-stock scan",
			slog.String("invoice", evt.InvoiceNumber),
			slog.Any("error", err))
	}
	return nil
}

// HandleSaleVoided queues a low-stock scan; restored stock may clear alerts.
func (i *SalesIntegration) HandleSaleVoided(ctx context.Context, evt sales.SaleVoidedEvent) error {
	if i.client == nil {
		return nil
	}
	if _, err := i.client.EnqueueStockLowScan(ctx, evt.OutletID); err != nil {
		i.logger.Warn("enqueue low-stock scan",
			slog.String("invoice", evt.InvoiceNumber),
			slog.Any("error", err))
	}
	return nil
}

var _ sales.IntegrationHandler = (*SalesIntegration)(nil)
