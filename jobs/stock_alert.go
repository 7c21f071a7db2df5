package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lokapos/lokapos/internal/catalog/products"
)

// EmailEnqueuer forwards an email payload into the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockLister exposes the catalog low-stock query.
type LowStockLister interface {
	ListLowStock(ctx context.Context, outletID int64) ([]products.LowStockItem, error)
}

// StockAlertJob notifies back-office staff when stock hits alert thresholds.
type StockAlertJob struct {
	catalog   LowStockLister
	mailer    EmailEnqueuer
	recipient string
	logger    *slog.Logger
	printer   *message.Printer
}

// NewStockAlertJob constructs the job.
func NewStockAlertJob(catalog LowStockLister, mailer EmailEnqueuer, recipient string, logger *slog.Logger) *StockAlertJob {
	return &StockAlertJob{
		catalog:   catalog,
		mailer:    mailer,
		recipient: recipient,
		logger:    logger,
		printer:   message.NewPrinter(language.Indonesian),
	}
}

// Handle processes TaskStockLowScan tasks.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockLowScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	items, err := j.catalog.ListLowStock(ctx, payload.OutletID)
	if err != nil {
		return fmt.Errorf("jobs: list low stock: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	j.logger.Info("low stock detected",
		slog.Int64("outlet_id", payload.OutletID),
		slog.Int("items", len(items)))
	if j.mailer == nil || j.recipient == "" {
		return nil
	}
	_, err = j.mailer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.recipient,
		Subject: j.printer.Sprintf("Peringatan stok menipis (%d item)", len(items)),
		Body:    j.renderBody(items),
	})
	return err
}

func (j *StockAlertJob) renderBody(items []products.LowStockItem) string {
	var b strings.Builder
	b.WriteString("Stok berikut berada di bawah ambang peringatan:\n\n")
	for _, item := range items {
		line := j.printer.Sprintf("- [%s] %s: sisa %d (ambang %d)\n",
			item.Code, item.Name, item.StockQty, item.Threshold)
		b.WriteString(line)
	}
	return b.String()
}
