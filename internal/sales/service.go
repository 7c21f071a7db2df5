package sales

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lokapos/lokapos/internal/combo"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	GetHolderPricing(ctx context.Context, target ledger.Target) (price, cost float64, err error)
	NextInvoiceSeq(ctx context.Context, day string) (int64, error)
}

// TxRepository bundles write operations that must share one transaction.
// Ledger exposes the same transaction to the stock ledger, so sale rows and
// their movements commit or roll back together.
type TxRepository interface {
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	InsertItem(ctx context.Context, item TransactionItem) (int64, error)
	InsertItemDetail(ctx context.Context, detail ItemDetail) (int64, error)
	UpdateStatus(ctx context.Context, id int64, to Status, voidReason, refundReason string, from ...Status) error
	UpdatePayment(ctx context.Context, id int64, paid, change float64, status Status) error
	Ledger() ledger.TxRepository
}

// LedgerPort exposes the stock ledger; every stock mutation the lifecycle
// performs, including void restoration, goes through it, posted inside the
// sale's own transaction.
type LedgerPort interface {
	PostMovement(ctx context.Context, tx ledger.TxRepository, input ledger.MovementInput) (ledger.Movement, error)
}

// ComboPort exposes combo lookups and availability.
type ComboPort interface {
	Get(ctx context.Context, id int64) (combo.Combo, error)
	MaxQuantity(ctx context.Context, id int64) (int64, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// KeepComboDeductionsOnVoid leaves combo ingredient stock consumed when a
	// sale is voided. The default restores ingredients via the item details.
	KeepComboDeductionsOnVoid bool
}

// Service orchestrates the transaction lifecycle.
type Service struct {
	repo            RepositoryPort
	ledger          LedgerPort
	combos          ComboPort
	invoices        *InvoiceGenerator
	audit           AuditPort
	idempotency     *shared.IdempotencyStore
	integration     IntegrationHandler
	keepComboOnVoid bool
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, combos ComboPort, invoices *InvoiceGenerator, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig, integration IntegrationHandler) *Service {
	return &Service{
		repo:            repo,
		ledger:          ledgerPort,
		combos:          combos,
		invoices:        invoices,
		audit:           audit,
		idempotency:     idem,
		integration:     integration,
		keepComboOnVoid: cfg.KeepComboDeductionsOnVoid,
	}
}

// Get loads one transaction with its items.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	if id <= 0 {
		return Transaction{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	return s.repo.List(ctx, filter)
}

// Create records a sale: items persisted, stock deducted through the ledger,
// combo lines exploded into ingredient details. Deduction happens here,
// synchronously, so a committed transaction always matches the ledger.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transaction, error) {
	if len(input.Lines) == 0 {
		return Transaction{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	if input.CashierID == 0 || input.OutletID == 0 {
		return Transaction{}, fmt.Errorf("%w: cashier and outlet required", ErrValidation)
	}
	if input.DiscountAmount < 0 || input.TaxAmount < 0 || input.ServiceChargeAmount < 0 || input.PaidAmount < 0 {
		return Transaction{}, fmt.Errorf("%w: amounts must be >= 0", ErrValidation)
	}

	items, subtotal, err := s.resolveLines(ctx, input.Lines)
	if err != nil {
		return Transaction{}, err
	}

	txnUUID := input.UUID
	if txnUUID == "" {
		txnUUID = uuid.NewString()
	} else if _, err := uuid.Parse(txnUUID); err != nil {
		return Transaction{}, fmt.Errorf("%w: invalid uuid", ErrValidation)
	}
	invoiceNumber := input.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber, err = s.invoices.Generate(ctx)
		if err != nil {
			return Transaction{}, err
		}
	}

	total := round2(subtotal - input.DiscountAmount + input.TaxAmount + input.ServiceChargeAmount)
	if total < 0 {
		return Transaction{}, fmt.Errorf("%w: discount exceeds subtotal", ErrValidation)
	}
	status := StatusPending
	var change float64
	if input.PaidAmount >= total {
		status = StatusCompleted
		change = round2(input.PaidAmount - total)
	}

	txn := Transaction{
		UUID:                txnUUID,
		InvoiceNumber:       invoiceNumber,
		Status:              status,
		Subtotal:            round2(subtotal),
		DiscountAmount:      input.DiscountAmount,
		TaxAmount:           input.TaxAmount,
		ServiceChargeAmount: input.ServiceChargeAmount,
		TotalAmount:         total,
		FinalAmount:         total,
		PaidAmount:          input.PaidAmount,
		ChangeAmount:        change,
		CashierID:           input.CashierID,
		CustomerID:          input.CustomerID,
		OutletID:            input.OutletID,
		Items:               items,
	}

	key := fmt.Sprintf("TXN:%s", txnUUID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			return Transaction{}, err
		}
		inserted = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txnID, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = txnID
		for i := range txn.Items {
			item := &txn.Items[i]
			item.TransactionID = txnID
			itemID, err := tx.InsertItem(ctx, *item)
			if err != nil {
				return err
			}
			item.ID = itemID
			for j := range item.Details {
				item.Details[j].ItemID = itemID
				detailID, err := tx.InsertItemDetail(ctx, item.Details[j])
				if err != nil {
					return err
				}
				item.Details[j].ID = detailID
			}
			if err := s.deductItem(ctx, tx, txn, *item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		if errors.Is(err, ledger.ErrNegativeStock) {
			return Transaction{}, ErrInsufficientStock
		}
		return Transaction{}, err
	}

	s.recordAudit(ctx, input.CashierID, "TXN_CREATE", txn.ID, map[string]any{"invoice": txn.InvoiceNumber, "final": txn.FinalAmount})
	if s.integration != nil && txn.Status == StatusCompleted {
		evt := SaleCompletedEvent{TransactionID: txn.ID, InvoiceNumber: txn.InvoiceNumber, OutletID: txn.OutletID, FinalAmount: txn.FinalAmount, At: time.Now().UTC()}
		if err := s.integration.HandleSaleCompleted(ctx, evt); err != nil {
			return Transaction{}, err
		}
	}
	return txn, nil
}

// Complete transitions a pending transaction to completed, recording payment.
// No stock effects; deduction already happened at creation.
func (s *Service) Complete(ctx context.Context, id int64, paidAmount float64, actorID int64) (Transaction, error) {
	txn, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status != StatusPending {
		return Transaction{}, ErrInvalidState
	}
	if paidAmount < txn.FinalAmount {
		return Transaction{}, fmt.Errorf("%w: paid amount below final amount", ErrValidation)
	}
	change := round2(paidAmount - txn.FinalAmount)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePayment(ctx, id, paidAmount, change, StatusCompleted)
	})
	if err != nil {
		return Transaction{}, err
	}
	txn.Status = StatusCompleted
	txn.PaidAmount = paidAmount
	txn.ChangeAmount = change
	s.recordAudit(ctx, actorID, "TXN_COMPLETE", id, map[string]any{"invoice": txn.InvoiceNumber, "paid": paidAmount})
	return txn, nil
}

// Void cancels a sale and restores its stock through the ledger. Voided and
// refunded transactions cannot be voided again.
func (s *Service) Void(ctx context.Context, id int64, reason string, actorID int64) (Transaction, error) {
	txn, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status == StatusVoided || txn.Status == StatusRefunded {
		return Transaction{}, ErrInvalidState
	}

	key := fmt.Sprintf("VOID:%s", txn.InvoiceNumber)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales.void"); err != nil {
			return Transaction{}, err
		}
		inserted = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusVoided, reason, "", StatusPending, StatusCompleted); err != nil {
			return err
		}
		for _, item := range txn.Items {
			if err := s.restoreItem(ctx, tx, txn, item, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Transaction{}, err
	}

	txn.Status = StatusVoided
	txn.VoidReason = reason
	s.recordAudit(ctx, actorID, "TXN_VOID", id, map[string]any{"invoice": txn.InvoiceNumber, "reason": reason})
	if s.integration != nil {
		evt := SaleVoidedEvent{TransactionID: id, InvoiceNumber: txn.InvoiceNumber, OutletID: txn.OutletID, At: time.Now().UTC()}
		if err := s.integration.HandleSaleVoided(ctx, evt); err != nil {
			return Transaction{}, err
		}
	}
	return txn, nil
}

// Refund reverses a completed sale financially. Stock is deliberately left
// unchanged; goods are not assumed returned.
func (s *Service) Refund(ctx context.Context, id int64, reason string, actorID int64) (Transaction, error) {
	txn, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status != StatusCompleted {
		return Transaction{}, ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, StatusRefunded, "", reason, StatusCompleted)
	})
	if err != nil {
		return Transaction{}, err
	}
	txn.Status = StatusRefunded
	txn.RefundReason = reason
	s.recordAudit(ctx, actorID, "TXN_REFUND", id, map[string]any{"invoice": txn.InvoiceNumber, "reason": reason})
	return txn, nil
}

func (s *Service) resolveLines(ctx context.Context, lines []LineInput) ([]TransactionItem, float64, error) {
	items := make([]TransactionItem, 0, len(lines))
	var subtotal float64
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, 0, fmt.Errorf("%w: line quantity must be >= 1", ErrValidation)
		}
		if line.DiscountAmount < 0 || line.TaxAmount < 0 {
			return nil, 0, fmt.Errorf("%w: line amounts must be >= 0", ErrValidation)
		}
		switch line.Type {
		case ItemProduct:
			if err := line.Target.Validate(); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			price, cost, err := s.repo.GetHolderPricing(ctx, line.Target)
			if err != nil {
				return nil, 0, err
			}
			item := TransactionItem{
				Type:           ItemProduct,
				Target:         line.Target,
				Quantity:       line.Quantity,
				Price:          price,
				Cost:           cost,
				DiscountAmount: line.DiscountAmount,
				TaxAmount:      line.TaxAmount,
			}
			item.Subtotal = round2(price * float64(line.Quantity))
			item.TotalPrice = round2(item.Subtotal - line.DiscountAmount + line.TaxAmount)
			subtotal += item.Subtotal
			items = append(items, item)
		case ItemCombo:
			if line.ComboID <= 0 {
				return nil, 0, fmt.Errorf("%w: combo required", ErrValidation)
			}
			c, err := s.combos.Get(ctx, line.ComboID)
			if err != nil {
				return nil, 0, err
			}
			if !c.IsActive {
				return nil, 0, fmt.Errorf("%w: combo is inactive", ErrValidation)
			}
			maxQty, err := s.combos.MaxQuantity(ctx, line.ComboID)
			if err != nil {
				return nil, 0, err
			}
			if line.Quantity > maxQty {
				return nil, 0, ErrInsufficientStock
			}
			item := TransactionItem{
				Type:           ItemCombo,
				ComboID:        line.ComboID,
				Quantity:       line.Quantity,
				Price:          c.Price,
				DiscountAmount: line.DiscountAmount,
				TaxAmount:      line.TaxAmount,
			}
			var unitCost float64
			for _, ci := range c.Items {
				_, cost, err := s.repo.GetHolderPricing(ctx, ci.Target)
				if err != nil {
					return nil, 0, err
				}
				unitCost += cost * float64(ci.Qty)
				item.Details = append(item.Details, ItemDetail{
					Target:   ci.Target,
					Quantity: ci.Qty * line.Quantity,
					UnitCost: cost,
				})
			}
			item.Cost = round2(unitCost)
			item.Subtotal = round2(c.Price * float64(line.Quantity))
			item.TotalPrice = round2(item.Subtotal - line.DiscountAmount + line.TaxAmount)
			subtotal += item.Subtotal
			items = append(items, item)
		default:
			return nil, 0, fmt.Errorf("%w: unknown line type %q", ErrValidation, line.Type)
		}
	}
	return items, subtotal, nil
}

func (s *Service) deductItem(ctx context.Context, tx TxRepository, txn Transaction, item TransactionItem) error {
	note := fmt.Sprintf("Sale %s", txn.InvoiceNumber)
	switch item.Type {
	case ItemProduct:
		_, err := s.ledger.PostMovement(ctx, tx.Ledger(), ledger.MovementInput{
			Type:          ledger.MovementOut,
			Target:        item.Target,
			Quantity:      item.Quantity,
			TransactionID: txn.ID,
			ActorID:       txn.CashierID,
			OutletID:      txn.OutletID,
			Note:          note,
		})
		return err
	case ItemCombo:
		for _, detail := range item.Details {
			_, err := s.ledger.PostMovement(ctx, tx.Ledger(), ledger.MovementInput{
				Type:          ledger.MovementOut,
				Target:        detail.Target,
				Quantity:      detail.Quantity,
				TransactionID: txn.ID,
				ActorID:       txn.CashierID,
				OutletID:      txn.OutletID,
				Note:          note,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown item type %q", ErrValidation, item.Type)
}

func (s *Service) restoreItem(ctx context.Context, tx TxRepository, txn Transaction, item TransactionItem, actorID int64) error {
	note := fmt.Sprintf("Void %s", txn.InvoiceNumber)
	switch item.Type {
	case ItemProduct:
		_, err := s.ledger.PostMovement(ctx, tx.Ledger(), ledger.MovementInput{
			Type:          ledger.MovementIn,
			Target:        item.Target,
			Quantity:      item.Quantity,
			TransactionID: txn.ID,
			ActorID:       actorID,
			OutletID:      txn.OutletID,
			Note:          note,
		})
		return err
	case ItemCombo:
		if s.keepComboOnVoid {
			return nil
		}
		for _, detail := range item.Details {
			_, err := s.ledger.PostMovement(ctx, tx.Ledger(), ledger.MovementInput{
				Type:          ledger.MovementIn,
				Target:        detail.Target,
				Quantity:      detail.Quantity,
				TransactionID: txn.ID,
				ActorID:       actorID,
				OutletID:      txn.OutletID,
				Note:          note,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transaction",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
