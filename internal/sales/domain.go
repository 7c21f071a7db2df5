package sales

import (
	"errors"
	"time"

	"github.com/lokapos/lokapos/internal/ledger"
)

// Status is the single source of truth for a transaction's lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusVoided    Status = "VOIDED"
	StatusRefunded  Status = "REFUNDED"
)

// ItemType discriminates transaction line items.
type ItemType string

const (
	ItemProduct ItemType = "PRODUCT"
	ItemCombo   ItemType = "COMBO"
)

// Transaction models one sale. The voided/refunded flags exposed to readers
// are derived from Status; they are never set independently.
type Transaction struct {
	ID                  int64             `json:"id"`
	UUID                string            `json:"uuid"`
	InvoiceNumber       string            `json:"invoice_number"`
	Status              Status            `json:"status"`
	Subtotal            float64           `json:"subtotal"`
	DiscountAmount      float64           `json:"discount_amount"`
	TaxAmount           float64           `json:"tax_amount"`
	ServiceChargeAmount float64           `json:"service_charge_amount"`
	TotalAmount         float64           `json:"total_amount"`
	FinalAmount         float64           `json:"final_amount"`
	PaidAmount          float64           `json:"paid_amount"`
	ChangeAmount        float64           `json:"change_amount"`
	VoidReason          string            `json:"void_reason,omitempty"`
	RefundReason        string            `json:"refund_reason,omitempty"`
	CashierID           int64             `json:"cashier_id"`
	CustomerID          int64             `json:"customer_id,omitempty"`
	OutletID            int64             `json:"outlet_id"`
	Items               []TransactionItem `json:"items,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsVoid reports whether the transaction has been voided.
func (t Transaction) IsVoid() bool { return t.Status == StatusVoided }

// IsRefund reports whether the transaction has been refunded.
func (t Transaction) IsRefund() bool { return t.Status == StatusRefunded }

// TransactionItem is one sale line: a product/variant or a combo.
type TransactionItem struct {
	ID             int64         `json:"id"`
	TransactionID  int64         `json:"transaction_id"`
	Type           ItemType      `json:"type"`
	Target         ledger.Target `json:"target,omitempty"`
	ComboID        int64         `json:"combo_id,omitempty"`
	Quantity       int64         `json:"quantity"`
	Price          float64       `json:"price"`
	Cost           float64       `json:"cost"`
	DiscountAmount float64       `json:"discount_amount"`
	TaxAmount      float64       `json:"tax_amount"`
	Subtotal       float64       `json:"subtotal"`
	TotalPrice     float64       `json:"total_price"`
	Details        []ItemDetail  `json:"details,omitempty"`
}

// ItemDetail records one constituent actually deducted for a combo line.
// It is the audit trail of what the combo cost in underlying inventory.
type ItemDetail struct {
	ID       int64         `json:"id"`
	ItemID   int64         `json:"item_id"`
	Target   ledger.Target `json:"target"`
	Quantity int64         `json:"quantity"`
	UnitCost float64       `json:"unit_cost"`
}

// CreateInput describes a sale to record.
type CreateInput struct {
	UUID                string
	InvoiceNumber       string
	CashierID           int64
	CustomerID          int64
	OutletID            int64
	DiscountAmount      float64
	TaxAmount           float64
	ServiceChargeAmount float64
	PaidAmount          float64
	Lines               []LineInput
}

// LineInput describes one requested sale line.
type LineInput struct {
	Type           ItemType
	Target         ledger.Target
	ComboID        int64
	Quantity       int64
	DiscountAmount float64
	TaxAmount      float64
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	OutletID  int64
	CashierID int64
	Status    Status
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

var (
	// ErrNotFound indicates the transaction does not exist.
	ErrNotFound = errors.New("sales: transaction not found")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("sales: invalid state transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("sales: invalid input")
	// ErrInsufficientStock indicates requested quantity exceeds availability.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
	// ErrInvoiceSequenceExhausted indicates more than 9999 invoices in one day.
	ErrInvoiceSequenceExhausted = errors.New("sales: daily invoice sequence exhausted")
)
