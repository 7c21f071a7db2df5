package ledger

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement; quantity is a positive delta.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement; quantity is a positive delta.
	MovementOut MovementType = "OUT"
	// MovementAdjustment overwrites the stock level; quantity is the target value.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// TargetKind discriminates the stock holder a movement applies to.
type TargetKind string

const (
	TargetProduct TargetKind = "PRODUCT"
	TargetVariant TargetKind = "VARIANT"
)

// Target identifies exactly one stock holder. Constructed via ProductTarget or
// VariantTarget so a movement can never reference both or neither.
type Target struct {
	Kind TargetKind
	ID   int64
}

// ProductTarget builds a target for a product's own stock.
func ProductTarget(id int64) Target {
	return Target{Kind: TargetProduct, ID: id}
}

// VariantTarget builds a target for a product variant's stock.
func VariantTarget(id int64) Target {
	return Target{Kind: TargetVariant, ID: id}
}

// Validate checks the target references a plausible row.
func (t Target) Validate() error {
	if t.Kind != TargetProduct && t.Kind != TargetVariant {
		return ErrInvalidTarget
	}
	if t.ID <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

// Movement is an immutable ledger record of one stock mutation.
type Movement struct {
	ID            int64
	Type          MovementType
	Target        Target
	Quantity      int64
	BeforeQty     int64
	AfterQty      int64
	TransactionID int64
	ActorID       int64
	OutletID      int64
	Note          string
	CreatedAt     time.Time
}

// MovementInput describes a requested stock mutation.
type MovementInput struct {
	Type          MovementType
	Target        Target
	Quantity      int64
	TransactionID int64
	ActorID       int64
	OutletID      int64
	Note          string
	RefKey        string
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	Target        *Target
	TransactionID int64
	OutletID      int64
	From          time.Time
	To            time.Time
	Limit         int
}

var (
	// ErrNegativeStock triggered when an OUT movement would drive stock below zero.
	ErrNegativeStock = errors.New("ledger: negative stock not allowed")
	// ErrInvalidQuantity indicates an invalid quantity for the movement type.
	ErrInvalidQuantity = errors.New("ledger: invalid quantity")
	// ErrInvalidType indicates an unknown movement type.
	ErrInvalidType = errors.New("ledger: invalid movement type")
	// ErrInvalidTarget indicates the movement does not reference a stock holder.
	ErrInvalidTarget = errors.New("ledger: invalid target")
	// ErrStockHolderNotFound indicates the targeted product or variant is missing.
	ErrStockHolderNotFound = errors.New("ledger: stock holder not found")
)
