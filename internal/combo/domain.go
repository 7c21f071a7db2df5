package combo

import (
	"errors"
	"time"

	"github.com/lokapos/lokapos/internal/ledger"
)

// Combo bundles fixed quantities of products or variants into one sellable item.
// Combo stock is never stored; availability is always derived from the
// constituent stock holders.
type Combo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	IsActive  bool      `json:"is_active"`
	OutletID  int64     `json:"outlet_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one constituent of a combo: a stock holder plus the quantity
// consumed per combo unit.
type Item struct {
	ID      int64         `json:"id"`
	ComboID int64         `json:"combo_id"`
	Target  ledger.Target `json:"target"`
	Qty     int64         `json:"qty"`
}

// CreateInput describes a combo creation request.
type CreateInput struct {
	Name     string
	Price    float64
	OutletID int64
	Items    []ItemInput
}

// ItemInput describes one requested constituent.
type ItemInput struct {
	Target ledger.Target
	Qty    int64
}

var (
	// ErrNotFound indicates the combo does not exist.
	ErrNotFound = errors.New("combo: not found")
	// ErrValidation indicates invalid combo input.
	ErrValidation = errors.New("combo: invalid input")
	// ErrDuplicateItem indicates the same stock holder was listed twice.
	ErrDuplicateItem = errors.New("combo: duplicate item target")
)
