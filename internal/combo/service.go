package combo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Combo, error)
	List(ctx context.Context, outletID int64, activeOnly bool) ([]Combo, error)
	Create(ctx context.Context, combo Combo) (Combo, error)
	SetActive(ctx context.Context, id int64, active bool) error
	GetStock(ctx context.Context, target ledger.Target) (int64, error)
}

// Service derives combo availability from constituent stock and manages combo
// definitions. Availability is a pure read; it never mutates stock.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (Combo, error) {
	if id <= 0 {
		return Combo{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, outletID int64, activeOnly bool) ([]Combo, error) {
	return s.repo.List(ctx, outletID, activeOnly)
}

// Create validates and persists a combo with its items.
func (s *Service) Create(ctx context.Context, input CreateInput) (Combo, error) {
	if strings.TrimSpace(input.Name) == "" || input.Price < 0 || len(input.Items) == 0 {
		return Combo{}, ErrValidation
	}
	seen := make(map[string]struct{}, len(input.Items))
	items := make([]Item, 0, len(input.Items))
	for _, item := range input.Items {
		if err := item.Target.Validate(); err != nil {
			return Combo{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if item.Qty < 1 {
			return Combo{}, fmt.Errorf("%w: item qty must be >= 1", ErrValidation)
		}
		key := fmt.Sprintf("%s:%d", item.Target.Kind, item.Target.ID)
		if _, dup := seen[key]; dup {
			return Combo{}, ErrDuplicateItem
		}
		seen[key] = struct{}{}
		items = append(items, Item{Target: item.Target, Qty: item.Qty})
	}
	combo := Combo{Name: input.Name, Price: input.Price, OutletID: input.OutletID, IsActive: true, Items: items}
	return s.repo.Create(ctx, combo)
}

// SetActive toggles the combo's availability for sale.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// MaxQuantity returns how many units of the combo can be sold right now,
// limited by the scarcest constituent. A missing stock holder makes the whole
// combo unavailable.
func (s *Service) MaxQuantity(ctx context.Context, comboID int64) (int64, error) {
	c, err := s.repo.Get(ctx, comboID)
	if err != nil {
		return 0, err
	}
	return s.maxQuantityOf(ctx, c)
}

// HasEnoughStock reports whether qty units of the combo can be assembled from
// current stock.
func (s *Service) HasEnoughStock(ctx context.Context, comboID int64, qty int64) (bool, error) {
	if qty < 1 {
		return false, ErrValidation
	}
	maxQty, err := s.MaxQuantity(ctx, comboID)
	if err != nil {
		return false, err
	}
	return qty <= maxQty, nil
}

func (s *Service) maxQuantityOf(ctx context.Context, c Combo) (int64, error) {
	if len(c.Items) == 0 {
		return 0, nil
	}
	var maxQty int64 = -1
	for _, item := range c.Items {
		stock, err := s.repo.GetStock(ctx, item.Target)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) || errors.Is(err, ledger.ErrStockHolderNotFound) {
				return 0, nil
			}
			return 0, err
		}
		if stock < 0 {
			stock = 0
		}
		perItem := stock / item.Qty
		if maxQty < 0 || perItem < maxQty {
			maxQty = perItem
		}
	}
	if maxQty < 0 {
		maxQty = 0
	}
	return maxQty, nil
}
