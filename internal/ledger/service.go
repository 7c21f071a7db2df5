package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lokapos/lokapos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the single choke point for stock mutations: every change to a
// stock holder's quantity is persisted together with its movement record in
// one transaction.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, allowNeg: cfg.AllowNegativeStock}
}

// CreateMovement applies one stock mutation and records it in its own
// transaction.
func (s *Service) CreateMovement(ctx context.Context, input MovementInput) (Movement, error) {
	insertedKey := false
	if s.idempotency != nil && input.RefKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.RefKey, "ledger"); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = s.PostMovement(ctx, tx, input)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.RefKey)
		}
		return Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("ledger:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"target_kind": string(input.Target.Kind),
				"target_id":   input.Target.ID,
				"qty":         input.Quantity,
				"before":      movement.BeforeQty,
				"after":       movement.AfterQty,
				"outlet_id":   input.OutletID,
			},
		})
	}
	return movement, nil
}

// PostMovement applies one stock mutation inside the caller's transaction. A
// caller whose own rows must commit together with the movement (the sales
// lifecycle) wraps its writes and this call in a single transaction, so a
// failure after a partial posting rolls back stock and movements along with
// the caller's rows.
func (s *Service) PostMovement(ctx context.Context, tx TxRepository, input MovementInput) (Movement, error) {
	if err := input.Target.Validate(); err != nil {
		return Movement{}, err
	}
	switch input.Type {
	case MovementIn, MovementOut:
		if input.Quantity <= 0 {
			return Movement{}, ErrInvalidQuantity
		}
	case MovementAdjustment:
		if input.Quantity < 0 && !s.allowNeg {
			return Movement{}, ErrInvalidQuantity
		}
	default:
		return Movement{}, ErrInvalidType
	}

	before, err := tx.GetStockForUpdate(ctx, input.Target)
	if err != nil {
		return Movement{}, err
	}
	var after int64
	switch input.Type {
	case MovementIn:
		after = before + input.Quantity
	case MovementOut:
		after = before - input.Quantity
	case MovementAdjustment:
		after = input.Quantity
	}
	if after < 0 && !s.allowNeg {
		return Movement{}, ErrNegativeStock
	}
	if err := tx.SetStock(ctx, input.Target, after); err != nil {
		return Movement{}, err
	}
	movement := Movement{
		Type:          input.Type,
		Target:        input.Target,
		Quantity:      input.Quantity,
		BeforeQty:     before,
		AfterQty:      after,
		TransactionID: input.TransactionID,
		ActorID:       input.ActorID,
		OutletID:      input.OutletID,
		Note:          input.Note,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id
	return movement, nil
}

// ListMovements lists ledger entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}
