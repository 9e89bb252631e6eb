package ledger

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/clock"
	"github.com/albardn2/karma-sub001/internal/ids"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Service is the entry point for posting and deleting inventory events.
//
// Every method takes the Repository of the caller's transaction; the
// Service itself holds no state beyond its generators and policy.
type Service struct {
	ids       ids.Generator
	clock     clock.Clock
	shortfall ShortfallPolicy
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides the UUIDv7 generator.
func WithIDGenerator(g ids.Generator) ServiceOption {
	return func(s *Service) { s.ids = g }
}

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithShortfallPolicy sets how SelectFIFO treats insufficient stock.
func WithShortfallPolicy(p ShortfallPolicy) ServiceOption {
	return func(s *Service) { s.shortfall = p }
}

// NewService creates a ledger service.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		ids:       ids.UUIDv7Generator{},
		clock:     clock.System{},
		shortfall: ShortfallAllow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) env(repo Repository) Env {
	return Env{Repo: repo, IDs: s.ids, Clock: s.clock}
}

// CreateEvent validates req and posts it through its type's handler.
func (s *Service) CreateEvent(ctx context.Context, repo Repository, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	h, err := HandlerFor(req.EventType)
	if err != nil {
		return model.InventoryEvent{}, err
	}

	ev, err := h.Apply(ctx, s.env(repo), req)
	if err != nil {
		return model.InventoryEvent{}, err
	}

	slog.Debug("inventory event posted",
		"event", ev.UUID,
		"type", ev.EventType,
		"inventory", ev.InventoryUUID,
		"quantity", ev.Quantity.String())
	return ev, nil
}

// DeleteEvent soft-deletes a MANUAL event and reverses its effect on the
// lot. Any other event type fails with BadRequest.
func (s *Service) DeleteEvent(ctx context.Context, repo Repository, eventUUID string) (model.InventoryEvent, error) {
	ev, err := repo.GetEvent(ctx, eventUUID)
	if err != nil {
		return model.InventoryEvent{}, err
	}
	if ev.IsDeleted {
		return model.InventoryEvent{}, apperr.NotFound("inventory_event", eventUUID)
	}
	if ev.EventType != model.EventManual {
		return model.InventoryEvent{}, apperr.BadRequest("only manual events can be deleted, event %s is %s", eventUUID, ev.EventType)
	}

	h, err := HandlerFor(ev.EventType)
	if err != nil {
		return model.InventoryEvent{}, err
	}
	rev, ok := h.(Reverser)
	if !ok {
		return model.InventoryEvent{}, apperr.BadRequest("%s events cannot be reversed", ev.EventType)
	}

	deleted, err := rev.Reverse(ctx, s.env(repo), ev)
	if err != nil {
		return model.InventoryEvent{}, err
	}

	slog.Debug("inventory event reversed", "event", deleted.UUID, "inventory", deleted.InventoryUUID)
	return deleted, nil
}

// CreateInventory opens a new lot for an existing material. The initial
// quantity is the lot's opening balance; later movements go through events.
func (s *Service) CreateInventory(ctx context.Context, repo Repository, req model.InventoryCreate) (model.Inventory, error) {
	env := s.env(repo)
	if err := requireRef(ctx, env, model.RefMaterial, req.MaterialUUID); err != nil {
		return model.Inventory{}, err
	}
	if err := requireRefIfSet(ctx, env, model.RefWarehouse, req.WarehouseUUID); err != nil {
		return model.Inventory{}, err
	}
	if req.Quantity.IsNegative() {
		return model.Inventory{}, apperr.BadRequest("initial quantity must not be negative")
	}
	if req.CostPerUnit.IsNegative() {
		return model.Inventory{}, apperr.BadRequest("cost_per_unit must not be negative")
	}

	lot := model.Inventory{
		UUID:             s.ids.New(),
		MaterialUUID:     req.MaterialUUID,
		WarehouseUUID:    req.WarehouseUUID,
		Unit:             req.Unit,
		Currency:         req.Currency,
		CostPerUnit:      req.CostPerUnit,
		CurrentQuantity:  req.Quantity,
		OriginalQuantity: req.Quantity,
		InitialQuantity:  req.Quantity,
		IsActive:         true,
		CreatedByUUID:    req.CreatedByUUID,
		CreatedAt:        s.clock.Now(),
	}
	if err := repo.CreateInventory(ctx, &lot); err != nil {
		return model.Inventory{}, err
	}
	return lot, nil
}

// SelectFIFO selects lots of a material from the transaction's snapshot
// using the service's shortfall policy.
func (s *Service) SelectFIFO(ctx context.Context, repo Repository, materialUUID string, required decimal.Decimal) ([]model.Inventory, error) {
	lots, err := repo.ListLots(ctx, materialUUID)
	if err != nil {
		return nil, err
	}
	return SelectFIFOLots(lots, required, s.shortfall)
}
