package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/testutil"
)

// memRepo is an in-memory Repository with the same version check as the
// sqlite store.
type memRepo struct {
	mu     sync.Mutex
	lots   map[string]model.Inventory
	events map[string]model.InventoryEvent
	order  []string
	refs   map[model.RefKind]map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		lots:   make(map[string]model.Inventory),
		events: make(map[string]model.InventoryEvent),
		refs:   make(map[model.RefKind]map[string]bool),
	}
}

func (r *memRepo) addRef(kind model.RefKind, uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[kind] == nil {
		r.refs[kind] = make(map[string]bool)
	}
	r.refs[kind][uuid] = true
}

func (r *memRepo) GetInventory(_ context.Context, uuid string) (model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[uuid]
	if !ok {
		return model.Inventory{}, apperr.NotFound("inventory", uuid)
	}
	return lot, nil
}

func (r *memRepo) CreateInventory(_ context.Context, inv *model.Inventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.Version = 1
	r.lots[inv.UUID] = *inv
	return nil
}

func (r *memRepo) UpdateInventory(_ context.Context, inv *model.Inventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.lots[inv.UUID]
	if !ok || cur.Version != inv.Version {
		return errVersion
	}
	inv.Version++
	r.lots[inv.UUID] = *inv
	return nil
}

func (r *memRepo) ListLots(_ context.Context, material string) ([]model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Inventory
	for _, lot := range r.lots {
		if lot.MaterialUUID == material && !lot.IsDeleted {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (r *memRepo) ListInventory(_ context.Context) ([]model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Inventory
	for _, lot := range r.lots {
		out = append(out, lot)
	}
	return out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev *model.InventoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.UUID] = *ev
	r.order = append(r.order, ev.UUID)
	return nil
}

func (r *memRepo) GetEvent(_ context.Context, uuid string) (model.InventoryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[uuid]
	if !ok {
		return model.InventoryEvent{}, apperr.NotFound("inventory_event", uuid)
	}
	return ev, nil
}

func (r *memRepo) MarkEventDeleted(_ context.Context, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[uuid]
	if !ok || ev.IsDeleted {
		return apperr.NotFound("inventory_event", uuid)
	}
	ev.IsDeleted = true
	r.events[uuid] = ev
	return nil
}

func (r *memRepo) ListEvents(_ context.Context, inventoryUUID string) ([]model.InventoryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventoryEvent
	for _, id := range r.order {
		if ev := r.events[id]; ev.InventoryUUID == inventoryUUID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memRepo) ReferenceExists(_ context.Context, kind model.RefKind, uuid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[kind][uuid], nil
}

var errVersion = apperr.BadRequest("version mismatch")

// newTestService returns a service with deterministic ids and clock, and a
// repo holding material "mat-1".
func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	repo.addRef(model.RefMaterial, "mat-1")
	svc := NewService(
		WithIDGenerator(testutil.NewSequenceIDs("ev")),
		WithClock(testutil.NewStepClock()),
	)
	return svc, repo
}

// openLot creates a lot of mat-1 with the given opening quantity.
func openLot(t *testing.T, svc *Service, repo *memRepo, qty string) model.Inventory {
	t.Helper()
	lot, err := svc.CreateInventory(context.Background(), repo, model.InventoryCreate{
		MaterialUUID: "mat-1",
		Unit:         "kg",
		Currency:     "USD",
		CostPerUnit:  decimal.RequireFromString("2"),
		Quantity:     decimal.RequireFromString(qty),
	})
	require.NoError(t, err)
	return lot
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lotAt(id string, qty string, sec int) model.Inventory {
	q := dec(qty)
	return model.Inventory{
		UUID:            id,
		MaterialUUID:    "mat-1",
		CurrentQuantity: q,
		IsActive:        true,
		CreatedAt:       testutil.Epoch.Add(time.Duration(sec) * time.Second),
	}
}
