// Package facade is the transaction boundary of karma.
//
// Every public operation runs in exactly one store transaction: the ledger
// service and the workflow engine only ever see that transaction's
// repository, so a failing callback rolls back the operator's writes and
// every ledger event it posted.
package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/idempotency"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/metrics"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/store"
	"github.com/albardn2/karma-sub001/internal/workflow"
)

// Service exposes transactional ledger and workflow operations.
type Service struct {
	store   *store.Store
	ledger  *ledger.Service
	engine  *workflow.Engine
	metrics *metrics.Metrics
	guard   idempotency.Guard

	closers []func() error
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithGuard deduplicates task completions that carry a request id.
func WithGuard(g idempotency.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// New constructs a service backed by st.
func New(st *store.Store, l *ledger.Service, e *workflow.Engine, opts ...Option) *Service {
	s := &Service{
		store:   st,
		ledger:  l,
		engine:  e,
		metrics: metrics.New(nil),
		guard:   idempotency.NewMemoryGuard(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// PutReference registers reference data such as a material or warehouse.
func (s *Service) PutReference(ctx context.Context, kind model.RefKind, uuid, name string) error {
	return s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		return tx.PutReference(ctx, kind, uuid, name)
	})
}

// CreateInventory opens a new lot.
func (s *Service) CreateInventory(ctx context.Context, req model.InventoryCreate) (model.Inventory, error) {
	var created model.Inventory
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		created, err = s.ledger.CreateInventory(ctx, tx, req)
		return err
	})
	return created, err
}

// CreateEvent posts one inventory event.
func (s *Service) CreateEvent(ctx context.Context, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	var ev model.InventoryEvent
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		ev, err = s.ledger.CreateEvent(ctx, tx, req)
		return err
	})
	if err != nil {
		return model.InventoryEvent{}, err
	}
	s.metrics.EventsPosted.WithLabelValues(string(ev.EventType)).Inc()
	return ev, nil
}

// DeleteEvent reverses and soft-deletes a manual event.
func (s *Service) DeleteEvent(ctx context.Context, eventUUID string) (model.InventoryEvent, error) {
	var ev model.InventoryEvent
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		ev, err = s.ledger.DeleteEvent(ctx, tx, eventUUID)
		return err
	})
	if err != nil {
		return model.InventoryEvent{}, err
	}
	s.metrics.EventsReversed.WithLabelValues(string(ev.EventType)).Inc()
	return ev, nil
}

// SelectFIFO returns the lots that would cover required, oldest first.
func (s *Service) SelectFIFO(ctx context.Context, materialUUID string, required decimal.Decimal) ([]model.Inventory, error) {
	var lots []model.Inventory
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		lots, err = s.ledger.SelectFIFO(ctx, tx, materialUUID, required)
		return err
	})
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Details["shortfall"] != "" {
		s.metrics.FIFOShortfalls.Inc()
	}
	return lots, err
}

// Reconcile replays every lot's events and reports disagreements.
func (s *Service) Reconcile(ctx context.Context) ([]ledger.Discrepancy, error) {
	var ds []ledger.Discrepancy
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		ds, err = ledger.ReconcileAll(ctx, tx)
		return err
	})
	return ds, err
}

// Snapshot returns every lot and every event.
func (s *Service) Snapshot(ctx context.Context) ([]model.Inventory, []model.InventoryEvent, error) {
	var (
		lots   []model.Inventory
		events []model.InventoryEvent
	)
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		if lots, err = tx.ListInventory(ctx); err != nil {
			return err
		}
		events, err = tx.ListAllEvents(ctx)
		return err
	})
	return lots, events, err
}

// SyncDefinitions upserts workflow definitions by name.
func (s *Service) SyncDefinitions(ctx context.Context, defs []workflow.Definition) ([]model.Workflow, error) {
	var wfs []model.Workflow
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		wfs, err = s.engine.SyncDefinitions(ctx, tx, defs)
		return err
	})
	return wfs, err
}

// StartExecution starts a workflow by UUID.
func (s *Service) StartExecution(ctx context.Context, req model.ExecutionCreate) (model.WorkflowExecution, error) {
	var (
		exec model.WorkflowExecution
		name string
	)
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		wf, err := tx.GetWorkflow(ctx, req.WorkflowUUID)
		if err != nil {
			return err
		}
		name = wf.Name
		exec, err = s.engine.CreateExecution(ctx, tx, req)
		return err
	})
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	s.metrics.ExecutionsStarted.WithLabelValues(name).Inc()
	return exec, nil
}

// StartWorkflow starts the workflow registered under name.
func (s *Service) StartWorkflow(ctx context.Context, name string, req model.ExecutionCreate) (model.WorkflowExecution, error) {
	var wf model.Workflow
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		wf, err = tx.GetWorkflowByName(ctx, name)
		return err
	})
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	req.WorkflowUUID = wf.UUID
	return s.StartExecution(ctx, req)
}

// CancelExecution cancels an execution and its open tasks.
func (s *Service) CancelExecution(ctx context.Context, executionUUID string) (model.WorkflowExecution, error) {
	var exec model.WorkflowExecution
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		exec, err = s.engine.CancelExecution(ctx, tx, executionUUID)
		return err
	})
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	s.metrics.ExecutionsFinished.WithLabelValues(string(exec.Status)).Inc()
	return exec, nil
}

// CompleteTask completes a task execution and fires its callbacks.
//
// When req.RequestID is set, a second call with the same id fails with
// BadRequest instead of completing anything. The id is released again if
// the completion fails, so failed attempts can be retried.
func (s *Service) CompleteTask(ctx context.Context, req model.TaskCompletion) (model.TaskExecution, model.WorkflowExecution, error) {
	if req.RequestID != "" {
		ok, err := s.guard.Acquire(ctx, req.RequestID)
		if err != nil {
			return model.TaskExecution{}, model.WorkflowExecution{}, fmt.Errorf("claim request %s: %w", req.RequestID, err)
		}
		if !ok {
			s.metrics.DuplicateRequests.Inc()
			return model.TaskExecution{}, model.WorkflowExecution{}, &apperr.Error{
				Kind:    apperr.KindBadRequest,
				Message: "duplicate request",
				Details: map[string]string{"request_id": req.RequestID},
			}
		}
	}

	var (
		task model.TaskExecution
		exec model.WorkflowExecution
	)
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		task, exec, err = s.engine.CompleteTask(ctx, tx, req)
		return err
	})
	if err != nil {
		if kind := apperr.KindOf(err); kind != "" {
			s.metrics.TaskFailures.WithLabelValues(string(kind)).Inc()
		} else {
			s.metrics.TaskFailures.WithLabelValues("internal").Inc()
		}
		if req.RequestID != "" {
			if rerr := s.guard.Release(ctx, req.RequestID); rerr != nil {
				slog.Warn("release request id", "request_id", req.RequestID, "error", rerr)
			}
		}
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	s.metrics.TasksCompleted.WithLabelValues(string(task.Operator)).Inc()
	if exec.Status == model.StatusCompleted {
		s.metrics.ExecutionsFinished.WithLabelValues(string(exec.Status)).Inc()
	}
	return task, exec, nil
}

// Execution returns an execution with its tasks.
func (s *Service) Execution(ctx context.Context, uuid string) (model.WorkflowExecution, error) {
	var exec model.WorkflowExecution
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		exec, err = tx.GetExecution(ctx, uuid)
		return err
	})
	return exec, err
}

// Trip returns a trip by UUID.
func (s *Service) Trip(ctx context.Context, uuid string) (model.Trip, error) {
	var trip model.Trip
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		trip, err = tx.GetTrip(ctx, uuid)
		return err
	})
	return trip, err
}

// Process returns a process record with its quality controls.
func (s *Service) Process(ctx context.Context, uuid string) (model.Process, []model.QualityControl, error) {
	var (
		p   model.Process
		qcs []model.QualityControl
	)
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		var err error
		if p, err = tx.GetProcess(ctx, uuid); err != nil {
			return err
		}
		qcs, err = tx.ListQualityControls(ctx, uuid)
		return err
	})
	return p, qcs, err
}
