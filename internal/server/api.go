package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// API is the subset of the facade served over HTTP.
type API interface {
	CreateEvent(ctx context.Context, req model.InventoryEventCreate) (model.InventoryEvent, error)
	DeleteEvent(ctx context.Context, eventUUID string) (model.InventoryEvent, error)
	SelectFIFO(ctx context.Context, materialUUID string, required decimal.Decimal) ([]model.Inventory, error)
	StartWorkflow(ctx context.Context, name string, req model.ExecutionCreate) (model.WorkflowExecution, error)
	CancelExecution(ctx context.Context, executionUUID string) (model.WorkflowExecution, error)
	CompleteTask(ctx context.Context, req model.TaskCompletion) (model.TaskExecution, model.WorkflowExecution, error)
	Execution(ctx context.Context, uuid string) (model.WorkflowExecution, error)
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// TaskCompleteResponse is returned by POST /v1/tasks/{uuid}/complete.
type TaskCompleteResponse struct {
	Task      model.TaskExecution     `json:"task"`
	Execution model.WorkflowExecution `json:"execution"`
}

type handler struct {
	api API
}

func (h *handler) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/events", h.createEvent)
	mux.HandleFunc("DELETE /v1/events/{uuid}", h.deleteEvent)
	mux.HandleFunc("GET /v1/materials/{uuid}/fifo", h.fifo)
	mux.HandleFunc("POST /v1/workflows/{name}/executions", h.startWorkflow)
	mux.HandleFunc("GET /v1/executions/{uuid}", h.execution)
	mux.HandleFunc("POST /v1/executions/{uuid}/cancel", h.cancel)
	mux.HandleFunc("POST /v1/tasks/{uuid}/complete", h.completeTask)
}

func (h *handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req model.InventoryEventCreate
	if !decode(w, r, &req) {
		return
	}
	ev, err := h.api.CreateEvent(r.Context(), req)
	respond(w, http.StatusCreated, ev, err)
}

func (h *handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.api.DeleteEvent(r.Context(), r.PathValue("uuid"))
	respond(w, http.StatusOK, ev, err)
}

func (h *handler) fifo(w http.ResponseWriter, r *http.Request) {
	qty, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil {
		writeError(w, apperr.BadRequest("quantity must be a decimal"))
		return
	}
	lots, err := h.api.SelectFIFO(r.Context(), r.PathValue("uuid"), qty)
	respond(w, http.StatusOK, lots, err)
}

func (h *handler) startWorkflow(w http.ResponseWriter, r *http.Request) {
	var req model.ExecutionCreate
	if !decode(w, r, &req) {
		return
	}
	exec, err := h.api.StartWorkflow(r.Context(), r.PathValue("name"), req)
	respond(w, http.StatusCreated, exec, err)
}

func (h *handler) execution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.api.Execution(r.Context(), r.PathValue("uuid"))
	respond(w, http.StatusOK, exec, err)
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	exec, err := h.api.CancelExecution(r.Context(), r.PathValue("uuid"))
	respond(w, http.StatusOK, exec, err)
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) {
	var req model.TaskCompletion
	if !decode(w, r, &req) {
		return
	}
	req.TaskExecutionUUID = r.PathValue("uuid")
	task, exec, err := h.api.CompleteTask(r.Context(), req)
	respond(w, http.StatusOK, TaskCompleteResponse{Task: task, Execution: exec}, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, apperr.BadRequest("invalid request body: %v", err))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Details["request_id"] != "" {
		return http.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnsupported:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Kind: "INTERNAL", Message: "internal error"}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp = ErrorResponse{Kind: string(ae.Kind), Message: ae.Message, Details: ae.Details}
	} else {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
