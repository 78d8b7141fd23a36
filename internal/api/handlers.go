package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/LeventeLantos/cadence-engine/internal/engine"
	"github.com/LeventeLantos/cadence-engine/internal/model"
	"github.com/LeventeLantos/cadence-engine/internal/repo"
	"github.com/LeventeLantos/cadence-engine/internal/scheduler"
)

// EngineOps is the trigger surface the handlers expose over HTTP.
type EngineOps interface {
	StartCadence(ctx context.Context, tenantID string, contactID int64, cadenceID string) error
	StopCadence(ctx context.Context, tenantID string, contactID int64, cadenceID string) error
	Tick(ctx context.Context, tenantID string) (int, error)
	ScheduleReminders(ctx context.Context, tenantID string) (int, error)
	ReplayDeadLetter(ctx context.Context, id int64) (model.SendOutcome, error)
}

// RateInspector exposes the rate limiter's introspection slice.
type RateInspector interface {
	Inspect(ctx context.Context, tenantID, operationKey string, maxPerMinute, burst int) (count int64, ttl time.Duration, limit int64)
}

type Handler struct {
	sched    *scheduler.Scheduler
	engine   EngineOps
	messages repo.MessageRepo
	limiter  RateInspector
	rlMax    int
	rlBurst  int
}

func NewHandler(s *scheduler.Scheduler, eng EngineOps, messages repo.MessageRepo, limiter RateInspector, rlMax, rlBurst int) *Handler {
	return &Handler{sched: s, engine: eng, messages: messages, limiter: limiter, rlMax: rlMax, rlBurst: rlBurst}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

type cadenceRequest struct {
	TenantID  string `json:"tenant_id"`
	ContactID int64  `json:"contact_id"`
	CadenceID string `json:"cadence_id"`
}

func (cr cadenceRequest) valid() bool {
	return cr.TenantID != "" && cr.ContactID > 0 && cr.CadenceID != ""
}

func (h *Handler) StartCadence(w http.ResponseWriter, r *http.Request) {
	var req cadenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.StartCadence(r.Context(), req.TenantID, req.ContactID, req.CadenceID); err != nil {
		if errors.Is(err, engine.ErrUnknownCadence) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"started": true})
}

func (h *Handler) StopCadence(w http.ResponseWriter, r *http.Request) {
	var req cadenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.StopCadence(r.Context(), req.TenantID, req.ContactID, req.CadenceID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

func (h *Handler) RunTick(w http.ResponseWriter, r *http.Request) {
	processed, err := h.engine.Tick(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

func (h *Handler) ScheduleReminders(w http.ResponseWriter, r *http.Request) {
	processed, err := h.engine.ScheduleReminders(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

type replayRequest struct {
	DeadLetterID int64 `json:"dead_letter_id"`
}

func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeadLetterID <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.engine.ReplayDeadLetter(r.Context(), req.DeadLetterID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "dead letter not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": string(outcome)})
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.messages.ListSent(r.Context(), tenantID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	key := r.URL.Query().Get("key")
	if tenantID == "" || key == "" {
		http.Error(w, "tenant_id and key are required", http.StatusBadRequest)
		return
	}

	count, ttl, limit := h.limiter.Inspect(r.Context(), tenantID, key, h.rlMax, h.rlBurst)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       count,
		"ttl_seconds": int64(ttl.Seconds()),
		"limit":       limit,
	})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
