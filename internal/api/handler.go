package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/casework"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/model"
	"github.com/opensource-finance/shrike/internal/pipeline"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scoring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	evaluator *rules.Evaluator
	scorer    *model.Scorer
	processor *pipeline.Processor
	configs   *scoring.ConfigStore
	casework  *casework.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		repo:      deps.Repo,
		cache:     deps.Cache,
		bus:       deps.Bus,
		evaluator: deps.Evaluator,
		scorer:    deps.Scorer,
		processor: deps.Processor,
		configs:   deps.Configs,
		casework:  deps.Casework,
		version:   deps.Version,
	}
}

// IngestTransaction handles POST /transactions: persist, score
// synchronously, and return the full score result with any alert.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customerId is required", "validation_error")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", "validation_error")
		return
	}

	tx := req.ToTransaction()
	tx.ID = uuid.New().String()

	if err := h.repo.SaveTransaction(ctx, tx); err != nil {
		slog.Error("failed to save transaction", "error", err)
		h.writeDomainError(w, err)
		return
	}

	cfg, err := h.configs.Load(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	outcome, err := h.processor.Process(ctx, tx, cfg)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if outcome.Result.TraceID == "" {
		outcome.Result.TraceID = GetTraceID(ctx)
	}

	// Surface the result on the bus for downstream consumers.
	if h.bus != nil {
		payload, _ := json.Marshal(outcome.Result)
		if err := h.bus.Publish(ctx, domain.TopicScoreResult, payload); err != nil {
			slog.Warn("failed to publish score result", "tx_id", tx.ID, "error", err)
		}
	}

	resp := map[string]any{
		"transaction": tx,
		"result":      outcome.Result,
	}
	if outcome.Alert != nil {
		resp["alert"] = outcome.Alert
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(r.Context(), txID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetConfig returns the active scoring configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Load(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig validates and saves a new scoring configuration version.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ScoringConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	if err := h.configs.Save(r.Context(), &cfg); err != nil {
		h.writeDomainError(w, err)
		return
	}

	slog.Info("scoring config updated",
		"version", cfg.Version,
		"mode", cfg.Mode,
		"alert_threshold", cfg.AlertThreshold,
	)
	writeJSON(w, http.StatusOK, cfg)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  kind,
	})
}

// writeDomainError maps a taxonomy error to its HTTP status and kind.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "not_found":
		status = http.StatusNotFound
	case "version_conflict", "invalid_state_transition":
		status = http.StatusConflict
	case "validation_error", "invalid_rule_expression", "unconfigured_thresholds":
		status = http.StatusBadRequest
	case "model_unavailable":
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeError(w, status, "internal server error", kind)
		return
	}

	writeError(w, status, err.Error(), kind)
}

// parseTime reads an RFC3339 or date-only query parameter.
func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
