package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/rules"
)

// ListRules serves GET /rules, including inactive rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListRules(r.Context(), false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []*domain.Rule{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": list,
		"count": len(list),
	})
}

// CreateRule validates and persists a new rule, then hot-reloads the
// evaluator.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "validation_error")
		return
	}
	if err := rules.ValidateRule(&rule); err != nil {
		h.writeDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.repo.SaveRule(ctx, &rule); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.reloadRules(ctx)

	writeJSON(w, http.StatusCreated, rule)
}

// GetRule retrieves a rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.repo.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule replaces a rule and hot-reloads the evaluator.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	existing, err := h.repo.GetRule(ctx, ruleID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	rule.ID = ruleID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := rules.ValidateRule(&rule); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.repo.SaveRule(ctx, &rule); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.reloadRules(ctx)

	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a rule and hot-reloads the evaluator.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.repo.DeleteRule(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.reloadRules(ctx)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// reloadRules refreshes the evaluator's rule snapshot after a write. A
// failed reload keeps the previous snapshot serving traffic.
func (h *Handler) reloadRules(ctx context.Context) {
	active, err := h.repo.ListRules(ctx, true)
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		return
	}
	h.evaluator.LoadRules(active)
	slog.Info("rules reloaded", "count", h.evaluator.RulesCount())
}

// AnalysisResults serves GET /analysis/results: offline model training
// metrics keyed by model name.
func (h *Handler) AnalysisResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.repo.ListModelResults(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if len(results) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "training",
			"message": "model training in progress, no results available yet",
		})
		return
	}

	data := make(map[string]any, len(results))
	for _, m := range results {
		data[m.ModelName] = map[string]any{
			"accuracy":  m.Accuracy,
			"f1Score":   m.F1Score,
			"precision": m.Precision,
			"recall":    m.Recall,
			"aucRoc":    m.AUCROC,
			"trainedAt": m.TrainedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// AnalysisTrends serves GET /analysis/trends: the recent daily alert series
// used by the analysis dashboard.
func (h *Handler) AnalysisTrends(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)

	trend, err := h.repo.GetAlertTrend(r.Context(), since, h.highRiskMin(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if len(trend) == 0 {
		writeError(w, http.StatusNotFound, "no trend data available", "not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   trend,
	})
}
