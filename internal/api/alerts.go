package api

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/shrike/internal/domain"
)

// highRiskMin returns the score at which an alert counts toward fraud KPIs:
// the lower bound of the second-highest configured band.
func (h *Handler) highRiskMin(r *http.Request) int {
	cfg, err := h.configs.Load(r.Context())
	if err != nil || len(cfg.RiskThresholds) < 2 {
		return 71
	}

	bands := make([]domain.RiskBand, len(cfg.RiskThresholds))
	copy(bands, cfg.RiskThresholds)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })
	return bands[len(bands)-2].Min
}

// DashboardKPIs serves GET /dashboard/kpis, computed from persisted
// transactions and alerts.
func (h *Handler) DashboardKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txStats, err := h.repo.GetTransactionStats(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	alertStats, err := h.repo.GetAlertStats(ctx, h.highRiskMin(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var fraudRate, detectionRate, reviewRate, approvalRate float64
	if txStats.Count > 0 {
		fraudRate = float64(alertStats.HighRisk) / float64(txStats.Count) * 100
		detectionRate = float64(alertStats.Total) / float64(txStats.Count) * 100
		approvalRate = 100 - detectionRate
		if approvalRate < 0 {
			approvalRate = 0
		}
	}
	if alertStats.Total > 0 {
		reviewRate = float64(alertStats.Pending) / float64(alertStats.Total) * 100
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"fraud_rate":          round2(fraudRate),
		"fraud_sum":           round2(alertStats.FraudAmount),
		"detection_rate":      round2(detectionRate),
		"review_rate":         round2(reviewRate),
		"approval_rate":       round2(approvalRate),
		"false_negative_rate": 0,
	})
}

// AlertsOverTime serves GET /dashboard/alerts-over-time: the daily alert
// series aggregated from the alerts table.
func (h *Handler) AlertsOverTime(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)

	trend, err := h.repo.GetAlertTrend(r.Context(), since, h.highRiskMin(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if trend == nil {
		trend = []domain.AlertTrendPoint{}
	}

	writeJSON(w, http.StatusOK, trend)
}

// ListAlerts serves GET /alerts with optional status and queue filters.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := domain.AlertFilter{
		Status: domain.AlertStatus(r.URL.Query().Get("status")),
		Queue:  r.URL.Query().Get("queue"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}

	alerts, err := h.repo.ListAlerts(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert with its transaction.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.repo.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertRequest is the request body for PUT /alerts/{id}.
type UpdateAlertRequest struct {
	Status domain.AlertStatus `json:"status"`
}

// UpdateAlert moves an alert between review states.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	var req UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	switch req.Status {
	case domain.AlertPending, domain.AlertReviewed, domain.AlertDismissed:
	default:
		writeError(w, http.StatusBadRequest, "unknown alert status", "validation_error")
		return
	}

	if err := h.repo.UpdateAlertStatus(r.Context(), alertID, req.Status); err != nil {
		h.writeDomainError(w, err)
		return
	}

	alert, err := h.repo.GetAlert(r.Context(), alertID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// AlertActionRequest is the request body for POST /alerts/{id}/action.
type AlertActionRequest struct {
	Action    string `json:"action"` // Reviewed, Dismissed, Escalate
	AnalystID string `json:"analystId,omitempty"`
}

// AlertAction applies an analyst action. Escalate opens a case from the
// alert; Reviewed and Dismissed update its status.
func (h *Handler) AlertAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	var req AlertActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	switch req.Action {
	case "Escalate":
		c, err := h.casework.OpenCase(ctx, alertID, req.AnalystID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "case opened",
			"case":    c,
		})

	case string(domain.AlertReviewed), string(domain.AlertDismissed):
		if err := h.repo.UpdateAlertStatus(ctx, alertID, domain.AlertStatus(req.Action)); err != nil {
			h.writeDomainError(w, err)
			return
		}
		alert, err := h.repo.GetAlert(ctx, alertID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)

	default:
		writeError(w, http.StatusBadRequest, "action must be Reviewed, Dismissed, or Escalate", "validation_error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
