package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// ReportTemplate describes a downloadable report offered by the dashboard.
type ReportTemplate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Format      string `json:"format"`
}

var reportTemplates = []ReportTemplate{
	{
		ID:          "fraud-summary",
		Title:       "Fraud Summary",
		Description: "High-level fraud detection summary for a date range",
		Format:      "json",
	},
	{
		ID:          "alert-activity",
		Title:       "Alert Activity",
		Description: "Alert volumes by queue, status, and risk level",
		Format:      "json",
	},
	{
		ID:          "case-outcomes",
		Title:       "Case Outcomes",
		Description: "Investigation case resolutions and SAR filings",
		Format:      "json",
	},
	{
		ID:          "transaction-export",
		Title:       "Transaction Export",
		Description: "Raw alerted transactions for offline analysis",
		Format:      "csv",
	},
}

// ReportTemplates serves GET /reports/templates.
func (h *Handler) ReportTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": reportTemplates,
	})
}

// ReportStats serves GET /reports/stats: aggregate quality metrics over
// alerts and case outcomes.
func (h *Handler) ReportStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	alerts, err := h.repo.ListAlerts(ctx, domain.AlertFilter{Limit: 1000})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var scoreSum int
	for _, a := range alerts {
		scoreSum += a.RiskScore
	}
	var avgScore float64
	if len(alerts) > 0 {
		avgScore = float64(scoreSum) / float64(len(alerts))
	}

	cases, err := h.repo.ListCases(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Closed cases without a SAR filing are treated as false positives.
	var closed int
	for _, c := range cases {
		if c.Status == domain.CaseClosed {
			closed++
		}
	}
	var falsePositiveRate float64
	if len(cases) > 0 {
		falsePositiveRate = float64(closed) / float64(len(cases)) * 100
	}

	txStats, err := h.repo.GetTransactionStats(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var detectionRate float64
	if txStats.Count > 0 {
		detectionRate = float64(len(alerts)) / float64(txStats.Count) * 100
		if detectionRate > 100 {
			detectionRate = 100
		}
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"avg_fraud_score":     round2(avgScore),
		"false_positive_rate": round2(falsePositiveRate),
		"detection_rate":      round2(detectionRate),
		"approval_rate":       round2(100 - detectionRate),
		"false_negative_rate": 0,
	})
}

// ReportTrends serves GET /reports/trends: daily alert volumes with a
// fraud/legit split.
func (h *Handler) ReportTrends(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)

	trend, err := h.repo.GetAlertTrend(r.Context(), since, h.highRiskMin(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	points := make([]map[string]any, 0, len(trend))
	for _, p := range trend {
		points = append(points, map[string]any{
			"date":  p.Date,
			"total": p.Alerts,
			"fraud": p.Fraud,
			"legit": p.Alerts - p.Fraud,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trends": points,
	})
}

// GenerateReportRequest is the request body for POST /reports/generate.
type GenerateReportRequest struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	ReportType string `json:"report_type"`
}

// GenerateReport builds an on-demand summary for a date range: totals,
// fraud rate, and breakdowns by case status and risk level.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	start, hasStart := parseTime(req.StartDate)
	end, hasEnd := parseTime(req.EndDate)
	if hasEnd {
		// End date is inclusive.
		end = end.AddDate(0, 0, 1)
	}

	alerts, err := h.repo.ListAlerts(ctx, domain.AlertFilter{Limit: 10000})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var total int
	var fraudAmount float64
	riskBreakdown := map[string]int{}
	highRiskMin := h.highRiskMin(r)
	var highRisk int

	for _, a := range alerts {
		if hasStart && a.CreatedAt.Before(start) {
			continue
		}
		if hasEnd && !a.CreatedAt.Before(end) {
			continue
		}
		total++
		riskBreakdown[a.RiskLevel]++
		if a.RiskScore >= highRiskMin {
			highRisk++
			if a.Transaction != nil {
				fraudAmount += a.Transaction.Amount
			}
		}
	}

	txStats, err := h.repo.GetTransactionStats(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var fraudRate float64
	if txStats.Count > 0 {
		fraudRate = float64(highRisk) / float64(txStats.Count) * 100
	}

	cases, err := h.repo.ListCases(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	caseBreakdown := map[string]int{}
	for _, c := range cases {
		caseBreakdown[string(c.Status)]++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report_type":           req.ReportType,
		"start_date":            req.StartDate,
		"end_date":              req.EndDate,
		"total_transactions":    txStats.Count,
		"total_alerts":          total,
		"fraud_rate":            round2(fraudRate),
		"fraud_amount":          round2(fraudAmount),
		"case_status_breakdown": caseBreakdown,
		"risk_level_breakdown":  riskBreakdown,
		"generated_at":          time.Now().UTC().Format(time.RFC3339),
	})
}

// ExportReport serves GET /reports/export: alerted transactions as CSV or
// JSON.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.repo.ListAlerts(r.Context(), domain.AlertFilter{
		Status: domain.AlertStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 10000),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		if alerts == nil {
			alerts = []*domain.Alert{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": alerts})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"alert_id", "transaction_id", "customer_id", "amount", "risk_score", "risk_level", "status", "queue", "created_at"})
	for _, a := range alerts {
		customerID := ""
		amount := ""
		if a.Transaction != nil {
			customerID = a.Transaction.CustomerID
			amount = fmt.Sprintf("%.2f", a.Transaction.Amount)
		}
		cw.Write([]string{
			a.ID,
			a.TransactionID,
			customerID,
			amount,
			fmt.Sprintf("%d", a.RiskScore),
			a.RiskLevel,
			string(a.Status),
			a.AssignedQueue,
			a.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}
