package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/shrike/internal/casework"
	"github.com/opensource-finance/shrike/internal/domain"
)

// ListCases serves GET /cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.repo.ListCases(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if cases == nil {
		cases = []*domain.Case{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cases": cases,
		"count": len(cases),
	})
}

// CreateCaseRequest is the request body for POST /cases.
type CreateCaseRequest struct {
	AlertID   string `json:"alertId"`
	AnalystID string `json:"analystId,omitempty"`
}

// CreateCase escalates an alert into an investigation case.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}
	if req.AlertID == "" {
		writeError(w, http.StatusBadRequest, "alertId is required", "validation_error")
		return
	}

	c, err := h.casework.OpenCase(r.Context(), req.AlertID, req.AnalystID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCase retrieves a case with its notes and alert.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCaseRequest is the request body for PUT /cases/{id}.
type UpdateCaseRequest struct {
	Status  domain.CaseStatus `json:"status"`
	Version int               `json:"version"`
}

// UpdateCase transitions a case to a new status.
func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	var req UpdateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	c, err := h.casework.TransitionCase(r.Context(), chi.URLParam(r, "id"), req.Status, req.Version)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CaseNoteRequest is the request body for POST /cases/notes.
type CaseNoteRequest struct {
	CaseID    string `json:"caseId"`
	AnalystID string `json:"analystId,omitempty"`
	Note      string `json:"note"`
}

// AddCaseNote appends an analyst note to a case.
func (h *Handler) AddCaseNote(w http.ResponseWriter, r *http.Request) {
	var req CaseNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}
	if req.CaseID == "" {
		writeError(w, http.StatusBadRequest, "caseId is required", "validation_error")
		return
	}

	note, err := h.casework.AddNote(r.Context(), req.CaseID, req.AnalystID, req.Note)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// AssignCaseRequest is the request body for POST /cases/{id}/assign.
type AssignCaseRequest struct {
	AnalystID string `json:"analystId"`
	Version   int    `json:"version"`
}

// AssignCase sets the owning analyst.
func (h *Handler) AssignCase(w http.ResponseWriter, r *http.Request) {
	var req AssignCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}
	if req.AnalystID == "" {
		writeError(w, http.StatusBadRequest, "analystId is required", "validation_error")
		return
	}

	c, err := h.casework.AssignAnalyst(r.Context(), chi.URLParam(r, "id"), req.AnalystID, req.Version)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListSARs serves GET /sars with optional status filter and search.
func (h *Handler) ListSARs(w http.ResponseWriter, r *http.Request) {
	filter := domain.SARFilter{
		Status: domain.SARStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}

	sars, err := h.repo.ListSARs(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if sars == nil {
		sars = []*domain.SAR{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sars":  sars,
		"count": len(sars),
	})
}

// CreateSARRequest is the request body for POST /sars.
type CreateSARRequest struct {
	CaseID       string           `json:"caseId"`
	CustomerName string           `json:"customerName,omitempty"`
	Amount       float64          `json:"amount,omitempty"`
	Description  string           `json:"description,omitempty"`
	Status       domain.SARStatus `json:"status,omitempty"`
}

// CreateSAR creates a filing. Amount and customer default from the case's
// underlying transaction when omitted.
func (h *Handler) CreateSAR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSARRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	if req.Amount == 0 || req.CustomerName == "" {
		if c, err := h.repo.GetCase(ctx, req.CaseID); err == nil && c.Alert != nil && c.Alert.Transaction != nil {
			if req.Amount == 0 {
				req.Amount = c.Alert.Transaction.Amount
			}
			if req.CustomerName == "" {
				req.CustomerName = c.Alert.Transaction.CustomerID
			}
		}
	}

	sar, err := h.casework.CreateSAR(ctx, &casework.SARRequest{
		CaseID:       req.CaseID,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Description:  req.Description,
		Status:       req.Status,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sar)
}

// GetSAR retrieves a filing by ID or SAR ID.
func (h *Handler) GetSAR(w http.ResponseWriter, r *http.Request) {
	sar, err := h.repo.GetSAR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sar)
}

// UpdateSARRequest is the request body for PUT /sars/{id}.
type UpdateSARRequest struct {
	CustomerName *string           `json:"customerName,omitempty"`
	Amount       *float64          `json:"amount,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Status       *domain.SARStatus `json:"status,omitempty"`
	Version      int               `json:"version"`
}

// UpdateSAR edits a filing. Status changes follow the monotonic filing
// progression.
func (h *Handler) UpdateSAR(w http.ResponseWriter, r *http.Request) {
	var req UpdateSARRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	sar, err := h.casework.UpdateSAR(r.Context(), chi.URLParam(r, "id"), &casework.SARUpdate{
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Description:  req.Description,
		Status:       req.Status,
		Version:      req.Version,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sar)
}

// FileSARRequest is the request body for POST /sars/{id}/file.
type FileSARRequest struct {
	Version int `json:"version"`
}

// FileSAR finalizes a pending filing and closes out the parent case.
func (h *Handler) FileSAR(w http.ResponseWriter, r *http.Request) {
	var req FileSARRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body", "validation_error")
		return
	}

	sar, err := h.casework.FileSAR(r.Context(), chi.URLParam(r, "id"), req.Version)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sar)
}

// SARStats serves GET /sars/stats.
func (h *Handler) SARStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetSARStats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportSARs serves GET /sars/export/batch as CSV or JSON.
func (h *Handler) ExportSARs(w http.ResponseWriter, r *http.Request) {
	filter := domain.SARFilter{
		Status: domain.SARStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 10000),
	}

	sars, err := h.repo.ListSARs(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		if sars == nil {
			sars = []*domain.SAR{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": sars})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sars.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"sar_id", "case_id", "customer_name", "amount", "status", "filing_date", "created_at"})
	for _, s := range sars {
		filingDate := ""
		if !s.FilingDate.IsZero() {
			filingDate = s.FilingDate.Format(time.RFC3339)
		}
		cw.Write([]string{
			s.SARID,
			s.CaseID,
			s.CustomerName,
			fmt.Sprintf("%.2f", s.Amount),
			string(s.Status),
			filingDate,
			s.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}
