package domain

import "time"

// CaseStatus is the investigation state of a case.
type CaseStatus string

const (
	CaseOpen       CaseStatus = "Open"
	CaseInProgress CaseStatus = "In Progress"
	CaseClosed     CaseStatus = "Closed"
	CaseSARFiled   CaseStatus = "SAR Filed"
)

// Case is an analyst investigation. A case always originates from exactly
// one alert.
type Case struct {
	ID        string     `json:"id"`
	AlertID   string     `json:"alertId"`
	Status    CaseStatus `json:"status"`
	AnalystID string     `json:"analystId,omitempty"`

	// Version increments on every mutation; writers must present the
	// version they read to serialize concurrent updates.
	Version int `json:"version"`

	Notes []CaseNote `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Alert is populated on reads for the dashboard.
	Alert *Alert `json:"alert,omitempty"`
}

// CaseNote is an append-only analyst note on a case.
type CaseNote struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId"`
	AnalystID string    `json:"analystId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// SARStatus is the filing state of a suspicious activity report.
// Transitions are strictly monotonic: Draft -> Pending -> Filed.
type SARStatus string

const (
	SARDraft   SARStatus = "Draft"
	SARPending SARStatus = "Pending"
	SARFiled   SARStatus = "Filed"
)

// SAR is a suspicious activity report filed from an open case.
type SAR struct {
	ID           string    `json:"id"`
	SARID        string    `json:"sarId"` // human-readable, e.g. SAR-2026-001
	CaseID       string    `json:"caseId"`
	CustomerName string    `json:"customerName,omitempty"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	Status       SARStatus `json:"status"`
	FilingDate   time.Time `json:"filingDate,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SARStats summarizes filing counts for the dashboard.
type SARStats struct {
	PendingFilings    int `json:"pendingFilings"`
	SuccessfullyFiled int `json:"successfullyFiled"`
	Drafts            int `json:"drafts"`
	Total             int `json:"total"`
}
