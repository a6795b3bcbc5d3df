package domain

import "time"

// AlertStatus is the review state of an alert.
type AlertStatus string

const (
	AlertPending   AlertStatus = "Pending"
	AlertReviewed  AlertStatus = "Reviewed"
	AlertDismissed AlertStatus = "Dismissed"
)

// Standard analyst queues. Routing rules may name any queue; these are the
// ones the dashboard ships with.
const (
	QueueGeneral           = "General"
	QueueHighProfile       = "High Profile Queue"
	QueueNewAccounts       = "New Accounts"
	QueueMerchantAnomalies = "Merchant Anomalies"
	QueueHighVelocity      = "High Velocity"
)

// Alert is the engine's primary output: a scored transaction that crossed
// the alerting threshold, routed to an analyst queue.
type Alert struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transactionId"`
	RiskScore     int         `json:"riskScore"` // 0-100
	RiskLevel     string      `json:"riskLevel"`
	Status        AlertStatus `json:"status"`
	AssignedQueue string      `json:"assignedQueue"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt,omitempty"`

	// Transaction is populated on reads for the dashboard.
	Transaction *Transaction `json:"transaction,omitempty"`
}
