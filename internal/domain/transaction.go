// Package domain defines the core types and interfaces for Shrike.
package domain

import (
	"time"
)

// Transaction represents an incoming transaction to be scored.
// Transactions are immutable facts: written once by ingestion, never updated.
type Transaction struct {
	// Core identifiers
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	MerchantID string `json:"merchantId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Category string  `json:"category"` // product category code, e.g. "R", "W", "C"
	Type     string  `json:"transactionType"`

	// Balance snapshots used as model features (optional)
	OldBalanceOrig float64 `json:"oldBalanceOrig,omitempty"`
	NewBalanceOrig float64 `json:"newBalanceOrig,omitempty"`
	OldBalanceDest float64 `json:"oldBalanceDest,omitempty"`
	NewBalanceDest float64 `json:"newBalanceDest,omitempty"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionRequest is the API request payload for transaction ingestion.
type TransactionRequest struct {
	CustomerID     string  `json:"customerId"`
	MerchantID     string  `json:"merchantId"`
	Amount         float64 `json:"amount"`
	Category       string  `json:"category"`
	Type           string  `json:"transactionType"`
	OldBalanceOrig float64 `json:"oldBalanceOrig,omitempty"`
	NewBalanceOrig float64 `json:"newBalanceOrig,omitempty"`
	OldBalanceDest float64 `json:"oldBalanceDest,omitempty"`
	NewBalanceDest float64 `json:"newBalanceDest,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		CustomerID:     r.CustomerID,
		MerchantID:     r.MerchantID,
		Amount:         r.Amount,
		Category:       r.Category,
		Type:           r.Type,
		OldBalanceOrig: r.OldBalanceOrig,
		NewBalanceOrig: r.NewBalanceOrig,
		OldBalanceDest: r.OldBalanceDest,
		NewBalanceDest: r.NewBalanceDest,
		Timestamp:      now,
		CreatedAt:      now,
	}
}
