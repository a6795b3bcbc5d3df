package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/shrike/internal/domain"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultRoutingRules(), nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return g
}

func scoredInput(score int, velocity int64) *GenerateInput {
	return &GenerateInput{
		Tx: &domain.Transaction{
			ID:         "tx-001",
			CustomerID: "cust-001",
			MerchantID: "merch-001",
			Amount:     150.0,
			Category:   "R",
			Type:       "PAYMENT",
		},
		Result: &domain.ScoreResult{
			TransactionID: "tx-001",
			FinalScore:    score,
			RiskLevel:     "Medium",
		},
		VelocityCount: velocity,
	}
}

func TestNoAlertBelowThreshold(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig() // threshold 11

	if alert := g.Generate(context.Background(), scoredInput(10, 0), cfg); alert != nil {
		t.Errorf("score 10 below threshold 11 must not alert, got queue %s", alert.AssignedQueue)
	}
}

func TestAlertAtThreshold(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	alert := g.Generate(context.Background(), scoredInput(11, 0), cfg)
	if alert == nil {
		t.Fatal("score at threshold must alert")
	}
	if alert.Status != domain.AlertPending {
		t.Errorf("new alerts start Pending, got %s", alert.Status)
	}
	if alert.TransactionID != "tx-001" {
		t.Errorf("expected tx-001, got %s", alert.TransactionID)
	}
	if alert.RiskScore != 11 {
		t.Errorf("expected risk score 11, got %d", alert.RiskScore)
	}
}

func TestDefaultQueue(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	alert := g.Generate(context.Background(), scoredInput(50, 0), cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueGeneral {
		t.Errorf("no route matches: expected %s, got %s", domain.QueueGeneral, alert.AssignedQueue)
	}
}

func TestHighProfileRoute(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	alert := g.Generate(context.Background(), scoredInput(95, 0), cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueHighProfile {
		t.Errorf("score 95 routes to %s, got %s", domain.QueueHighProfile, alert.AssignedQueue)
	}
}

func TestHighVelocityRoute(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	alert := g.Generate(context.Background(), scoredInput(50, 7), cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueHighVelocity {
		t.Errorf("velocity 7 routes to %s, got %s", domain.QueueHighVelocity, alert.AssignedQueue)
	}
}

func TestMerchantAnomaliesRoute(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	in := scoredInput(50, 0)
	in.Tx.Category = "electronics"
	in.Tx.Amount = 2500.0

	alert := g.Generate(context.Background(), in, cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueMerchantAnomalies {
		t.Errorf("expected %s, got %s", domain.QueueMerchantAnomalies, alert.AssignedQueue)
	}
}

func TestNewAccountsRoute(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	in := scoredInput(50, 1)
	in.Tx.Amount = 1500.0

	alert := g.Generate(context.Background(), in, cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueNewAccounts {
		t.Errorf("first-seen customer routes to %s, got %s", domain.QueueNewAccounts, alert.AssignedQueue)
	}
}

func TestNewAccountsYieldsToEarlierRoutes(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	// Matches both merchant-anomalies and new-accounts; merchant-anomalies
	// is listed first.
	in := scoredInput(50, 0)
	in.Tx.Category = "electronics"
	in.Tx.Amount = 2500.0

	alert := g.Generate(context.Background(), in, cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueMerchantAnomalies {
		t.Errorf("expected %s, got %s", domain.QueueMerchantAnomalies, alert.AssignedQueue)
	}
}

func TestFirstMatchWins(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	// Matches both high-profile (score > 90) and high-velocity; high-profile
	// is listed first.
	alert := g.Generate(context.Background(), scoredInput(95, 10), cfg)
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.AssignedQueue != domain.QueueHighProfile {
		t.Errorf("first matching route wins: expected %s, got %s", domain.QueueHighProfile, alert.AssignedQueue)
	}
}

func TestLoadRoutesRejectsBadExpression(t *testing.T) {
	g := newTestGenerator(t)

	before := g.Routes()

	err := g.LoadRoutes([]RoutingRule{
		{Name: "ok", Expression: "score > 50", Queue: "Queue A"},
		{Name: "broken", Expression: "this is not CEL !!!", Queue: "Queue B"},
	})
	if !errors.Is(err, domain.ErrInvalidRuleExpression) {
		t.Fatalf("expected invalid expression error, got %v", err)
	}

	// Previous route set must survive a rejected load.
	after := g.Routes()
	if len(after) != len(before) {
		t.Errorf("rejected load replaced routes: %d -> %d", len(before), len(after))
	}
}

func TestLoadRoutesSwapsSet(t *testing.T) {
	g := newTestGenerator(t)
	cfg := domain.DefaultScoringConfig()

	err := g.LoadRoutes([]RoutingRule{
		{Name: "everything", Expression: "score >= 0", Queue: "Catch All"},
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	alert := g.Generate(context.Background(), scoredInput(50, 0), cfg)
	if alert.AssignedQueue != "Catch All" {
		t.Errorf("expected Catch All, got %s", alert.AssignedQueue)
	}
}
