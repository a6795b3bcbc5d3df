package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/shrike/internal/alerting"
	"github.com/opensource-finance/shrike/internal/bus"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/model"
	"github.com/opensource-finance/shrike/internal/pipeline"
	"github.com/opensource-finance/shrike/internal/repository"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scoring"
	"github.com/opensource-finance/shrike/internal/velocity"
)

func newTestWorker(t *testing.T, eventBus domain.EventBus) (*Worker, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "worker-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
		os.Remove(tmpPath)
	})

	evaluator := rules.NewEvaluator()
	evaluator.LoadRules([]*domain.Rule{
		{
			ID:          "high-amount",
			Name:        "High Amount",
			Conditions:  &domain.Condition{Field: "amount", Operator: ">", Value: 1000.0},
			ScoreImpact: 90,
			Action:      "Review",
			Priority:    10,
			IsActive:    true,
		},
	})

	gen, err := alerting.NewGenerator(alerting.DefaultRoutingRules(), eventBus)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	processor := pipeline.NewProcessor(
		evaluator,
		model.NewScorer(""),
		velocity.NewService(repo, nil),
		gen,
		repo,
	)
	configs := scoring.NewConfigStore(repo, nil)

	return NewWorker(eventBus, repo, processor, configs), repo
}

func testMessage(id string, amount float64) []byte {
	payload, _ := json.Marshal(TransactionMessage{
		TxID: id,
		Transaction: &domain.Transaction{
			ID:         id,
			CustomerID: "cust-001",
			MerchantID: "merch-001",
			Amount:     amount,
			Category:   "R",
			Type:       "PAYMENT",
			Timestamp:  time.Now().UTC(),
		},
	})
	return payload
}

func TestWorkerScoresIngestedTransactions(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w, repo := newTestWorker(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()

	var resultReceived atomic.Bool
	var resultPayload []byte

	eventBus.Subscribe(ctx, domain.TopicScoreResult, func(ctx context.Context, msg *domain.Message) error {
		resultPayload = msg.Payload
		resultReceived.Store(true)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	if err := eventBus.Publish(ctx, domain.TopicTransactionIngested, testMessage("tx-001", 500.0)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if !resultReceived.Load() {
		t.Fatal("expected score result to be published")
	}

	var result domain.ScoreResult
	if err := json.Unmarshal(resultPayload, &result); err != nil {
		t.Fatalf("failed to parse score result: %v", err)
	}
	if result.TransactionID != "tx-001" {
		t.Errorf("expected tx-001, got %s", result.TransactionID)
	}
	if result.RiskLevel == "" {
		t.Error("expected a risk level")
	}

	// Inline transaction must be persisted before scoring.
	if _, err := repo.GetTransaction(ctx, "tx-001"); err != nil {
		t.Errorf("inline transaction not persisted: %v", err)
	}
}

func TestWorkerScoresByTransactionID(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w, repo := newTestWorker(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()

	tx := &domain.Transaction{
		ID:         "tx-stored",
		CustomerID: "cust-002",
		MerchantID: "merch-001",
		Amount:     250.0,
		Category:   "R",
		Type:       "PAYMENT",
		Timestamp:  time.Now().UTC(),
	}
	if err := repo.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("failed to save transaction: %v", err)
	}

	var resultReceived atomic.Bool
	eventBus.Subscribe(ctx, domain.TopicScoreResult, func(ctx context.Context, msg *domain.Message) error {
		resultReceived.Store(true)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	payload, _ := json.Marshal(TransactionMessage{TxID: "tx-stored"})
	eventBus.Publish(ctx, domain.TopicTransactionIngested, payload)

	time.Sleep(200 * time.Millisecond)

	if !resultReceived.Load() {
		t.Error("expected score result for stored transaction")
	}
}

func TestWorkerPublishesAlerts(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w, repo := newTestWorker(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()

	var alertReceived atomic.Bool
	eventBus.Subscribe(ctx, domain.TopicAlertCreated, func(ctx context.Context, msg *domain.Message) error {
		alertReceived.Store(true)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	// Amount over 1000 triggers the loaded rule, which pushes the score
	// well past the default alert threshold.
	eventBus.Publish(ctx, domain.TopicTransactionIngested, testMessage("tx-risky", 5000.0))

	time.Sleep(200 * time.Millisecond)

	if !alertReceived.Load() {
		t.Error("expected alert to be published for high-risk transaction")
	}

	alerts, err := repo.ListAlerts(ctx, domain.AlertFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 persisted alert, got %d", len(alerts))
	}
	if alerts[0].TransactionID != "tx-risky" {
		t.Errorf("expected alert for tx-risky, got %s", alerts[0].TransactionID)
	}
}

func TestWorkerStopUnsubscribes(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w, _ := newTestWorker(t, eventBus)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx := context.Background()

	var resultCount atomic.Int32
	eventBus.Subscribe(ctx, domain.TopicScoreResult, func(ctx context.Context, msg *domain.Message) error {
		resultCount.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	eventBus.Publish(ctx, domain.TopicTransactionIngested, testMessage("tx-before", 100.0))
	time.Sleep(200 * time.Millisecond)

	if resultCount.Load() != 1 {
		t.Fatalf("expected 1 result before stop, got %d", resultCount.Load())
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	eventBus.Publish(ctx, domain.TopicTransactionIngested, testMessage("tx-after", 100.0))
	time.Sleep(200 * time.Millisecond)

	if resultCount.Load() != 1 {
		t.Errorf("stopped worker must not process messages, got %d results", resultCount.Load())
	}
}
