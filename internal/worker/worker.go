// Package worker provides async transaction processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/pipeline"
	"github.com/opensource-finance/shrike/internal/scoring"
)

// Worker scores ingested transactions published on the bus. The HTTP path
// scores synchronously; the worker serves bus-driven ingestion (batch
// loaders, replays) using the same pipeline.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	processor *pipeline.Processor
	configs   *scoring.ConfigStore

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, processor *pipeline.Processor, configs *scoring.ConfigStore) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		processor: processor,
		configs:   configs,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

// TransactionMessage is the ingestion payload carried on the bus.
type TransactionMessage struct {
	TxID string `json:"txId"`

	// Inline transaction for producers that skip the HTTP path.
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// handleMessage scores one ingested transaction.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var txMsg TransactionMessage
	if err := json.Unmarshal(msg.Payload, &txMsg); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	tx := txMsg.Transaction
	if tx == nil {
		var err error
		tx, err = w.repo.GetTransaction(ctx, txMsg.TxID)
		if err != nil {
			slog.Error("transaction not found for scoring",
				"tx_id", txMsg.TxID,
				"error", err,
			)
			return err
		}
	} else if tx.ID != "" {
		if err := w.repo.SaveTransaction(ctx, tx); err != nil {
			slog.Error("failed to persist inline transaction",
				"tx_id", tx.ID,
				"error", err,
			)
			return err
		}
	}

	cfg, err := w.configs.Load(ctx)
	if err != nil {
		slog.Error("failed to load scoring config", "error", err)
		return err
	}

	outcome, err := w.processor.Process(ctx, tx, cfg)
	if err != nil {
		slog.Error("scoring failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	resultPayload, _ := json.Marshal(outcome.Result)
	if err := w.bus.Publish(ctx, domain.TopicScoreResult, resultPayload); err != nil {
		slog.Error("failed to publish score result",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	slog.Info("transaction scored",
		"tx_id", tx.ID,
		"final_score", outcome.Result.FinalScore,
		"risk_level", outcome.Result.RiskLevel,
		"alerted", outcome.Alert != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}
