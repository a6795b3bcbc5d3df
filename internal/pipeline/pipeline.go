// Package pipeline orchestrates per-transaction scoring: rules and model
// run concurrently, the combiner merges them, and alerting decides whether
// an analyst sees the result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/shrike/internal/alerting"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/model"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scoring"
	"github.com/opensource-finance/shrike/internal/velocity"
)

var tracer = otel.Tracer("shrike/pipeline")

// Processor runs the full scoring pipeline for one transaction.
type Processor struct {
	evaluator *rules.Evaluator
	scorer    *model.Scorer
	velocity  *velocity.Service
	generator *alerting.Generator
	repo      domain.Repository
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(evaluator *rules.Evaluator, scorer *model.Scorer, vel *velocity.Service, gen *alerting.Generator, repo domain.Repository) *Processor {
	return &Processor{
		evaluator: evaluator,
		scorer:    scorer,
		velocity:  vel,
		generator: gen,
		repo:      repo,
	}
}

// Outcome bundles the score result with the alert it produced, if any.
type Outcome struct {
	Result *domain.ScoreResult
	Alert  *domain.Alert
}

// Process scores a transaction against the given configuration. The
// transaction must already be persisted. Rule evaluation and model scoring
// run concurrently; neither failure mode aborts the transaction.
func (p *Processor) Process(ctx context.Context, tx *domain.Transaction, cfg *domain.ScoringConfig) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "pipeline.process")
	defer span.End()

	start := time.Now()

	velocityCount, err := p.velocity.Observe(ctx, tx.CustomerID, velocity.DefaultWindowSecs)
	if err != nil {
		slog.Warn("velocity lookup failed, counting as zero", "customer_id", tx.CustomerID, "error", err)
		velocityCount = 0
	}

	var (
		wg         sync.WaitGroup
		ruleResult *domain.RuleEvaluation
		modelScore int
		modelErr   error
		rulesMs    int64
		modelMs    int64
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rs := time.Now()
		ruleResult = p.evaluator.Evaluate(&rules.Input{Tx: tx, VelocityCount: velocityCount})
		rulesMs = time.Since(rs).Milliseconds()
	}()
	go func() {
		defer wg.Done()
		if cfg.Mode == domain.ModeRules {
			return
		}
		ms := time.Now()
		modelScore, modelErr = p.scorer.Score(cfg.ModelName, tx)
		modelMs = time.Since(ms).Milliseconds()
	}()
	wg.Wait()

	modelOK := cfg.Mode != domain.ModeRules && modelErr == nil
	if modelErr != nil {
		if errors.Is(modelErr, domain.ErrModelUnavailable) {
			slog.Warn("model unavailable, falling back to rules",
				"model", cfg.ModelName, "tx_id", tx.ID)
		} else {
			slog.Error("model scoring failed", "model", cfg.ModelName, "tx_id", tx.ID, "error", modelErr)
		}
	}

	combined, err := scoring.Combine(cfg, ruleResult.RuleScore, modelScore, modelOK)
	if err != nil {
		return nil, err
	}

	result := &domain.ScoreResult{
		TransactionID:   tx.ID,
		RuleScore:       ruleResult.RuleScore,
		ModelScore:      modelScore,
		ModelUsed:       modelOK,
		Degraded:        combined.Degraded,
		FinalScore:      combined.FinalScore,
		RiskLevel:       combined.RiskLevel,
		Mode:            cfg.Mode,
		TriggeredRules:  ruleResult.TriggeredRules,
		SuggestedAction: ruleResult.SuggestedAction,
		TraceID:         traceID(ctx),
		RulesMs:         rulesMs,
		ModelMs:         modelMs,
		TotalMs:         time.Since(start).Milliseconds(),
	}
	if result.TriggeredRules == nil {
		result.TriggeredRules = []domain.TriggeredRule{}
	}

	out := &Outcome{Result: result}

	alert := p.generator.Generate(ctx, &alerting.GenerateInput{
		Tx:            tx,
		Result:        result,
		VelocityCount: velocityCount,
	}, cfg)
	if alert != nil {
		if err := p.repo.SaveAlert(ctx, alert); err != nil {
			return nil, err
		}
		p.generator.PublishCreated(ctx, alert)
		out.Alert = alert
	}

	return out, nil
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
