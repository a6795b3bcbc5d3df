// Package alerting turns scored transactions into analyst alerts and routes
// them to queues using CEL predicates.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/domain"
)

// RoutingRule is a queue-routing predicate. Rules are evaluated in order;
// the first matching rule assigns the queue.
type RoutingRule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Queue      string `json:"queue"`
}

type compiledRoute struct {
	rule    RoutingRule
	program cel.Program
}

// Generator creates alerts for transactions whose final score crosses the
// alerting threshold.
type Generator struct {
	mu     sync.RWMutex
	env    *cel.Env
	routes []compiledRoute
	bus    domain.EventBus
}

// DefaultRoutingRules are the queue routes the dashboard ships with.
func DefaultRoutingRules() []RoutingRule {
	return []RoutingRule{
		{
			Name:       "high-profile",
			Expression: "score > 90",
			Queue:      domain.QueueHighProfile,
		},
		{
			Name:       "high-velocity",
			Expression: "velocity_count >= 5",
			Queue:      domain.QueueHighVelocity,
		},
		{
			Name:       "merchant-anomalies",
			Expression: "category == 'electronics' && amount > 2000.0",
			Queue:      domain.QueueMerchantAnomalies,
		},
		{
			// First-seen customers moving real money.
			Name:       "new-accounts",
			Expression: "velocity_count <= 1 && amount > 1000.0",
			Queue:      domain.QueueNewAccounts,
		},
	}
}

// NewGenerator creates a generator with the given routing rules compiled.
// bus may be nil; alert events are then not published.
func NewGenerator(routes []RoutingRule, bus domain.EventBus) (*Generator, error) {
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("transaction_type", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("merchant_id", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
		cel.Variable("degraded", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	g := &Generator{env: env, bus: bus}
	if err := g.LoadRoutes(routes); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadRoutes compiles and swaps in a new ordered route set. A compile error
// rejects the whole set so the previous routes stay active.
func (g *Generator) LoadRoutes(routes []RoutingRule) error {
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		ast, issues := g.env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("%w: route %q: %v", domain.ErrInvalidRuleExpression, r.Name, issues.Err())
		}
		prg, err := g.env.Program(ast)
		if err != nil {
			return fmt.Errorf("%w: route %q: %v", domain.ErrInvalidRuleExpression, r.Name, err)
		}
		compiled = append(compiled, compiledRoute{rule: r, program: prg})
	}

	g.mu.Lock()
	g.routes = compiled
	g.mu.Unlock()
	return nil
}

// Routes returns the loaded routing rules in evaluation order.
func (g *Generator) Routes() []RoutingRule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RoutingRule, len(g.routes))
	for i, c := range g.routes {
		out[i] = c.rule
	}
	return out
}

// GenerateInput bundles everything routing predicates may reference.
type GenerateInput struct {
	Tx            *domain.Transaction
	Result        *domain.ScoreResult
	VelocityCount int64
}

// Generate returns an alert when the final score meets the configured
// threshold, nil otherwise. The alert is routed but not persisted; the
// caller saves it and the created event is published on the bus.
func (g *Generator) Generate(ctx context.Context, in *GenerateInput, cfg *domain.ScoringConfig) *domain.Alert {
	if in.Result.FinalScore < cfg.AlertThreshold {
		return nil
	}

	now := time.Now().UTC()
	alert := &domain.Alert{
		ID:            uuid.New().String(),
		TransactionID: in.Tx.ID,
		RiskScore:     in.Result.FinalScore,
		RiskLevel:     in.Result.RiskLevel,
		Status:        domain.AlertPending,
		AssignedQueue: g.route(in),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return alert
}

// PublishCreated emits the alert-created event. Publish failures are logged,
// not propagated; the alert is already persisted.
func (g *Generator) PublishCreated(ctx context.Context, alert *domain.Alert) {
	if g.bus == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"alertId":%q,"transactionId":%q,"riskScore":%d,"queue":%q}`,
		alert.ID, alert.TransactionID, alert.RiskScore, alert.AssignedQueue))
	if err := g.bus.Publish(ctx, domain.TopicAlertCreated, payload); err != nil {
		slog.Warn("failed to publish alert created event", "alert_id", alert.ID, "error", err)
	}
}

// route evaluates routing predicates in order; first match wins, with the
// general queue as the total default. A predicate that errors at runtime is
// skipped so routing never fails a transaction.
func (g *Generator) route(in *GenerateInput) string {
	activation := map[string]any{
		"score":            int64(in.Result.FinalScore),
		"risk_level":       in.Result.RiskLevel,
		"amount":           in.Tx.Amount,
		"category":         in.Tx.Category,
		"transaction_type": in.Tx.Type,
		"customer_id":      in.Tx.CustomerID,
		"merchant_id":      in.Tx.MerchantID,
		"velocity_count":   in.VelocityCount,
		"degraded":         in.Result.Degraded,
	}

	g.mu.RLock()
	routes := g.routes
	g.mu.RUnlock()

	for _, route := range routes {
		out, _, err := route.program.Eval(activation)
		if err != nil {
			slog.Warn("skipping routing rule", "route", route.rule.Name, "error", err)
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			return route.rule.Queue
		}
	}

	return domain.QueueGeneral
}
