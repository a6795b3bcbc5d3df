// Package scoring merges rule and model scores into the final risk score
// and maps it to a configured risk level.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Outcome is the combined scoring result for one transaction.
type Outcome struct {
	FinalScore int
	RiskLevel  string
	Mode       domain.ScoringMode

	// Degraded is set when the model score was unavailable and the
	// combiner fell back to rules-only.
	Degraded bool
}

// Combine merges scores per the configured mode. modelOK reports whether a
// model score was produced; when false, model and hybrid modes fall back to
// rules-only rather than failing the transaction.
func Combine(cfg *domain.ScoringConfig, ruleScore, modelScore int, modelOK bool) (Outcome, error) {
	out := Outcome{Mode: cfg.Mode}

	switch cfg.Mode {
	case domain.ModeRules:
		out.FinalScore = clamp(ruleScore)

	case domain.ModeModel:
		if !modelOK {
			out.FinalScore = clamp(ruleScore)
			out.Degraded = true
			break
		}
		out.FinalScore = clamp(modelScore)

	case domain.ModeHybrid:
		if !modelOK {
			out.FinalScore = clamp(ruleScore)
			out.Degraded = true
			break
		}
		blended := cfg.RuleWeight*float64(ruleScore) + cfg.ModelWeight*float64(modelScore)
		out.FinalScore = clamp(int(math.Round(blended)))

	default:
		return out, fmt.Errorf("%w: unknown scoring mode %q", domain.ErrValidation, cfg.Mode)
	}

	level, err := RiskLevel(cfg, out.FinalScore)
	if err != nil {
		return out, err
	}
	out.RiskLevel = level

	return out, nil
}

// RiskLevel maps a final score to its configured band label. Bands partition
// [1,99]; scores 0 and 100 resolve to the edge bands. A miss means the
// configuration invariant was violated upstream.
func RiskLevel(cfg *domain.ScoringConfig, score int) (string, error) {
	lookup := score
	if lookup < 1 {
		lookup = 1
	}
	if lookup > 99 {
		lookup = 99
	}

	// Scan descending by Min; first containing band wins.
	bands := sortedBands(cfg.RiskThresholds)
	for i := len(bands) - 1; i >= 0; i-- {
		if bands[i].Contains(lookup) {
			return bands[i].Label, nil
		}
	}

	return "", fmt.Errorf("%w: no band contains score %d", domain.ErrUnconfiguredThresholds, score)
}

// ValidateConfig enforces the scoring configuration invariants at save
// time. Violations are rejected, never silently clamped.
func ValidateConfig(cfg *domain.ScoringConfig) error {
	switch cfg.Mode {
	case domain.ModeRules, domain.ModeModel, domain.ModeHybrid:
	default:
		return fmt.Errorf("%w: mode must be rules, model, or hybrid", domain.ErrValidation)
	}

	if cfg.Mode == domain.ModeHybrid {
		if cfg.RuleWeight < 0 || cfg.ModelWeight < 0 {
			return fmt.Errorf("%w: hybrid weights must be non-negative", domain.ErrValidation)
		}
		if math.Abs(cfg.RuleWeight+cfg.ModelWeight-1.0) > 1e-9 {
			return fmt.Errorf("%w: hybrid weights must sum to 1.0", domain.ErrValidation)
		}
	}

	if cfg.AlertThreshold < 1 || cfg.AlertThreshold > 99 {
		return fmt.Errorf("%w: alert threshold must be within [1,99]", domain.ErrValidation)
	}

	return validateBands(cfg.RiskThresholds)
}

// validateBands requires five contiguous, non-overlapping bands that
// partition [1,99] exactly.
func validateBands(bands []domain.RiskBand) error {
	if len(bands) != 5 {
		return fmt.Errorf("%w: expected 5 bands, got %d", domain.ErrUnconfiguredThresholds, len(bands))
	}

	sorted := sortedBands(bands)

	if sorted[0].Min != 1 {
		return fmt.Errorf("%w: bands must start at 1, got %d", domain.ErrUnconfiguredThresholds, sorted[0].Min)
	}
	if sorted[len(sorted)-1].Max != 99 {
		return fmt.Errorf("%w: bands must end at 99, got %d", domain.ErrUnconfiguredThresholds, sorted[len(sorted)-1].Max)
	}

	for i, b := range sorted {
		if b.Label == "" {
			return fmt.Errorf("%w: band %d has no label", domain.ErrUnconfiguredThresholds, i)
		}
		if b.Max < b.Min {
			return fmt.Errorf("%w: band %q has max < min", domain.ErrUnconfiguredThresholds, b.Label)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if b.Min <= prev.Max {
			return fmt.Errorf("%w: bands %q and %q overlap", domain.ErrUnconfiguredThresholds, prev.Label, b.Label)
		}
		if b.Min != prev.Max+1 {
			return fmt.Errorf("%w: gap between bands %q and %q", domain.ErrUnconfiguredThresholds, prev.Label, b.Label)
		}
	}

	return nil
}

func sortedBands(bands []domain.RiskBand) []domain.RiskBand {
	sorted := make([]domain.RiskBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
	return sorted
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
