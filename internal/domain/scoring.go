package domain

import "time"

// ScoringMode selects how rule and model scores are combined.
type ScoringMode string

const (
	ModeRules  ScoringMode = "rules"
	ModeModel  ScoringMode = "model"
	ModeHybrid ScoringMode = "hybrid"
)

// RiskBand maps an inclusive score range to a risk level label.
type RiskBand struct {
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Contains reports whether score falls within the band.
func (b RiskBand) Contains(score int) bool {
	return score >= b.Min && score <= b.Max
}

// ScoringConfig is the process-wide scoring configuration. It is versioned
// state: every evaluation receives the config explicitly, nothing reads a
// hidden global.
type ScoringConfig struct {
	Version int         `json:"version"`
	Mode    ScoringMode `json:"mode"`

	// ModelName selects the trained model artifact for model/hybrid modes.
	ModelName string `json:"modelName"`

	// Hybrid weighting. Must sum to 1.0.
	RuleWeight  float64 `json:"ruleWeight"`
	ModelWeight float64 `json:"modelWeight"`

	// AlertThreshold is the minimum final score that generates an alert.
	AlertThreshold int `json:"alertThreshold"`

	// RiskThresholds are five contiguous bands partitioning [1,99].
	RiskThresholds []RiskBand `json:"riskThresholds"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DefaultScoringConfig returns the seeded configuration: hybrid 50/50 with
// the standard five-band partition.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Version:        1,
		Mode:           ModeHybrid,
		ModelName:      "decision_tree",
		RuleWeight:     0.5,
		ModelWeight:    0.5,
		AlertThreshold: 11,
		RiskThresholds: []RiskBand{
			{Min: 1, Max: 10, Label: "Very Low", Color: "#22c55e"},
			{Min: 11, Max: 50, Label: "Low", Color: "#84cc16"},
			{Min: 51, Max: 70, Label: "Medium", Color: "#eab308"},
			{Min: 71, Max: 90, Label: "High", Color: "#f97316"},
			{Min: 91, Max: 99, Label: "Very High", Color: "#ef4444"},
		},
	}
}

// ScoreResult is the complete scoring outcome for a transaction.
type ScoreResult struct {
	TransactionID string `json:"transactionId"`

	RuleScore  int  `json:"ruleScore"`
	ModelScore int  `json:"modelScore"`
	ModelUsed  bool `json:"modelUsed"`

	// Degraded is set when model scoring was unavailable and the engine
	// fell back to rules-only for this transaction.
	Degraded bool `json:"degraded,omitempty"`

	FinalScore int         `json:"finalScore"` // clamped to [0,100]
	RiskLevel  string      `json:"riskLevel"`
	Mode       ScoringMode `json:"mode"`

	TriggeredRules  []TriggeredRule `json:"triggeredRules"`
	SuggestedAction Action          `json:"suggestedAction"`

	// Processing metadata
	TraceID string `json:"traceId,omitempty"`
	RulesMs int64  `json:"rulesMs,omitempty"`
	ModelMs int64  `json:"modelMs,omitempty"`
	TotalMs int64  `json:"totalMs,omitempty"`
}

// ModelResult is a per-model offline performance snapshot. Produced by the
// training pipeline; read-only here, served for dashboarding.
type ModelResult struct {
	ModelName string  `json:"modelName"` // decision_tree, naive_bayes, knn, ann
	Accuracy  float64 `json:"accuracy"`
	F1Score   float64 `json:"f1Score"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	AUCROC    float64 `json:"aucRoc"`

	TrainedAt time.Time `json:"trainedAt,omitempty"`
}
