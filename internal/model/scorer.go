// Package model provides transaction scoring against trained model
// artifacts. Training itself is an offline batch job; artifacts are loaded
// read-only.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Known model names matching the offline training pipeline.
const (
	ModelDecisionTree = "decision_tree"
	ModelNaiveBayes   = "naive_bayes"
	ModelKNN          = "knn"
	ModelANN          = "ann"
	ModelHeuristic    = "heuristic"
)

// Artifact is a trained model exported by the training pipeline as JSON:
// a linear decision function over the extracted feature vector, squashed
// through a sigmoid.
type Artifact struct {
	ModelName string    `json:"modelName"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	TrainedAt time.Time `json:"trainedAt"`
}

// Scorer produces fraud probabilities from trained model artifacts.
type Scorer struct {
	mu        sync.RWMutex
	dir       string
	artifacts map[string]*Artifact
}

// NewScorer creates a scorer loading artifacts from dir. Missing artifacts
// are not an error at construction time; scoring a model without an
// artifact returns ErrModelUnavailable.
func NewScorer(dir string) *Scorer {
	s := &Scorer{
		dir:       dir,
		artifacts: make(map[string]*Artifact),
	}
	s.loadArtifacts()
	return s
}

// loadArtifacts scans the artifact directory for <name>.json files.
func (s *Scorer) loadArtifacts() {
	if s.dir == "" {
		return
	}

	for _, name := range []string{ModelDecisionTree, ModelNaiveBayes, ModelKNN, ModelANN} {
		path := filepath.Join(s.dir, name+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var art Artifact
		if err := json.Unmarshal(data, &art); err != nil {
			continue
		}
		if art.ModelName == "" {
			art.ModelName = name
		}

		s.mu.Lock()
		s.artifacts[name] = &art
		s.mu.Unlock()
	}
}

// Reload re-reads artifacts from disk, picking up retrained models.
func (s *Scorer) Reload() {
	s.mu.Lock()
	s.artifacts = make(map[string]*Artifact)
	s.mu.Unlock()
	s.loadArtifacts()
}

// Available reports whether a trained artifact exists for the model.
// The heuristic model is always available.
func (s *Scorer) Available(modelName string) bool {
	if modelName == ModelHeuristic {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[modelName]
	return ok
}

// Predict returns the fraud probability in [0,1] for a transaction using
// the named model. Returns ErrModelUnavailable when no artifact is loaded;
// the caller decides the fallback per scoring mode.
func (s *Scorer) Predict(modelName string, tx *domain.Transaction) (float64, error) {
	if modelName == ModelHeuristic {
		return heuristicProbability(tx), nil
	}

	s.mu.RLock()
	art, ok := s.artifacts[modelName]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: no artifact for model %q", domain.ErrModelUnavailable, modelName)
	}

	features := ExtractFeatures(tx)
	if len(art.Weights) != len(features) {
		return 0, fmt.Errorf("%w: artifact for %q expects %d features, extractor produces %d",
			domain.ErrModelUnavailable, modelName, len(art.Weights), len(features))
	}

	z := art.Intercept
	for i, w := range art.Weights {
		z += w * features[i]
	}

	p := sigmoid(z)
	return clampProb(p), nil
}

// Score converts the model probability to the 0-100 score scale.
func (s *Scorer) Score(modelName string, tx *domain.Transaction) (int, error) {
	p, err := s.Predict(modelName, tx)
	if err != nil {
		return 0, err
	}
	return int(math.Round(p * 100)), nil
}

// FeatureCount is the length of the extracted feature vector.
const FeatureCount = 6

// ExtractFeatures reduces a transaction to the model feature vector:
// amount, log-amount, category risk, balance-delta ratio, hour bucket,
// and a drain indicator.
func ExtractFeatures(tx *domain.Transaction) []float64 {
	amount := tx.Amount
	logAmount := math.Log1p(math.Max(amount, 0))

	balanceDelta := math.Abs(tx.OldBalanceOrig - tx.NewBalanceOrig)
	deltaRatio := 0.0
	if amount > 0 {
		deltaRatio = balanceDelta / amount
	}

	drain := 0.0
	if tx.OldBalanceOrig > 0 && tx.NewBalanceOrig == 0 {
		drain = 1.0
	}

	hour := float64(tx.Timestamp.UTC().Hour()) / 23.0

	return []float64{
		amount / 10000.0,
		logAmount,
		categoryRisk(tx.Category),
		deltaRatio,
		hour,
		drain,
	}
}

// categoryRisk assigns a prior risk weight per product category.
func categoryRisk(category string) float64 {
	switch strings.ToLower(category) {
	case "crypto", "transfer", "gambling", "gaming":
		return 0.9
	case "electronics", "c":
		return 0.6
	case "r", "retail", "w", "web":
		return 0.3
	default:
		return 0.2
	}
}

// heuristicProbability is the fallback decision function used when no
// trained artifact is deployed. Mirrors the risk tiers the trained models
// learn: amount bands, risky categories, and suspicious balance movement.
func heuristicProbability(tx *domain.Transaction) float64 {
	risk := 0.05

	switch {
	case tx.Amount > 5000:
		risk += 0.4
	case tx.Amount > 1000:
		risk += 0.2
	case tx.Amount > 500:
		risk += 0.1
	}

	if categoryRisk(tx.Category) >= 0.6 {
		risk += 0.3
	}

	if tx.OldBalanceOrig > 0 && tx.NewBalanceOrig >= 0 {
		balanceChange := math.Abs(tx.OldBalanceOrig - tx.NewBalanceOrig)
		if balanceChange > tx.Amount*1.5 {
			risk += 0.2
		}
	}

	return math.Min(risk, 0.95)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, 0.0), 1.0)
}
