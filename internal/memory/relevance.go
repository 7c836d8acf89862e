package memory

import (
	"time"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// RelevanceWeights are the terms of the relevance score. The stock values
// are empirical and kept configurable.
type RelevanceWeights struct {
	Base           float64
	SameAgent      float64
	Specialization float64
	Recent         float64
	RecentWindow   time.Duration
	SuccessWeight  float64
	Frequent       float64
	FrequentUsage  int
}

// DefaultRelevanceWeights returns the stock weights.
func DefaultRelevanceWeights() RelevanceWeights {
	return RelevanceWeights{
		Base:           0.5,
		SameAgent:      0.3,
		Specialization: 0.2,
		Recent:         0.1,
		RecentWindow:   7 * 24 * time.Hour,
		SuccessWeight:  0.2,
		Frequent:       0.1,
		FrequentUsage:  5,
	}
}

// Relevance scores how useful p is to agent, clamped to [0,1].
func Relevance(p model.Pattern, agent string, specs Specializations, now time.Time, w RelevanceWeights) float64 {
	score := w.Base
	if p.Agent == agent {
		score += w.SameAgent
	}
	if specs.Owns(agent, p.Type) {
		score += w.Specialization
	}
	if !p.LastUsedAt.IsZero() && now.Sub(p.LastUsedAt) <= w.RecentWindow {
		score += w.Recent
	}
	score += p.SuccessRate * w.SuccessWeight
	if p.UsageCount > w.FrequentUsage {
		score += w.Frequent
	}
	return clamp(score, 0.0, 1.0)
}

// clamp restricts a value to a range.
func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
