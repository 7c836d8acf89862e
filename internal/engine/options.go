package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/config"
	"github.com/mehmetkoksal-w/paired/internal/delegation"
	"github.com/mehmetkoksal-w/paired/internal/fuzzy"
	"github.com/mehmetkoksal-w/paired/internal/memory"
)

const day = 24 * time.Hour

// StoreOptions converts the matching and relevance sections into store
// options.
func StoreOptions(cfg config.Config, now func() time.Time, log *zap.Logger) memory.Options {
	m, r := cfg.Matching, cfg.Relevance
	specs := make(memory.Specializations, len(cfg.Specializations))
	for agent, prefixes := range cfg.Specializations {
		specs[agent] = append([]string(nil), prefixes...)
	}
	return memory.Options{
		LearningRate:       m.LearningRate,
		MinSimilarity:      m.MinSimilarity,
		MaxResults:         m.MaxResults,
		MaxAge:             time.Duration(m.MaxAgeDays) * day,
		RecentOutcomeLimit: m.RecentOutcomeLimit,
		Similarity: fuzzy.Options{
			FuzzyCutoff:   m.FuzzyCutoff,
			PartialCredit: m.PartialCredit,
		},
		Relevance: memory.RelevanceWeights{
			Base:           r.Base,
			SameAgent:      r.SameAgent,
			Specialization: r.Specialization,
			Recent:         r.Recent,
			RecentWindow:   time.Duration(r.RecentDays) * day,
			SuccessWeight:  r.SuccessWeight,
			Frequent:       r.Frequent,
			FrequentUsage:  r.FrequentUsage,
		},
		Specializations: specs,
		Now:             now,
		Logger:          log,
	}
}

// ProfileSpecs converts the configured trigger profiles.
func ProfileSpecs(cfg config.Config) []delegation.ProfileSpec {
	out := make([]delegation.ProfileSpec, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		out = append(out, delegation.ProfileSpec{
			Specialist: p.Specialist,
			Name:       p.Name,
			Role:       p.Role,
			Keywords:   append([]string(nil), p.Keywords...),
			Patterns:   append([]string(nil), p.Patterns...),
		})
	}
	return out
}

// Weights converts the classifier scoring terms.
func Weights(cfg config.Config) delegation.Weights {
	d := cfg.Delegation
	return delegation.Weights{
		KeywordBase:      d.KeywordBase,
		PatternBase:      d.PatternBase,
		PerMatch:         d.PerMatch,
		MaxLearningBonus: d.MaxLearningBonus,
		PhraseBonus:      d.PhraseBonus,
	}
}

// Settings converts the threshold controller settings.
func Settings(cfg config.Config, now func() time.Time, newID func() string, log *zap.Logger) delegation.Settings {
	d := cfg.Delegation
	s := delegation.DefaultSettings()
	s.Defaults.Trigger = d.TriggerThreshold
	s.Defaults.Delegation = d.DelegationThreshold
	s.Defaults.AdjustmentRate = d.AdjustmentRate
	s.Defaults.Min = d.MinThreshold
	s.Defaults.Max = d.MaxThreshold
	s.RecentWindow = d.RecentWindow
	s.AutoAdjustMinDelegations = d.AutoAdjustMinDelegations
	s.LearnThreshold = d.LearnThreshold
	s.PhraseStep = d.PhraseStep
	s.MaxPhrases = d.MaxPhrases
	s.Now = now
	s.NewID = newID
	s.Logger = log
	return s
}
