package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/delegation"
	"github.com/mehmetkoksal-w/paired/internal/insight"
	"github.com/mehmetkoksal-w/paired/internal/matcher"
	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// RegisterPattern records an observation. It returns the pattern id and
// whether a new pattern was created.
func (e *Engine) RegisterPattern(ctx context.Context, obs memory.Observation) (string, bool) {
	id, created := e.matcher.Register(obs)
	e.metrics.Registered(created)
	e.mutated(ctx)
	return id, created
}

// FindMatchingPatterns ranks the stored patterns visible to agent against
// situation. An empty patternType matches every type.
func (e *Engine) FindMatchingPatterns(agent string, situation model.Context, patternType string) []memory.Match {
	matches := e.matcher.Find(agent, situation, patternType)
	e.metrics.Queried(0)
	return matches
}

// GetRecommendations renders up to limit suggestions. A non-positive limit
// uses the configured default.
func (e *Engine) GetRecommendations(agent string, situation model.Context, limit int) []matcher.Recommendation {
	if limit <= 0 {
		limit = e.cfg.Matching.RecommendationLimit
	}
	recs := e.matcher.Recommendations(agent, situation, limit)
	e.metrics.Queried(len(recs))
	return recs
}

// RecordPatternUsage feeds back whether applying a pattern worked.
func (e *Engine) RecordPatternUsage(ctx context.Context, id, note string, success bool) (model.Pattern, error) {
	p, err := e.matcher.RecordUsage(id, note, success)
	if err != nil {
		return model.Pattern{}, err
	}
	e.metrics.Used(success)
	e.mutated(ctx)
	return p, nil
}

// AnalyzePatternEffectiveness reports on the patterns of agent (all agents
// when empty) created within the last windowDays days. A non-positive window
// covers all time.
func (e *Engine) AnalyzePatternEffectiveness(agent string, windowDays int) insight.Report {
	opts := insight.DefaultOptions()
	opts.Agent = agent
	opts.WindowDays = windowDays
	opts.EffectiveThreshold = e.cfg.Matching.EffectiveThreshold
	opts.Now = e.now()
	return insight.Analyze(e.store.All(), opts)
}

// ExportPatterns returns the anonymized patterns of agent whose success
// rate is at least minSuccessRate.
func (e *Engine) ExportPatterns(agent string, minSuccessRate float64) memory.ExportPayload {
	payload := e.store.Export(agent, minSuccessRate)
	e.log.Info("patterns exported", zap.String("agent", agent), zap.Int("count", len(payload.Patterns)))
	return payload
}

// ImportPatterns merges a payload into the store.
func (e *Engine) ImportPatterns(ctx context.Context, payload memory.ExportPayload, strategy memory.MergeStrategy) memory.ImportResult {
	res := e.store.Import(payload, strategy)
	if res.Imported > 0 {
		e.mutated(ctx)
	}
	return res
}

// Classify ranks the specialists whose trigger threshold text clears.
func (e *Engine) Classify(text string) []delegation.Decision {
	return e.delegator.Classify(text)
}

// LearnFromInteraction strengthens the phrases of text for confident
// specialists.
func (e *Engine) LearnFromInteraction(ctx context.Context, text string) map[string][]string {
	learned := e.delegator.LearnFromInteraction(text)
	if len(learned) > 0 {
		e.mutated(ctx)
	}
	return learned
}

// ProvideDelegationFeedback records how a delegation went and returns the
// specialist's updated thresholds.
func (e *Engine) ProvideDelegationFeedback(ctx context.Context, specialist string, successful bool, satisfaction float64) (model.Thresholds, error) {
	t, err := e.delegator.Feedback(specialist, successful, satisfaction)
	if err != nil {
		return model.Thresholds{}, err
	}
	e.metrics.FeedbackRecorded(specialist, successful)
	e.mutated(ctx)
	return t, nil
}

// AutoAdjustThresholds nudges trigger thresholds from long-run outcomes.
func (e *Engine) AutoAdjustThresholds(ctx context.Context) []delegation.Adjustment {
	adj := e.delegator.AutoAdjust()
	e.metrics.Adjusted(len(adj))
	if len(adj) > 0 {
		e.log.Info("thresholds auto-adjusted", zap.Int("changes", len(adj)))
		e.mutated(ctx)
	}
	return adj
}

// GetAdaptiveStats returns every specialist's adaptive state.
func (e *Engine) GetAdaptiveStats() []delegation.SpecialistStats {
	return e.delegator.Stats()
}

// ResetLearning restores every specialist to its default thresholds and
// forgets feedback and learned phrases.
func (e *Engine) ResetLearning(ctx context.Context) {
	e.delegator.Reset()
	e.log.Info("delegation learning reset")
	e.mutated(ctx)
}

// Pattern returns one stored pattern.
func (e *Engine) Pattern(id string) (model.Pattern, error) {
	return e.store.Get(id)
}

// Patterns returns every stored pattern.
func (e *Engine) Patterns() []model.Pattern {
	return e.store.All()
}
