// Package matcher turns ranked patterns into recommendations and routes
// usage feedback back into the pattern store.
package matcher

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// DefaultLimit is used when a caller asks for zero or fewer recommendations.
const DefaultLimit = 5

// GenericTemplate renders patterns whose type has no template of its own.
const GenericTemplate = "A similar situation was resolved with: {outcome}"

// DefaultTemplates maps pattern types to recommendation text. {outcome},
// {agent} and {type} are substituted.
func DefaultTemplates() map[string]string {
	return map[string]string{
		"bug_fix":             "Based on similar issues, consider: {outcome}",
		"refactor":            "A comparable refactor worked before: {outcome}",
		"optimization":        "Similar performance work suggests: {outcome}",
		"design_pattern":      "This design has been applied before: {outcome}",
		"component_structure": "A proven component layout for this case: {outcome}",
		"process_improvement": "The team improved a similar process by: {outcome}",
		"knowledge_gap":       "This gap was closed before by: {outcome}",
		"team_coordination":   "Coordination that worked in a similar case: {outcome}",
	}
}

// Recommendation is a templated suggestion derived from one matched pattern.
type Recommendation struct {
	PatternID  string  `json:"patternId"`
	Agent      string  `json:"agent"`
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	Relevance  float64 `json:"relevance"`
}

// Matcher orchestrates registration, lookup and feedback over a Store.
type Matcher struct {
	store     *memory.Store
	templates map[string]string
	log       *zap.Logger
}

// New creates a Matcher. Entries in templates override the defaults.
func New(store *memory.Store, templates map[string]string, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	merged := DefaultTemplates()
	for k, v := range templates {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	return &Matcher{store: store, templates: merged, log: logger}
}

// Register records an observation and returns the pattern id.
func (m *Matcher) Register(obs memory.Observation) (string, bool) {
	return m.store.Upsert(obs)
}

// Find returns the patterns most relevant to agent in ctx.
func (m *Matcher) Find(agent string, ctx model.Context, patternType string) []memory.Match {
	matches := m.store.Query(agent, ctx, patternType)
	m.log.Debug("patterns matched", zap.String("agent", agent), zap.Int("count", len(matches)))
	return matches
}

// Recommendations renders up to limit suggestions for agent in ctx, ordered
// by confidence. Patterns that would render the same text are reported once.
func (m *Matcher) Recommendations(agent string, ctx model.Context, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches := m.store.Query(agent, ctx, "")
	recs := make([]Recommendation, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		text := m.render(match.Pattern)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		recs = append(recs, Recommendation{
			PatternID:  match.Pattern.ID,
			Agent:      match.Pattern.Agent,
			Type:       match.Pattern.Type,
			Text:       text,
			Outcome:    match.Pattern.Outcome,
			Confidence: match.Similarity * match.Relevance,
			Similarity: match.Similarity,
			Relevance:  match.Relevance,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// RecordUsage reports whether applying a pattern worked.
func (m *Matcher) RecordUsage(id, note string, success bool) (model.Pattern, error) {
	p, err := m.store.RecordUsage(id, note, success)
	if err != nil {
		return model.Pattern{}, err
	}
	m.log.Debug("pattern usage recorded",
		zap.String("id", id),
		zap.Bool("success", success),
		zap.Float64("successRate", p.SuccessRate))
	return p, nil
}

func (m *Matcher) render(p model.Pattern) string {
	tmpl, ok := m.templates[p.Type]
	if !ok {
		tmpl = GenericTemplate
	}
	return strings.NewReplacer(
		"{outcome}", p.Outcome,
		"{agent}", p.Agent,
		"{type}", p.Type,
	).Replace(tmpl)
}
