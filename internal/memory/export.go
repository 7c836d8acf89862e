package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/fuzzy"
	"github.com/mehmetkoksal-w/paired/internal/model"
	"github.com/mehmetkoksal-w/paired/schemas"
)

// PayloadVersion is written into every export.
const PayloadVersion = "1.0"

// ExportPayload is a portable, anonymized set of patterns.
type ExportPayload struct {
	Version        string          `json:"version"`
	ExportID       string          `json:"exportId"`
	ExportedAt     time.Time       `json:"exportedAt"`
	Agent          string          `json:"agent,omitempty"`
	MinSuccessRate float64         `json:"minSuccessRate"`
	Patterns       []model.Pattern `json:"patterns"`
}

// MergeStrategy decides what Import does with a pattern that already exists.
type MergeStrategy string

const (
	StrategyMerge   MergeStrategy = "merge"
	StrategyReplace MergeStrategy = "replace"
	StrategySkip    MergeStrategy = "skip"
)

// ParseStrategy maps a name to a MergeStrategy. The empty string selects
// merge.
func ParseStrategy(name string) (MergeStrategy, error) {
	switch MergeStrategy(name) {
	case "", StrategyMerge:
		return StrategyMerge, nil
	case StrategyReplace:
		return StrategyReplace, nil
	case StrategySkip:
		return StrategySkip, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q (want merge, replace or skip)", name)
	}
}

// ImportResult counts what Import did with each record.
type ImportResult struct {
	Imported int `json:"imported"`
	New      int `json:"new"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Export returns the patterns of agent (every agent when empty) whose success
// rate is at least minSuccessRate, with identifying values anonymized.
// Records are re-fingerprinted after anonymizing, and patterns that become
// identical are merged, so importing the payload reproduces it one to one.
// Recent outcome notes are free text and are never exported.
func (s *Store) Export(agent string, minSuccessRate float64) ExportPayload {
	now := s.opts.Now().UTC()

	s.mu.Lock()
	all := s.snapshotLocked()
	s.mu.Unlock()

	byID := make(map[string]model.Pattern, len(all))
	for _, p := range all {
		if agent != "" && p.Agent != agent {
			continue
		}
		if p.SuccessRate < minSuccessRate {
			continue
		}
		p.Context = Anonymize(p.Context)
		p.ID = Fingerprint(p.Agent, p.Type, p.Context)
		p.RecentOutcomes = nil
		if prev, ok := byID[p.ID]; ok {
			p = mergeImported(prev, p)
		}
		byID[p.ID] = p
	}
	out := make([]model.Pattern, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return ExportPayload{
		Version:        PayloadVersion,
		ExportID:       uuid.New().String(),
		ExportedAt:     now,
		Agent:          agent,
		MinSuccessRate: minSuccessRate,
		Patterns:       out,
	}
}

// DecodePayload validates raw JSON against the pattern payload schema and
// decodes it.
func DecodePayload(data []byte) (ExportPayload, error) {
	var payload ExportPayload
	if err := schemas.Validate(schemas.Patterns, data); err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// Import folds an exported payload into the store. Every record is
// normalized and re-fingerprinted, so ids from another installation are
// never trusted.
func (s *Store) Import(payload ExportPayload, strategy MergeStrategy) ImportResult {
	now := s.opts.Now().UTC()
	if strategy == "" {
		strategy = StrategyMerge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res ImportResult
	for _, rec := range payload.Patterns {
		if rec.Agent == "" || rec.Type == "" {
			res.Invalid++
			continue
		}
		incoming := sanitizeImported(rec, now)
		existing, ok := s.patterns[incoming.ID]
		if !ok {
			s.patterns[incoming.ID] = &incoming
			res.New++
			continue
		}
		switch strategy {
		case StrategySkip:
			res.Skipped++
			continue
		case StrategyReplace:
			incoming.RecentOutcomes = existing.RecentOutcomes
			s.patterns[incoming.ID] = &incoming
		default:
			merged := mergeImported(*existing, incoming)
			s.patterns[incoming.ID] = &merged
		}
		res.Updated++
	}
	res.Imported = res.New + res.Updated
	if res.Imported > 0 {
		s.dirty = true
	}

	s.log.Info("patterns imported",
		zap.String("strategy", string(strategy)),
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("invalid", res.Invalid))
	return res
}

func sanitizeImported(rec model.Pattern, now time.Time) model.Pattern {
	p := rec.Clone()
	p.Context = fuzzy.Normalize(p.Context)
	p.ID = Fingerprint(p.Agent, p.Type, p.Context)
	p.Tags = mergeTags(nil, p.Tags)
	p.Confidence = clamp(p.Confidence, 0.0, 1.0)
	p.SuccessRate = clamp(p.SuccessRate, 0.0, 1.0)
	p.RecentOutcomes = nil
	if p.UsageCount < 1 {
		p.UsageCount = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastUsedAt.IsZero() {
		p.LastUsedAt = p.CreatedAt
	}
	return p
}

// mergeImported blends two records of the same pattern: success rates are
// weighted by usage, usage is summed, the more confident outcome wins.
func mergeImported(existing, incoming model.Pattern) model.Pattern {
	merged := existing.Clone()
	total := existing.UsageCount + incoming.UsageCount
	if total > 0 {
		merged.SuccessRate = clamp(
			(existing.SuccessRate*float64(existing.UsageCount)+incoming.SuccessRate*float64(incoming.UsageCount))/float64(total),
			0.0, 1.0)
	}
	merged.UsageCount = total
	if incoming.Confidence > existing.Confidence {
		merged.Outcome = incoming.Outcome
		merged.Confidence = incoming.Confidence
	}
	if incoming.CreatedAt.Before(existing.CreatedAt) {
		merged.CreatedAt = incoming.CreatedAt
	}
	if incoming.LastUsedAt.After(existing.LastUsedAt) {
		merged.LastUsedAt = incoming.LastUsedAt
	}
	if merged.Project == "" {
		merged.Project = incoming.Project
	}
	merged.Tags = mergeTags(existing.Tags, incoming.Tags)
	return merged
}
