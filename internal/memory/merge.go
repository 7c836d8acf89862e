package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Observation is one report of an agent producing an outcome in a context.
type Observation struct {
	Agent      string
	Type       string
	Context    model.Context
	Outcome    string
	Confidence float64
	Project    string
	Tags       []string
}

// Fingerprint derives the stable pattern id from the agent, the pattern type
// and an already normalized context.
func Fingerprint(agent, patternType string, ctx model.Context) string {
	h := sha256.New()
	h.Write([]byte(agent))
	h.Write([]byte{0})
	h.Write([]byte(patternType))
	h.Write([]byte{0})
	// map keys are sorted by encoding/json, scalars cannot fail
	data, _ := json.Marshal(ctx)
	h.Write(data)
	return "pat_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// EMA blends an observation into a running estimate and keeps the result in
// [0,1].
func EMA(current, observation, alpha float64) float64 {
	return clamp(current*(1-alpha)+observation*alpha, 0.0, 1.0)
}

// NewPattern builds the first record for an observation whose context is
// already normalized.
func NewPattern(id string, obs Observation, now time.Time) model.Pattern {
	conf := clamp(obs.Confidence, 0.0, 1.0)
	return model.Pattern{
		ID:          id,
		Agent:       obs.Agent,
		Type:        obs.Type,
		Project:     obs.Project,
		Tags:        mergeTags(nil, obs.Tags),
		Context:     obs.Context.Clone(),
		Outcome:     obs.Outcome,
		Confidence:  conf,
		SuccessRate: conf,
		UsageCount:  1,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
}

// Merge folds a repeated observation into an existing pattern. The success
// rate moves by EMA toward the observation's confidence; outcome and
// confidence are replaced only by a strictly more confident observation.
func Merge(existing model.Pattern, obs Observation, alpha float64, now time.Time) model.Pattern {
	merged := existing.Clone()
	conf := clamp(obs.Confidence, 0.0, 1.0)

	merged.SuccessRate = EMA(existing.SuccessRate, conf, alpha)
	merged.UsageCount++
	merged.LastUsedAt = now
	if conf > existing.Confidence {
		merged.Outcome = obs.Outcome
		merged.Confidence = conf
	}
	if merged.Project == "" {
		merged.Project = obs.Project
	}
	merged.Tags = mergeTags(merged.Tags, obs.Tags)
	return merged
}

func mergeTags(existing, incoming []string) []string {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	var out []string
	for _, group := range [][]string{existing, incoming} {
		for _, tag := range group {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}
