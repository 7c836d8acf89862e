// Package insight aggregates stored patterns into effectiveness reports.
package insight

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

const (
	topLimit            = 10
	insufficientData    = 10
	weakAgentRatio      = 0.6
	signatureKeyCount   = 3
	defaultMinFrequency = 3
)

// Options selects and tunes an analysis.
type Options struct {
	Agent              string // empty analyzes every agent
	WindowDays         int    // zero or less analyzes all time
	EffectiveThreshold float64
	MinFrequency       int
	Now                time.Time
}

// DefaultOptions returns a thirty day, all-agent analysis.
func DefaultOptions() Options {
	return Options{WindowDays: 30, EffectiveThreshold: 0.7, MinFrequency: defaultMinFrequency}
}

// AgentStats summarizes one agent's patterns.
type AgentStats struct {
	Agent           string  `json:"agent"`
	Total           int     `json:"total"`
	Effective       int     `json:"effective"`
	Ratio           float64 `json:"ratio"`
	MeanSuccessRate float64 `json:"meanSuccessRate"`
}

// Signature is a recurring situation: patterns sharing a type and their
// leading context keys.
type Signature struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Keys            []string  `json:"keys"`
	Frequency       int       `json:"frequency"`
	SuccessRate     float64   `json:"successRate"`
	Agents          []string  `json:"agents"`
	Projects        []string  `json:"projects,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	LastSeen        time.Time `json:"lastSeen"`
}

// Report is the result of Analyze.
type Report struct {
	GeneratedAt     time.Time       `json:"generatedAt"`
	Agent           string          `json:"agent,omitempty"`
	WindowDays      int             `json:"windowDays"`
	Total           int             `json:"total"`
	Effective       int             `json:"effective"`
	Ratio           float64         `json:"ratio"`
	Agents          []AgentStats    `json:"agents"`
	Top             []model.Pattern `json:"top"`
	Categories      map[string]int  `json:"categories"`
	Signatures      []Signature     `json:"signatures,omitempty"`
	Recommendations []string        `json:"recommendations"`
}

// Analyze builds a report over patterns.
func Analyze(patterns []model.Pattern, opts Options) Report {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.MinFrequency <= 0 {
		opts.MinFrequency = defaultMinFrequency
	}

	var cutoff time.Time
	if opts.WindowDays > 0 {
		cutoff = opts.Now.AddDate(0, 0, -opts.WindowDays)
	}

	var selected []model.Pattern
	for _, p := range patterns {
		if opts.Agent != "" && p.Agent != opts.Agent {
			continue
		}
		if !cutoff.IsZero() && p.CreatedAt.Before(cutoff) {
			continue
		}
		selected = append(selected, p)
	}

	r := Report{
		GeneratedAt: opts.Now,
		Agent:       opts.Agent,
		WindowDays:  opts.WindowDays,
		Total:       len(selected),
		Categories:  make(map[string]int),
	}

	perAgent := make(map[string]*AgentStats)
	for _, p := range selected {
		st, ok := perAgent[p.Agent]
		if !ok {
			st = &AgentStats{Agent: p.Agent}
			perAgent[p.Agent] = st
		}
		st.Total++
		st.MeanSuccessRate += p.SuccessRate
		if p.SuccessRate >= opts.EffectiveThreshold {
			st.Effective++
			r.Effective++
		}
		r.Categories[CategoryOf(p.Type)]++
	}
	r.Ratio = ratio(r.Effective, r.Total)

	r.Agents = make([]AgentStats, 0, len(perAgent))
	for _, st := range perAgent {
		st.Ratio = ratio(st.Effective, st.Total)
		st.MeanSuccessRate /= float64(st.Total)
		r.Agents = append(r.Agents, *st)
	}
	sort.Slice(r.Agents, func(i, j int) bool { return r.Agents[i].Agent < r.Agents[j].Agent })

	r.Top = topPatterns(selected, topLimit)
	r.Signatures = signatures(selected, opts)
	r.Recommendations = recommend(r)
	return r
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func topPatterns(patterns []model.Pattern, limit int) []model.Pattern {
	ranked := make([]model.Pattern, len(patterns))
	copy(ranked, patterns)
	sort.Slice(ranked, func(i, j int) bool {
		a := ranked[i].SuccessRate * float64(ranked[i].UsageCount)
		b := ranked[j].SuccessRate * float64(ranked[j].UsageCount)
		if a != b {
			return a > b
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func recommend(r Report) []string {
	var out []string
	if r.Total < insufficientData {
		out = append(out, fmt.Sprintf("Insufficient data: %d patterns recorded, at least %d are needed for reliable analysis", r.Total, insufficientData))
	}
	for _, st := range r.Agents {
		if st.Ratio < weakAgentRatio {
			out = append(out, fmt.Sprintf("Agent %s: only %.0f%% of %d patterns are effective, review its approach", st.Agent, st.Ratio*100, st.Total))
		}
	}
	if len(out) == 0 {
		out = append(out, "Pattern effectiveness is healthy")
	}
	return out
}

// signatureOf groups by type plus the first sorted context keys.
func signatureOf(p model.Pattern) (string, []string) {
	keys := p.Context.Keys()
	if len(keys) > signatureKeyCount {
		keys = keys[:signatureKeyCount]
	}
	return p.Type + "_" + strings.Join(keys, "_"), keys
}

func signatures(patterns []model.Pattern, opts Options) []Signature {
	groups := make(map[string][]model.Pattern)
	keysBySig := make(map[string][]string)
	for _, p := range patterns {
		sig, keys := signatureOf(p)
		groups[sig] = append(groups[sig], p)
		keysBySig[sig] = keys
	}

	var out []Signature
	for sig, group := range groups {
		if len(group) < opts.MinFrequency {
			continue
		}
		sum := sha256.Sum256([]byte(sig))
		s := Signature{
			ID:        hex.EncodeToString(sum[:])[:12],
			Type:      group[0].Type,
			Keys:      keysBySig[sig],
			Frequency: len(group),
		}
		agents := map[string]struct{}{}
		projects := map[string]struct{}{}
		var effective []model.Pattern
		for _, p := range group {
			s.SuccessRate += p.SuccessRate
			agents[p.Agent] = struct{}{}
			if p.Project != "" {
				projects[p.Project] = struct{}{}
			}
			if p.LastUsedAt.After(s.LastSeen) {
				s.LastSeen = p.LastUsedAt
			}
			if p.SuccessRate >= opts.EffectiveThreshold {
				effective = append(effective, p)
			}
		}
		s.SuccessRate /= float64(len(group))
		s.Agents = sortedKeys(agents)
		s.Projects = sortedKeys(projects)
		s.Recommendations = outcomeAdvice(effective)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var outcomeHints = []struct{ keyword, advice string }{
	{"refactor", "Consider refactoring similar code patterns"},
	{"test", "Add comprehensive tests for this pattern"},
	{"performance", "Monitor performance impact of similar changes"},
	{"documentation", "Document this pattern for future reference"},
}

func outcomeAdvice(effective []model.Pattern) []string {
	var out []string
	for _, hint := range outcomeHints {
		for _, p := range effective {
			if strings.Contains(strings.ToLower(p.Outcome), hint.keyword) {
				out = append(out, hint.advice)
				break
			}
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
