package model

import "time"

// Pattern is a learned association between a normalized context and an
// outcome, owned by one specialist.
type Pattern struct {
	ID      string   `json:"id"`
	Agent   string   `json:"agent"`
	Type    string   `json:"type"`
	Project string   `json:"project,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Context Context  `json:"context"`
	Outcome string   `json:"outcome"`

	// Confidence is the caller's belief in the best single observation seen.
	Confidence float64 `json:"confidence"`
	// SuccessRate is the EMA of observed effectiveness, always within [0,1].
	SuccessRate float64 `json:"successRate"`
	UsageCount  int     `json:"usageCount"`

	CreatedAt      time.Time     `json:"createdAt"`
	LastUsedAt     time.Time     `json:"lastUsedAt"`
	RecentOutcomes []OutcomeNote `json:"recentOutcomes,omitempty"`
}

// OutcomeNote records a single usage of a pattern.
type OutcomeNote struct {
	Note    string    `json:"note"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
}

// Clone returns a deep copy of p.
func (p Pattern) Clone() Pattern {
	out := p
	out.Context = p.Context.Clone()
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.RecentOutcomes != nil {
		out.RecentOutcomes = append([]OutcomeNote(nil), p.RecentOutcomes...)
	}
	return out
}
