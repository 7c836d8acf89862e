package model

import "time"

// Thresholds are the adaptive cutoffs of one specialist.
// Min <= Trigger, Delegation <= Max holds after every update.
type Thresholds struct {
	Trigger        float64 `json:"triggerThreshold"`
	Delegation     float64 `json:"delegationThreshold"`
	AdjustmentRate float64 `json:"adjustmentRate"`
	Min            float64 `json:"minThreshold"`
	Max            float64 `json:"maxThreshold"`
}

// FeedbackEntry is one delegation outcome reported by the host.
type FeedbackEntry struct {
	ID           string    `json:"id"`
	Successful   bool      `json:"successful"`
	Satisfaction float64   `json:"satisfaction"`
	Timestamp    time.Time `json:"timestamp"`
}

// Feedback holds the all-time counters and the short recent window.
type Feedback struct {
	Successful   int             `json:"successful"`
	Unsuccessful int             `json:"unsuccessful"`
	Total        int             `json:"totalDelegations"`
	Recent       []FeedbackEntry `json:"recentFeedback"`
}

// LearnedPhrase is a two-word phrase associated with a specialist.
type LearnedPhrase struct {
	Phrase   string    `json:"phrase"`
	Weight   float64   `json:"weight"`
	Seen     int       `json:"seen"`
	LastSeen time.Time `json:"lastSeen"`
}

// SpecialistState is the persisted adaptive state of one specialist.
type SpecialistState struct {
	Thresholds Thresholds      `json:"thresholds"`
	Feedback   Feedback        `json:"feedback"`
	Phrases    []LearnedPhrase `json:"phrases,omitempty"`
}

// DelegationState is the persisted adaptive state of every specialist.
type DelegationState struct {
	Specialists map[string]SpecialistState `json:"specialists"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}
