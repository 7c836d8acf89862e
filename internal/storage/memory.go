package storage

import (
	"context"
	"sync"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Memory keeps state in process. It backs tests and hosts that persist
// state themselves.
type Memory struct {
	mu       sync.Mutex
	patterns []model.Pattern
	state    model.DelegationState
	saves    int
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{state: model.DelegationState{Specialists: map[string]model.SpecialistState{}}}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Saves reports how many save calls have succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) LoadPatterns(ctx context.Context) ([]model.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Pattern, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *Memory) SavePatterns(ctx context.Context, patterns []model.Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = make([]model.Pattern, len(patterns))
	for i, p := range patterns {
		m.patterns[i] = p.Clone()
	}
	m.saves++
	return nil
}

func (m *Memory) LoadStats(ctx context.Context) (model.DelegationState, error) {
	if err := ctx.Err(); err != nil {
		return model.DelegationState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

func (m *Memory) SaveStats(ctx context.Context, state model.DelegationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = cloneState(state)
	m.saves++
	return nil
}

func cloneState(s model.DelegationState) model.DelegationState {
	out := model.DelegationState{
		Specialists: make(map[string]model.SpecialistState, len(s.Specialists)),
		UpdatedAt:   s.UpdatedAt,
	}
	for k, v := range s.Specialists {
		if v.Feedback.Recent != nil {
			v.Feedback.Recent = append([]model.FeedbackEntry(nil), v.Feedback.Recent...)
		}
		if v.Phrases != nil {
			v.Phrases = append([]model.LearnedPhrase(nil), v.Phrases...)
		}
		out.Specialists[k] = v
	}
	return out
}
