// Package delegation decides which specialist should take a free-text request
// and tunes that decision from feedback.
package delegation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// ProfileSpec describes the trigger vocabulary of one specialist.
type ProfileSpec struct {
	Specialist string
	Name       string
	Role       string
	Keywords   []string
	Patterns   []string
}

// Profile is a compiled ProfileSpec. It is immutable once built.
type Profile struct {
	Specialist string
	Name       string
	Role       string
	Keywords   []string
	Patterns   []*regexp.Regexp

	keywordSet map[string]struct{}
}

// CompileProfile lower-cases keywords and compiles patterns case-insensitively.
func CompileProfile(spec ProfileSpec) (Profile, error) {
	if strings.TrimSpace(spec.Specialist) == "" {
		return Profile{}, fmt.Errorf("profile %q: specialist is required", spec.Name)
	}
	p := Profile{
		Specialist: spec.Specialist,
		Name:       spec.Name,
		Role:       spec.Role,
		keywordSet: make(map[string]struct{}, len(spec.Keywords)),
	}
	for _, kw := range spec.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := p.keywordSet[kw]; dup {
			continue
		}
		p.keywordSet[kw] = struct{}{}
		p.Keywords = append(p.Keywords, kw)
	}
	for _, expr := range spec.Patterns {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %s: pattern %q: %w", spec.Specialist, expr, err)
		}
		p.Patterns = append(p.Patterns, re)
	}
	return p, nil
}

// HasKeyword reports whether phrase is one of the profile's keywords.
func (p Profile) HasKeyword(phrase string) bool {
	_, ok := p.keywordSet[phrase]
	return ok
}

// Weights are the terms of the trigger score.
type Weights struct {
	KeywordBase      float64
	PatternBase      float64
	PerMatch         float64
	MaxLearningBonus float64
	PhraseBonus      float64
}

// DefaultWeights returns the stock scoring weights.
func DefaultWeights() Weights {
	return Weights{
		KeywordBase:      0.5,
		PatternBase:      0.4,
		PerMatch:         0.1,
		MaxLearningBonus: 0.2,
		PhraseBonus:      0.1,
	}
}

// Score is the raw trigger score of one specialist for one input.
type Score struct {
	Specialist    string   `json:"specialist"`
	Name          string   `json:"name,omitempty"`
	Confidence    float64  `json:"confidence"`
	KeywordHits   int      `json:"keywordHits"`
	PatternHits   int      `json:"patternHits"`
	LearningBonus float64  `json:"learningBonus"`
	Signals       []string `json:"signals,omitempty"`
}

// Classifier scores text against a fixed set of profiles.
type Classifier struct {
	profiles []Profile
	weights  Weights
}

// NewClassifier compiles specs. Duplicate specialists are rejected.
func NewClassifier(specs []ProfileSpec, weights Weights) (*Classifier, error) {
	c := &Classifier{weights: weights}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		p, err := CompileProfile(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.Specialist]; dup {
			return nil, fmt.Errorf("duplicate profile for specialist %s", p.Specialist)
		}
		seen[p.Specialist] = struct{}{}
		c.profiles = append(c.profiles, p)
	}
	sort.Slice(c.profiles, func(i, j int) bool { return c.profiles[i].Specialist < c.profiles[j].Specialist })
	return c, nil
}

// Specialists returns the profiled specialists in sorted order.
func (c *Classifier) Specialists() []string {
	out := make([]string, len(c.profiles))
	for i, p := range c.profiles {
		out[i] = p.Specialist
	}
	return out
}

// Profile returns the compiled profile of a specialist.
func (c *Classifier) Profile(specialist string) (Profile, bool) {
	for _, p := range c.profiles {
		if p.Specialist == specialist {
			return p, true
		}
	}
	return Profile{}, false
}

// Score rates text against every profile, including specialists that score
// zero. learned supplies each specialist's learned phrases for the bonus.
func (c *Classifier) Score(text string, learned map[string][]model.LearnedPhrase) []Score {
	lower := strings.ToLower(strings.TrimSpace(text))
	out := make([]Score, 0, len(c.profiles))
	for _, p := range c.profiles {
		s := Score{Specialist: p.Specialist, Name: p.Name}
		if lower == "" {
			out = append(out, s)
			continue
		}

		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				s.KeywordHits++
				s.Signals = append(s.Signals, kw)
			}
		}
		for _, re := range p.Patterns {
			if re.MatchString(lower) {
				s.PatternHits++
				s.Signals = append(s.Signals, re.String())
			}
		}

		if s.KeywordHits > 0 {
			s.Confidence += c.weights.KeywordBase + c.weights.PerMatch*float64(s.KeywordHits)
		}
		if s.PatternHits > 0 {
			s.Confidence += c.weights.PatternBase + c.weights.PerMatch*float64(s.PatternHits)
		}

		for _, lp := range learned[p.Specialist] {
			if lp.Phrase != "" && strings.Contains(lower, lp.Phrase) {
				s.LearningBonus += lp.Weight * c.weights.PhraseBonus
			}
		}
		s.LearningBonus = clamp(s.LearningBonus, 0, c.weights.MaxLearningBonus)
		s.Confidence = clamp(s.Confidence+s.LearningBonus, 0, 1)
		out = append(out, s)
	}
	return out
}

func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
