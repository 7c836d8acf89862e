// Package memory is the pattern store: it owns every learned pattern, merges
// repeated observations, ranks stored patterns against a new context, and
// moves pattern sets in and out of the process.
package memory

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/fuzzy"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Options configures a Store.
type Options struct {
	LearningRate       float64
	MinSimilarity      float64
	MaxResults         int
	MaxAge             time.Duration // zero keeps patterns matchable forever
	RecentOutcomeLimit int
	Similarity         fuzzy.Options
	Relevance          RelevanceWeights
	Specializations    Specializations
	Now                func() time.Time
	Logger             *zap.Logger
}

// DefaultOptions returns the stock store settings.
func DefaultOptions() Options {
	return Options{
		LearningRate:       0.1,
		MinSimilarity:      0.7,
		MaxResults:         10,
		MaxAge:             180 * 24 * time.Hour,
		RecentOutcomeLimit: 20,
		Similarity:         fuzzy.DefaultOptions(),
		Relevance:          DefaultRelevanceWeights(),
		Specializations:    Specializations{},
	}
}

// Match is a stored pattern ranked against a query context.
type Match struct {
	Pattern    model.Pattern `json:"pattern"`
	Similarity float64       `json:"similarity"`
	Relevance  float64       `json:"relevance"`
	Score      float64       `json:"score"`
}

// Store holds patterns keyed by fingerprint. All methods are safe for
// concurrent use; callers only ever receive copies.
type Store struct {
	mu       sync.Mutex
	patterns map[string]*model.Pattern
	opts     Options
	dirty    bool
	log      *zap.Logger
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.RecentOutcomeLimit <= 0 {
		opts.RecentOutcomeLimit = 20
	}
	if opts.Specializations == nil {
		opts.Specializations = Specializations{}
	}
	opts.LearningRate = clamp(opts.LearningRate, 0.0, 1.0)
	return &Store{
		patterns: make(map[string]*model.Pattern),
		opts:     opts,
		log:      opts.Logger,
	}
}

// Specializations returns the agent specialization table the store ranks with.
func (s *Store) Specializations() Specializations {
	return s.opts.Specializations
}

// Upsert registers an observation. It returns the pattern id and whether a
// new pattern was created.
func (s *Store) Upsert(obs Observation) (string, bool) {
	obs.Context = fuzzy.Normalize(obs.Context)
	id := Fingerprint(obs.Agent, obs.Type, obs.Context)
	now := s.opts.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
	if existing, ok := s.patterns[id]; ok {
		merged := Merge(*existing, obs, s.opts.LearningRate, now)
		s.patterns[id] = &merged
		s.log.Debug("pattern merged",
			zap.String("id", id),
			zap.Int("usage", merged.UsageCount),
			zap.Float64("successRate", merged.SuccessRate))
		return id, false
	}

	p := NewPattern(id, obs, now)
	s.patterns[id] = &p
	s.log.Debug("pattern created", zap.String("id", id), zap.String("agent", obs.Agent), zap.String("type", obs.Type))
	return id, true
}

// RecordUsage feeds a success or failure signal back into a pattern.
func (s *Store) RecordUsage(id, note string, success bool) (model.Pattern, error) {
	now := s.opts.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return model.Pattern{}, model.PatternNotFound(id)
	}

	signal := 0.0
	if success {
		signal = 1.0
	}
	p.SuccessRate = EMA(p.SuccessRate, signal, s.opts.LearningRate)
	p.UsageCount++
	p.LastUsedAt = now
	p.RecentOutcomes = append(p.RecentOutcomes, model.OutcomeNote{Note: note, Success: success, At: now})
	if over := len(p.RecentOutcomes) - s.opts.RecentOutcomeLimit; over > 0 {
		p.RecentOutcomes = append([]model.OutcomeNote(nil), p.RecentOutcomes[over:]...)
	}
	s.dirty = true

	return p.Clone(), nil
}

// Get returns a copy of one pattern.
func (s *Store) Get(id string) (model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return model.Pattern{}, model.PatternNotFound(id)
	}
	return p.Clone(), nil
}

// Query ranks the patterns visible to agent against ctx. Candidates are the
// agent's own patterns plus those whose type falls under its
// specializations, optionally restricted to one pattern type. Patterns below
// the minimum similarity or past the maximum age are dropped.
func (s *Store) Query(agent string, ctx model.Context, patternType string) []Match {
	query := fuzzy.Normalize(ctx)
	now := s.opts.Now().UTC()
	specs := s.opts.Specializations

	s.mu.Lock()
	var matches []Match
	for _, p := range s.patterns {
		if p.Agent != agent && !specs.Owns(agent, p.Type) {
			continue
		}
		if patternType != "" && p.Type != patternType {
			continue
		}
		if s.opts.MaxAge > 0 && now.Sub(p.LastUsedAt) > s.opts.MaxAge {
			continue
		}
		sim := fuzzy.Similarity(query, p.Context, s.opts.Similarity)
		if sim < s.opts.MinSimilarity {
			continue
		}
		rel := Relevance(*p, agent, specs, now, s.opts.Relevance)
		matches = append(matches, Match{
			Pattern:    p.Clone(),
			Similarity: sim,
			Relevance:  rel,
			Score:      sim * rel,
		})
	}
	s.mu.Unlock()

	sortMatches(matches)
	if len(matches) > s.opts.MaxResults {
		matches = matches[:s.opts.MaxResults]
	}
	return matches
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Pattern.UsageCount != b.Pattern.UsageCount {
			return a.Pattern.UsageCount > b.Pattern.UsageCount
		}
		return a.Pattern.ID < b.Pattern.ID
	})
}

// All returns copies of every pattern, ordered by id.
func (s *Store) All() []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of stored patterns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

func (s *Store) snapshotLocked() []model.Pattern {
	out := make([]model.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the store contents with previously persisted patterns.
// Records without an id, agent or type are skipped; out-of-range rates are
// clamped. It returns the number of skipped records and leaves the store
// clean.
func (s *Store) Restore(patterns []model.Pattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = make(map[string]*model.Pattern, len(patterns))
	skipped := 0
	for _, p := range patterns {
		if p.ID == "" || p.Agent == "" || p.Type == "" {
			skipped++
			s.log.Warn("skipping malformed pattern", zap.String("id", p.ID))
			continue
		}
		p = p.Clone()
		if p.Context == nil {
			p.Context = model.Context{}
		}
		p.SuccessRate = clamp(p.SuccessRate, 0.0, 1.0)
		p.Confidence = clamp(p.Confidence, 0.0, 1.0)
		if p.UsageCount < 0 {
			p.UsageCount = 0
		}
		s.patterns[p.ID] = &p
	}
	s.dirty = false
	return skipped
}

// Reset drops every pattern.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.patterns) > 0 {
		s.dirty = true
	}
	s.patterns = make(map[string]*model.Pattern)
}

// Dirty reports whether the store changed since it was last saved.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Snapshot returns every pattern and clears the dirty flag in one step, so
// a concurrent mutation after the snapshot is not lost.
func (s *Store) Snapshot() []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	return s.snapshotLocked()
}

// MarkDirty flags the store for the next flush, used when a save failed.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// MarkClean clears the dirty flag after a successful save.
func (s *Store) MarkClean() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}
