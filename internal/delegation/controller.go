package delegation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Settings tune the adaptive threshold controller.
type Settings struct {
	Defaults                 model.Thresholds
	RecentWindow             int
	LowSuccessRate           float64
	HighSuccessRate          float64
	LowSatisfaction          float64
	HighSatisfaction         float64
	AutoAdjustMinDelegations int
	LearnThreshold           float64
	PhraseStep               float64
	MaxPhrases               int
	Now                      func() time.Time
	NewID                    func() string
	Logger                   *zap.Logger
}

// DefaultThresholds returns the thresholds every specialist starts from.
func DefaultThresholds() model.Thresholds {
	return model.Thresholds{
		Trigger:        0.2,
		Delegation:     0.4,
		AdjustmentRate: 0.05,
		Min:            0.1,
		Max:            0.8,
	}
}

// DefaultSettings returns the stock controller settings.
func DefaultSettings() Settings {
	return Settings{
		Defaults:                 DefaultThresholds(),
		RecentWindow:             10,
		LowSuccessRate:           0.3,
		HighSuccessRate:          0.7,
		LowSatisfaction:          0.3,
		HighSatisfaction:         0.8,
		AutoAdjustMinDelegations: 5,
		LearnThreshold:           0.6,
		PhraseStep:               0.1,
		MaxPhrases:               10,
	}
}

// SpecialistStats is the read-only view of one specialist's adaptive state.
type SpecialistStats struct {
	Specialist        string                `json:"specialist"`
	Thresholds        model.Thresholds      `json:"thresholds"`
	Total             int                   `json:"totalDelegations"`
	Successful        int                   `json:"successful"`
	Unsuccessful      int                   `json:"unsuccessful"`
	SuccessRate       float64               `json:"successRate"`
	RecentSuccessRate float64               `json:"recentSuccessRate"`
	MeanSatisfaction  float64               `json:"meanSatisfaction"`
	Phrases           []model.LearnedPhrase `json:"learnedPhrases,omitempty"`
}

// Adjustment records one trigger threshold change made by AutoAdjust.
type Adjustment struct {
	Specialist string  `json:"specialist"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
}

type specialistState struct {
	thresholds model.Thresholds
	feedback   model.Feedback
	phrases    map[string]*model.LearnedPhrase
}

// Controller owns per-specialist thresholds, feedback history and learned
// phrases. The set of specialists is fixed at construction.
type Controller struct {
	mu          sync.Mutex
	settings    Settings
	specialists map[string]*specialistState
	dirty       bool
	log         *zap.Logger
}

// NewController creates a controller for the given specialists, all starting
// from the default thresholds.
func NewController(specialists []string, settings Settings) *Controller {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.NewID == nil {
		settings.NewID = func() string { return uuid.New().String() }
	}
	if settings.Logger == nil {
		settings.Logger = zap.NewNop()
	}
	if settings.RecentWindow <= 0 {
		settings.RecentWindow = 10
	}
	if settings.MaxPhrases <= 0 {
		settings.MaxPhrases = 10
	}
	settings.Defaults = sanitizeThresholds(settings.Defaults, DefaultThresholds())

	c := &Controller{
		settings:    settings,
		specialists: make(map[string]*specialistState, len(specialists)),
		log:         settings.Logger,
	}
	for _, name := range specialists {
		c.specialists[name] = c.freshState()
	}
	return c
}

func (c *Controller) freshState() *specialistState {
	return &specialistState{
		thresholds: c.settings.Defaults,
		phrases:    make(map[string]*model.LearnedPhrase),
	}
}

// sanitizeThresholds orders min and max, then clamps both thresholds.
func sanitizeThresholds(t, fallback model.Thresholds) model.Thresholds {
	if t.Max == 0 && t.Min == 0 {
		t.Min, t.Max = fallback.Min, fallback.Max
	}
	if t.Min > t.Max {
		t.Min, t.Max = t.Max, t.Min
	}
	t.Min = clamp(t.Min, 0, 1)
	t.Max = clamp(t.Max, 0, 1)
	if t.AdjustmentRate <= 0 {
		t.AdjustmentRate = fallback.AdjustmentRate
	}
	t.Trigger = clamp(t.Trigger, t.Min, t.Max)
	t.Delegation = clamp(t.Delegation, t.Min, t.Max)
	return t
}

func (c *Controller) state(specialist string) (*specialistState, error) {
	st, ok := c.specialists[specialist]
	if !ok {
		return nil, model.SpecialistNotFound(specialist)
	}
	return st, nil
}

// Thresholds returns the current thresholds of a specialist.
func (c *Controller) Thresholds(specialist string) (model.Thresholds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.state(specialist)
	if err != nil {
		return model.Thresholds{}, err
	}
	return st.thresholds, nil
}

// RecordFeedback folds one delegation outcome into a specialist's history
// and moves its thresholds. Satisfaction is clamped to [0,1].
func (c *Controller) RecordFeedback(specialist string, successful bool, satisfaction float64) (model.Thresholds, error) {
	satisfaction = clamp(satisfaction, 0, 1)
	now := c.settings.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(specialist)
	if err != nil {
		return model.Thresholds{}, err
	}

	fb := &st.feedback
	fb.Total++
	if successful {
		fb.Successful++
	} else {
		fb.Unsuccessful++
	}
	fb.Recent = append(fb.Recent, model.FeedbackEntry{
		ID:           c.settings.NewID(),
		Successful:   successful,
		Satisfaction: satisfaction,
		Timestamp:    now,
	})
	if over := len(fb.Recent) - c.settings.RecentWindow; over > 0 {
		fb.Recent = append([]model.FeedbackEntry(nil), fb.Recent[over:]...)
	}

	t := &st.thresholds
	before := *t
	rate := recentSuccessRate(fb.Recent)
	switch {
	case rate < c.settings.LowSuccessRate:
		t.Trigger = clamp(t.Trigger+t.AdjustmentRate, t.Min, t.Max)
		t.Delegation = clamp(t.Delegation+t.AdjustmentRate, t.Min, t.Max)
	case rate > c.settings.HighSuccessRate:
		t.Trigger = clamp(t.Trigger-t.AdjustmentRate, t.Min, t.Max)
		t.Delegation = clamp(t.Delegation-t.AdjustmentRate, t.Min, t.Max)
	}
	if satisfaction < c.settings.LowSatisfaction {
		t.Delegation = clamp(t.Delegation+2*t.AdjustmentRate, t.Min, t.Max)
	} else if satisfaction > c.settings.HighSatisfaction {
		t.Trigger = clamp(t.Trigger-0.5*t.AdjustmentRate, t.Min, t.Max)
	}
	c.dirty = true

	c.log.Debug("delegation feedback",
		zap.String("specialist", specialist),
		zap.Bool("successful", successful),
		zap.Float64("satisfaction", satisfaction),
		zap.Float64("recentSuccessRate", rate),
		zap.Float64("triggerBefore", before.Trigger),
		zap.Float64("trigger", t.Trigger),
		zap.Float64("delegationBefore", before.Delegation),
		zap.Float64("delegation", t.Delegation))
	return *t, nil
}

func recentSuccessRate(recent []model.FeedbackEntry) float64 {
	if len(recent) == 0 {
		return 0
	}
	ok := 0
	for _, e := range recent {
		if e.Successful {
			ok++
		}
	}
	return float64(ok) / float64(len(recent))
}

func meanSatisfaction(recent []model.FeedbackEntry) float64 {
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, e := range recent {
		sum += e.Satisfaction
	}
	return sum / float64(len(recent))
}

// AutoAdjust applies the slow trigger threshold correction to every
// specialist with enough history and returns the changes it made.
func (c *Controller) AutoAdjust() []Adjustment {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Adjustment
	for _, name := range c.sortedNamesLocked() {
		st := c.specialists[name]
		fb := st.feedback
		if fb.Total < c.settings.AutoAdjustMinDelegations {
			continue
		}
		rate := float64(fb.Successful) / float64(fb.Total)
		sat := meanSatisfaction(fb.Recent)

		var step float64
		switch {
		case rate >= 0.8 && sat >= 0.7:
			step = -0.02
		case rate >= 0.6:
			step = -0.01
		case rate < 0.4 || sat < 0.3:
			step = 0.02
		default:
			step = 0.01
		}

		t := &st.thresholds
		before := t.Trigger
		t.Trigger = clamp(t.Trigger+step, t.Min, t.Max)
		if t.Trigger == before {
			continue
		}
		c.dirty = true
		out = append(out, Adjustment{Specialist: name, Before: before, After: t.Trigger})
		c.log.Info("trigger threshold auto-adjusted",
			zap.String("specialist", name),
			zap.Float64("before", before),
			zap.Float64("after", t.Trigger))
	}
	return out
}

// Stats returns every specialist's adaptive state in name order.
func (c *Controller) Stats() []SpecialistStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SpecialistStats, 0, len(c.specialists))
	for _, name := range c.sortedNamesLocked() {
		st := c.specialists[name]
		fb := st.feedback
		s := SpecialistStats{
			Specialist:        name,
			Thresholds:        st.thresholds,
			Total:             fb.Total,
			Successful:        fb.Successful,
			Unsuccessful:      fb.Unsuccessful,
			RecentSuccessRate: recentSuccessRate(fb.Recent),
			MeanSatisfaction:  meanSatisfaction(fb.Recent),
			Phrases:           rankedPhrases(st.phrases),
		}
		if fb.Total > 0 {
			s.SuccessRate = float64(fb.Successful) / float64(fb.Total)
		}
		out = append(out, s)
	}
	return out
}

// Reset restores default thresholds and forgets all feedback and phrases.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.specialists {
		c.specialists[name] = c.freshState()
	}
	c.dirty = true
	c.log.Info("delegation learning reset", zap.Int("specialists", len(c.specialists)))
}

// Phrases returns the learned phrases of every specialist, strongest first.
func (c *Controller) Phrases() map[string][]model.LearnedPhrase {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]model.LearnedPhrase, len(c.specialists))
	for name, st := range c.specialists {
		if len(st.phrases) > 0 {
			out[name] = rankedPhrases(st.phrases)
		}
	}
	return out
}

func (c *Controller) sortedNamesLocked() []string {
	names := make([]string, 0, len(c.specialists))
	for name := range c.specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the persistable state and clears the dirty flag.
func (c *Controller) Snapshot() model.DelegationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := model.DelegationState{
		Specialists: make(map[string]model.SpecialistState, len(c.specialists)),
		UpdatedAt:   c.settings.Now().UTC(),
	}
	for name, st := range c.specialists {
		fb := st.feedback
		fb.Recent = append([]model.FeedbackEntry(nil), fb.Recent...)
		state.Specialists[name] = model.SpecialistState{
			Thresholds: st.thresholds,
			Feedback:   fb,
			Phrases:    rankedPhrases(st.phrases),
		}
	}
	c.dirty = false
	return state
}

// Restore loads persisted state. Unknown specialists are ignored and
// thresholds are clamped into range.
func (c *Controller) Restore(state model.DelegationState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, saved := range state.Specialists {
		if _, ok := c.specialists[name]; !ok {
			c.log.Warn("ignoring state of unknown specialist", zap.String("specialist", name))
			continue
		}
		st := c.freshState()
		st.thresholds = sanitizeThresholds(saved.Thresholds, c.settings.Defaults)

		fb := saved.Feedback
		if fb.Total < fb.Successful+fb.Unsuccessful {
			fb.Total = fb.Successful + fb.Unsuccessful
		}
		fb.Recent = append([]model.FeedbackEntry(nil), fb.Recent...)
		if over := len(fb.Recent) - c.settings.RecentWindow; over > 0 {
			fb.Recent = fb.Recent[over:]
		}
		for i := range fb.Recent {
			fb.Recent[i].Satisfaction = clamp(fb.Recent[i].Satisfaction, 0, 1)
		}
		st.feedback = fb

		for _, lp := range saved.Phrases {
			if lp.Phrase == "" {
				continue
			}
			lp.Weight = clamp(lp.Weight, 0, 1)
			p := lp
			st.phrases[lp.Phrase] = &p
		}
		prunePhrases(st.phrases, c.settings.MaxPhrases)
		c.specialists[name] = st
	}
	c.dirty = false
}

// Dirty reports whether state changed since the last Snapshot.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// MarkDirty flags the state for the next flush, used when a save failed.
func (c *Controller) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}
