package delegation

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Decision is a specialist that cleared its trigger threshold for an input.
type Decision struct {
	Specialist     string   `json:"specialist"`
	Name           string   `json:"name,omitempty"`
	Confidence     float64  `json:"confidence"`
	ShouldDelegate bool     `json:"shouldDelegate"`
	Trigger        float64  `json:"triggerThreshold"`
	Delegation     float64  `json:"delegationThreshold"`
	Signals        []string `json:"signals,omitempty"`
}

// Delegator combines the classifier with the adaptive controller.
type Delegator struct {
	classifier *Classifier
	controller *Controller
	learnAt    float64
	log        *zap.Logger
}

// New compiles profiles and creates a controller for their specialists.
func New(profiles []ProfileSpec, weights Weights, settings Settings) (*Delegator, error) {
	classifier, err := NewClassifier(profiles, weights)
	if err != nil {
		return nil, err
	}
	if settings.Logger == nil {
		settings.Logger = zap.NewNop()
	}
	return &Delegator{
		classifier: classifier,
		controller: NewController(classifier.Specialists(), settings),
		learnAt:    settings.LearnThreshold,
		log:        settings.Logger,
	}, nil
}

// Controller exposes the adaptive threshold controller.
func (d *Delegator) Controller() *Controller { return d.controller }

// Classifier exposes the trigger classifier.
func (d *Delegator) Classifier() *Classifier { return d.classifier }

// Classify ranks the specialists whose confidence exceeds their trigger
// threshold, strongest first.
func (d *Delegator) Classify(text string) []Decision {
	scores := d.classifier.Score(text, d.controller.Phrases())

	var out []Decision
	for _, s := range scores {
		t, err := d.controller.Thresholds(s.Specialist)
		if err != nil {
			continue
		}
		if s.Confidence <= t.Trigger {
			continue
		}
		out = append(out, Decision{
			Specialist:     s.Specialist,
			Name:           s.Name,
			Confidence:     s.Confidence,
			ShouldDelegate: s.Confidence > t.Delegation,
			Trigger:        t.Trigger,
			Delegation:     t.Delegation,
			Signals:        s.Signals,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Specialist < out[j].Specialist
	})
	d.log.Debug("text classified", zap.Int("candidates", len(out)))
	return out
}

// LearnFromInteraction records the word pairs of text for every specialist
// that scored above the learning threshold, skipping pairs that are already
// keywords. It returns the phrases learned per specialist.
func (d *Delegator) LearnFromInteraction(text string) map[string][]string {
	pairs := Bigrams(text)
	if len(pairs) == 0 {
		return nil
	}

	learned := make(map[string][]string)
	for _, s := range d.classifier.Score(text, d.controller.Phrases()) {
		if s.Confidence <= d.learnAt {
			continue
		}
		profile, _ := d.classifier.Profile(s.Specialist)
		var fresh []string
		for _, pair := range pairs {
			if !profile.HasKeyword(pair) {
				fresh = append(fresh, pair)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		if err := d.controller.LearnPhrases(s.Specialist, fresh); err != nil {
			d.log.Warn("phrase learning failed", zap.String("specialist", s.Specialist), zap.Error(err))
			continue
		}
		learned[s.Specialist] = fresh
	}
	return learned
}

// Feedback records a delegation outcome.
func (d *Delegator) Feedback(specialist string, successful bool, satisfaction float64) (model.Thresholds, error) {
	return d.controller.RecordFeedback(specialist, successful, satisfaction)
}

// AutoAdjust runs the periodic threshold correction.
func (d *Delegator) AutoAdjust() []Adjustment { return d.controller.AutoAdjust() }

// Stats returns the adaptive state of every specialist.
func (d *Delegator) Stats() []SpecialistStats { return d.controller.Stats() }

// Reset forgets all learned delegation state.
func (d *Delegator) Reset() { d.controller.Reset() }
