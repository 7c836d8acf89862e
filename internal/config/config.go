package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mehmetkoksal-w/paired/schemas"
)

// SchemaVersion is written into generated configuration files.
const SchemaVersion = "1.0.0"

// DirName is the per-project state directory.
const DirName = ".paired"

// Matching tunes the pattern store and matcher.
type Matching struct {
	LearningRate        float64 `json:"learningRate"`
	MinSimilarity       float64 `json:"minSimilarity"`
	FuzzyCutoff         float64 `json:"fuzzyCutoff"`
	PartialCredit       float64 `json:"partialCredit"`
	MaxResults          int     `json:"maxResults"`
	MaxAgeDays          int     `json:"maxAgeDays"`
	RecentOutcomeLimit  int     `json:"recentOutcomeLimit"`
	EffectiveThreshold  float64 `json:"effectiveThreshold"`
	RecommendationLimit int     `json:"recommendationLimit"`
}

// Relevance holds the relevance score weights.
type Relevance struct {
	Base           float64 `json:"base"`
	SameAgent      float64 `json:"sameAgent"`
	Specialization float64 `json:"specialization"`
	Recent         float64 `json:"recent"`
	RecentDays     int     `json:"recentDays"`
	SuccessWeight  float64 `json:"successWeight"`
	Frequent       float64 `json:"frequent"`
	FrequentUsage  int     `json:"frequentUsage"`
}

// Delegation tunes the trigger classifier and threshold controller.
type Delegation struct {
	TriggerThreshold         float64 `json:"triggerThreshold"`
	DelegationThreshold      float64 `json:"delegationThreshold"`
	AdjustmentRate           float64 `json:"adjustmentRate"`
	MinThreshold             float64 `json:"minThreshold"`
	MaxThreshold             float64 `json:"maxThreshold"`
	RecentWindow             int     `json:"recentWindow"`
	KeywordBase              float64 `json:"keywordBase"`
	PatternBase              float64 `json:"patternBase"`
	PerMatch                 float64 `json:"perMatch"`
	MaxLearningBonus         float64 `json:"maxLearningBonus"`
	PhraseBonus              float64 `json:"phraseBonus"`
	LearnThreshold           float64 `json:"learnThreshold"`
	PhraseStep               float64 `json:"phraseStep"`
	MaxPhrases               int     `json:"maxPhrases"`
	AutoAdjustMinDelegations int     `json:"autoAdjustMinDelegations"`
}

// TriggerProfile is the trigger vocabulary of one specialist.
type TriggerProfile struct {
	Specialist string   `json:"specialist"`
	Name       string   `json:"name,omitempty"`
	Role       string   `json:"role,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Patterns   []string `json:"patterns,omitempty"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
}

// Flush controls when state is written back.
type Flush struct {
	Mode     string `json:"mode"`
	Interval string `json:"interval,omitempty"`
	// AdjustInterval schedules threshold auto-adjustment for long-running
	// hosts. Empty disables it.
	AdjustInterval string `json:"adjustInterval,omitempty"`
}

// Logging configures the process logger.
type Logging struct {
	Level string `json:"level"`
	JSON  bool   `json:"json,omitempty"`
}

// Config is the full engine configuration.
type Config struct {
	SchemaVersion   string              `json:"schemaVersion,omitempty"`
	Matching        Matching            `json:"matching"`
	Relevance       Relevance           `json:"relevance"`
	Delegation      Delegation          `json:"delegation"`
	Specializations map[string][]string `json:"specializations"`
	Profiles        []TriggerProfile    `json:"profiles"`
	Templates       map[string]string   `json:"templates,omitempty"`
	Storage         Storage             `json:"storage"`
	Flush           Flush               `json:"flush"`
	Logging         Logging             `json:"logging"`
}

const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
	DriverMemory = "memory"

	FlushImmediate = "immediate"
	FlushBatched   = "batched"
)

// FlushInterval parses the batched flush interval. An empty interval means
// thirty seconds.
func (c Config) FlushInterval() (time.Duration, error) {
	if c.Flush.Interval == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Flush.Interval)
	if err != nil {
		return 0, fmt.Errorf("flush interval %q: %w", c.Flush.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("flush interval %q must be positive", c.Flush.Interval)
	}
	return d, nil
}

// AdjustInterval parses the auto-adjust interval. Zero means disabled.
func (c Config) AdjustInterval() (time.Duration, error) {
	if c.Flush.AdjustInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Flush.AdjustInterval)
	if err != nil {
		return 0, fmt.Errorf("adjust interval %q: %w", c.Flush.AdjustInterval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("adjust interval %q must not be negative", c.Flush.AdjustInterval)
	}
	return d, nil
}

// StoragePath resolves the storage path against the project root. Without an
// explicit path the backend file lives under .paired/.
func (c Config) StoragePath(root string) string {
	p := c.Storage.Path
	if p == "" {
		switch c.Storage.Driver {
		case DriverJSON:
			p = filepath.Join(DirName, "memory", "state.json")
		default:
			p = filepath.Join(DirName, "memory", "paired.db")
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// EnsureLayout creates the .paired directory tree under root.
func EnsureLayout(root string) (string, error) {
	dir := filepath.Join(root, DirName)
	dirs := []string{
		dir,
		filepath.Join(dir, "memory"),
		filepath.Join(dir, "exports"),
		filepath.Join(dir, "schemas"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", d, err)
		}
	}
	return dir, nil
}

// CopySchemas exports the embedded schemas into .paired/schemas so editors
// can validate config files. The embedded copies stay canonical.
func CopySchemas(root string) error {
	schemaDir := filepath.Join(root, DirName, "schemas")
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		return fmt.Errorf("ensure schema dir: %w", err)
	}
	all, err := schemas.List()
	if err != nil {
		return err
	}
	for name, data := range all {
		dest := filepath.Join(schemaDir, fmt.Sprintf("%s.schema.json", name))
		if existing, err := os.ReadFile(dest); err == nil && string(existing) == string(data) {
			continue
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
	}
	return nil
}

// WriteJSON writes data as indented JSON.
func WriteJSON(path string, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
