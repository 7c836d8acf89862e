package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mehmetkoksal-w/paired/internal/config"
	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/metrics"
	"github.com/mehmetkoksal-w/paired/internal/model"
	"github.com/mehmetkoksal-w/paired/internal/storage"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func testConfig(mode string) config.Config {
	cfg := config.Default()
	cfg.Flush.Mode = mode
	cfg.Profiles = []config.TriggerProfile{
		{Specialist: "sherlock", Name: "Sherlock", Keywords: []string{"test", "bug"}},
		{Specialist: "edison", Name: "Edison", Keywords: []string{"refactor"}},
	}
	return cfg
}

func newEngine(t *testing.T, cfg config.Config, p Persister) *Engine {
	t.Helper()
	seq := 0
	e, err := New(cfg, Options{
		Persister: p,
		Now:       func() time.Time { return epoch },
		NewID: func() string {
			seq++
			return fmt.Sprintf("fb-%d", seq)
		},
	})
	require.NoError(t, err)
	return e
}

func bugObservation() memory.Observation {
	return memory.Observation{
		Agent:      "sherlock",
		Type:       "bug_fix",
		Context:    model.Context{"Error Type": model.String("NullPointer"), "module": model.String("auth")},
		Outcome:    "add nil guard",
		Confidence: 0.9,
	}
}

// flaky fails every save until healed.
type flaky struct {
	*storage.Memory
	mu     sync.Mutex
	failOn bool
}

func newFlaky() *flaky { return &flaky{Memory: storage.NewMemory()} }

func (f *flaky) fail(on bool) {
	f.mu.Lock()
	f.failOn = on
	f.mu.Unlock()
}

func (f *flaky) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn {
		return errors.New("disk unavailable")
	}
	return nil
}

func (f *flaky) SavePatterns(ctx context.Context, p []model.Pattern) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Memory.SavePatterns(ctx, p)
}

func (f *flaky) SaveStats(ctx context.Context, s model.DelegationState) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Memory.SaveStats(ctx, s)
}

func (f *flaky) LoadPatterns(ctx context.Context) ([]model.Pattern, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Memory.LoadPatterns(ctx)
}

func TestNewRejectsBadProfiles(t *testing.T) {
	cfg := testConfig(config.FlushBatched)
	cfg.Profiles[0].Patterns = []string{"("}
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestMatchingFlow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(config.FlushBatched), nil)

	id, created := e.RegisterPattern(ctx, bugObservation())
	require.True(t, created)
	_, created = e.RegisterPattern(ctx, bugObservation())
	assert.False(t, created)

	matches := e.FindMatchingPatterns("sherlock", model.Context{"error_type": model.String("nullpointer"), "module": model.String("auth")}, "")
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Pattern.ID)
	assert.Equal(t, 1.0, matches[0].Similarity)

	recs := e.GetRecommendations("sherlock", bugObservation().Context, 0)
	require.Len(t, recs, 1)
	assert.Equal(t, "Based on similar issues, consider: add nil guard", recs[0].Text)

	p, err := e.RecordPatternUsage(ctx, id, "guard fixed it", true)
	require.NoError(t, err)
	assert.Equal(t, 3, p.UsageCount)

	_, err = e.RecordPatternUsage(ctx, "pat_missing", "", true)
	assert.ErrorIs(t, err, model.ErrNotFound)

	report := e.AnalyzePatternEffectiveness("", 30)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Effective)
}

func TestImmediateFlushWritesEveryMutation(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	e := newEngine(t, testConfig(config.FlushImmediate), mem)

	e.RegisterPattern(ctx, bugObservation())
	assert.Equal(t, 1, mem.Saves())
	assert.False(t, e.Dirty())

	_, err := e.ProvideDelegationFeedback(ctx, "sherlock", true, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Saves(), "only the dirty half is written")

	// reads never flush
	e.Classify("a bug")
	e.GetAdaptiveStats()
	assert.Equal(t, 2, mem.Saves())
}

func TestBatchedFlushWritesOnlyWhenDirty(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	e := newEngine(t, testConfig(config.FlushBatched), mem)

	e.RegisterPattern(ctx, bugObservation())
	e.RegisterPattern(ctx, bugObservation())
	assert.Zero(t, mem.Saves())
	assert.True(t, e.Dirty())

	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 1, mem.Saves())
	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 1, mem.Saves())

	saved, err := mem.LoadPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, 2, saved[0].UsageCount)
}

func TestFailedFlushKeepsStateDirty(t *testing.T) {
	ctx := context.Background()
	p := newFlaky()
	e := newEngine(t, testConfig(config.FlushImmediate), p)

	p.fail(true)
	id, _ := e.RegisterPattern(ctx, bugObservation())
	_, err := e.Pattern(id)
	require.NoError(t, err, "a failed flush does not roll back the mutation")
	assert.True(t, e.Dirty())
	assert.Error(t, e.Flush(ctx))

	p.fail(false)
	require.NoError(t, e.Flush(ctx))
	assert.False(t, e.Dirty())
	saved, err := p.Memory.LoadPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestLoadRestoresState(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	first := newEngine(t, testConfig(config.FlushBatched), mem)
	id, _ := first.RegisterPattern(ctx, bugObservation())
	_, err := first.ProvideDelegationFeedback(ctx, "sherlock", false, 0.1)
	require.NoError(t, err)
	require.NoError(t, first.Flush(ctx))

	second := newEngine(t, testConfig(config.FlushBatched), mem)
	require.NoError(t, second.Load(ctx))
	assert.False(t, second.Dirty())

	p, err := second.Pattern(id)
	require.NoError(t, err)
	assert.Equal(t, "add nil guard", p.Outcome)

	stats := second.GetAdaptiveStats()
	require.Len(t, stats, 2)
	var sherlockTotal int
	for _, s := range stats {
		if s.Specialist == "sherlock" {
			sherlockTotal = s.Total
		}
	}
	assert.Equal(t, 1, sherlockTotal)
}

func TestLoadFailureStartsCold(t *testing.T) {
	p := newFlaky()
	p.fail(true)
	e := newEngine(t, testConfig(config.FlushBatched), p)
	require.NoError(t, e.Load(context.Background()))
	assert.Empty(t, e.Patterns())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Load(ctx), context.Canceled)
}

// unreadableStats serves patterns but fails to read delegation state.
type unreadableStats struct {
	*storage.Memory
}

func (unreadableStats) LoadStats(context.Context) (model.DelegationState, error) {
	return model.DelegationState{}, errors.New("delegation state corrupt")
}

func TestLoadKeepsPatternsWhenStatsFail(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	first := newEngine(t, testConfig(config.FlushBatched), mem)
	id, _ := first.RegisterPattern(ctx, bugObservation())
	other := bugObservation()
	other.Context = model.Context{"module": model.String("billing")}
	otherID, _ := first.RegisterPattern(ctx, other)
	require.NoError(t, first.Flush(ctx))

	second := newEngine(t, testConfig(config.FlushImmediate), unreadableStats{Memory: mem})
	require.NoError(t, second.Load(ctx))
	require.Len(t, second.Patterns(), 2)

	third := bugObservation()
	third.Context = model.Context{"module": model.String("search")}
	second.RegisterPattern(ctx, third)

	saved, err := mem.LoadPatterns(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(saved))
	for _, p := range saved {
		ids = append(ids, p.ID)
	}
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, id)
	assert.Contains(t, ids, otherID)
}

func TestExportImportBetweenEngines(t *testing.T) {
	ctx := context.Background()
	src := newEngine(t, testConfig(config.FlushBatched), nil)
	obs := bugObservation()
	obs.Context["log"] = model.String("/var/log/app.log")
	obs.Context["owner"] = model.String("dev@example.com")
	src.RegisterPattern(ctx, obs)
	low := bugObservation()
	low.Type = "refactor"
	low.Confidence = 0.2
	src.RegisterPattern(ctx, low)

	payload := src.ExportPatterns("sherlock", 0.5)
	require.Len(t, payload.Patterns, 1)
	assert.Equal(t, model.String("<path>"), payload.Patterns[0].Context["log"])
	assert.Equal(t, model.String("<email>"), payload.Patterns[0].Context["owner"])

	dst := newEngine(t, testConfig(config.FlushBatched), nil)
	res := dst.ImportPatterns(ctx, payload, memory.StrategyMerge)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.New)
	assert.True(t, dst.Dirty())

	res = dst.ImportPatterns(ctx, payload, memory.StrategySkip)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestDelegationFlow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(config.FlushBatched), nil)

	got := e.Classify("We need to write unit tests and fix this bug")
	require.Len(t, got, 1)
	assert.Equal(t, "sherlock", got[0].Specialist)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)

	learned := e.LearnFromInteraction(ctx, "We need to write unit tests and fix this bug")
	assert.Contains(t, learned, "sherlock")

	_, err := e.ProvideDelegationFeedback(ctx, "nobody", true, 1)
	assert.ErrorIs(t, err, model.ErrNotFound)

	for i := 0; i < 5; i++ {
		_, err := e.ProvideDelegationFeedback(ctx, "sherlock", false, 0.5)
		require.NoError(t, err)
	}
	adj := e.AutoAdjustThresholds(ctx)
	require.Len(t, adj, 1)
	assert.Equal(t, "sherlock", adj[0].Specialist)
	assert.InDelta(t, 0.45, adj[0].Before, 1e-9)
	assert.InDelta(t, 0.47, adj[0].After, 1e-9)

	e.ResetLearning(ctx)
	for _, s := range e.GetAdaptiveStats() {
		assert.Zero(t, s.Total)
		assert.Empty(t, s.Phrases)
		assert.Equal(t, 0.2, s.Thresholds.Trigger)
	}
}

func TestMetricsAreRecorded(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	e, err := New(testConfig(config.FlushImmediate), Options{Persister: storage.NewMemory(), Metrics: m})
	require.NoError(t, err)

	e.RegisterPattern(ctx, bugObservation())
	e.GetRecommendations("sherlock", bugObservation().Context, 3)
	_, err = e.ProvideDelegationFeedback(ctx, "edison", false, 0.2)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recommendations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Feedback.WithLabelValues("edison", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flushes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Patterns))
}

func TestRunFlushesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := storage.NewMemory()
	e := newEngine(t, testConfig(config.FlushBatched), mem)
	e.RegisterPattern(context.Background(), bugObservation())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 5*time.Millisecond, time.Millisecond) }()

	require.Eventually(t, func() bool { return mem.Saves() > 0 }, 2*time.Second, 5*time.Millisecond)
	_, err := e.ProvideDelegationFeedback(context.Background(), "sherlock", true, 0.9)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, e.Dirty(), "cancellation flushes pending state")
}

func TestServeUsesConfiguredIntervals(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(config.FlushBatched)
	cfg.Flush.Interval = "5ms"
	cfg.Flush.AdjustInterval = "5ms"
	mem := storage.NewMemory()
	e := newEngine(t, cfg, mem)
	for i := 0; i < 5; i++ {
		_, err := e.ProvideDelegationFeedback(context.Background(), "edison", false, 0.5)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()

	require.Eventually(t, func() bool {
		for _, s := range e.GetAdaptiveStats() {
			if s.Specialist == "edison" && s.Thresholds.Trigger > 0.45+1e-9 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "auto-adjust raises a failing specialist's trigger")
	cancel()
	require.NoError(t, <-done)
	assert.Positive(t, mem.Saves())
}
