package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DirName), 0o755))
	p := filepath.Join(dir, DirName, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Profiles, 7)
	assert.Contains(t, cfg.Specializations, "sherlock")
	assert.Equal(t, 0.1, cfg.Matching.LearningRate)
	assert.Equal(t, 0.8, cfg.Delegation.MaxThreshold)

	d, err := cfg.FlushInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = cfg.AdjustInterval()
	require.NoError(t, err)
	assert.Zero(t, d, "auto-adjust is off unless configured")
}

func TestLoadJSONCOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "config.jsonc", `{
		// tighter matching for this repo
		"matching": {"minSimilarity": 0.8, "maxAgeDays": 0},
		"specializations": {"sherlock": ["bug_*"]},
		"storage": {"driver": "json"}
	}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Matching.MinSimilarity)
	assert.Equal(t, 0, cfg.Matching.MaxAgeDays)
	assert.Equal(t, 0.1, cfg.Matching.LearningRate, "untouched fields keep defaults")
	assert.Equal(t, []string{"bug_*"}, cfg.Specializations["sherlock"])
	assert.Contains(t, cfg.Specializations, "leonardo", "other agents keep defaults")
	assert.Equal(t, DriverJSON, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, DirName, "memory", "state.json"), cfg.StoragePath(dir))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "config.yaml", `
delegation:
  triggerThreshold: 0.3
profiles:
  - specialist: sherlock
    keywords: [test, bug]
flush:
  mode: immediate
logging:
  level: debug
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Delegation.TriggerThreshold)
	require.Len(t, cfg.Profiles, 1, "profiles in a file replace the roster")
	assert.Equal(t, []string{"test", "bug"}, cfg.Profiles[0].Keywords)
	assert.Empty(t, cfg.Profiles[0].Patterns)
	assert.Equal(t, FlushImmediate, cfg.Flush.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"unknown field":      `{"matching": {"speed": 1}}`,
		"out of range":       `{"matching": {"learningRate": 2}}`,
		"bad driver":         `{"storage": {"driver": "redis"}}`,
		"min above max":      `{"delegation": {"minThreshold": 0.9, "maxThreshold": 0.2}}`,
		"bad interval":       `{"flush": {"mode": "batched", "interval": "soon"}}`,
		"negative adjust":    `{"flush": {"adjustInterval": "-1m"}}`,
		"duplicate profile":  `{"profiles": [{"specialist": "a"}, {"specialist": "a"}]}`,
		"profile without id": `{"profiles": [{"name": "x"}]}`,
		"broken json":        `{"matching": `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), "config.json", content)
			_, err := Load(p)
			assert.Error(t, err)
		})
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	cfg, path, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)

	writeConfig(t, dir, "config.yml", "logging:\n  level: info\n")
	writeConfig(t, dir, "config.json", `{"logging": {"level": "error"}}`)
	cfg, path, err = LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DirName, "config.json"), path, "json wins over yaml")
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadEmptyFile(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "config.yaml", "")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEnsureLayoutAndSchemas(t *testing.T) {
	dir := t.TempDir()
	base, err := EnsureLayout(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DirName), base)
	for _, sub := range []string{"memory", "exports", "schemas"} {
		info, err := os.Stat(filepath.Join(base, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	require.NoError(t, CopySchemas(dir))
	_, err = os.Stat(filepath.Join(base, "schemas", "config.schema.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "schemas", "patterns.schema.json"))
	assert.NoError(t, err)
}

func TestStoragePath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/repo", DirName, "memory", "paired.db"), cfg.StoragePath("/repo"))

	cfg.Storage.Path = "/var/lib/paired.db"
	assert.Equal(t, "/var/lib/paired.db", cfg.StoragePath("/repo"))

	cfg.Storage.Path = "data/x.db"
	assert.Equal(t, filepath.Join("/repo", "data/x.db"), cfg.StoragePath("/repo"))
}

func TestWriteJSONRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, WriteJSON(p, Default()))
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
