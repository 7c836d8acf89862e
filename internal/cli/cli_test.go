package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmetkoksal-w/paired/internal/config"
	"github.com/mehmetkoksal-w/paired/internal/delegation"
	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// run executes one command against root and returns stdout and stderr.
func run(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(&out, &errOut)
	cmd.SetArgs(append([]string{"--root", root}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, root string, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, root, args...)
	require.NoError(t, err, "stderr: %s", errOut)
	return out
}

func TestInitCreatesLayout(t *testing.T) {
	root := t.TempDir()
	_, errOut, err := run(t, root, "init")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Initialized")

	cfg, path, err := config.LoadProject(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, config.DirName, "config.json"), path)
	assert.Equal(t, config.Default(), cfg)

	_, errOut, err = run(t, root, "init")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Keeping existing")
}

func TestLearnMatchRecommendPersist(t *testing.T) {
	root := t.TempDir()

	out := mustRun(t, root, "-o", "json", "learn",
		"--agent", "sherlock", "--type", "bug_fix",
		"-c", "error_type=NullPointer", "-c", "module=auth", "-c", "retries=3",
		"--outcome", "add a nil guard", "--confidence", "0.9")
	var learned struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &learned))
	assert.True(t, learned.Created)
	assert.True(t, strings.HasPrefix(learned.ID, "pat_"))

	// a second process sees the first one's pattern
	out = mustRun(t, root, "-o", "json", "match", "--agent", "sherlock",
		"-c", "Error Type=nullpointer", "-c", "module=AUTH", "-c", "retries=3")
	var matches []memory.Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, learned.ID, matches[0].Pattern.ID)

	out = mustRun(t, root, "recommend", "--agent", "sherlock",
		"-c", "error_type=NullPointer", "-c", "module=auth", "-c", "retries=3")
	assert.Contains(t, out, "Based on similar issues, consider: add a nil guard")

	out = mustRun(t, root, "usage", learned.ID, "--note", "worked")
	assert.Contains(t, out, "over 2 uses")

	_, _, err := run(t, root, "usage", "pat_missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	out = mustRun(t, root, "analyze", "--days", "0")
	assert.Contains(t, out, "Patterns:  1 (1 effective, 100%)")
}

func TestLearnValidatesInput(t *testing.T) {
	root := t.TempDir()
	_, _, err := run(t, root, "learn", "--agent", "a", "--type", "t", "--outcome", "o", "--confidence", "1.5")
	assert.Error(t, err)
	_, _, err = run(t, root, "learn", "--agent", "a", "--type", "t", "--outcome", "o", "-c", "novalue")
	assert.Error(t, err)
	_, _, err = run(t, root, "learn", "--type", "t", "--outcome", "o")
	assert.Error(t, err, "agent is required")
	_, _, err = run(t, root, "-o", "xml", "stats")
	assert.Error(t, err)
}

func TestExportImportYAML(t *testing.T) {
	src := t.TempDir()
	mustRun(t, src, "learn", "--agent", "edison", "--type", "refactor",
		"-c", "file=/home/dev/app/main.go", "-c", "size=large",
		"--outcome", "split the handler", "--confidence", "0.8")
	mustRun(t, src, "learn", "--agent", "edison", "--type", "optimization",
		"-c", "query=slow", "--outcome", "add an index", "--confidence", "0.3")

	file := filepath.Join(t.TempDir(), "share", "edison.yaml")
	_, errOut, err := run(t, src, "export", "--agent", "edison", "--out", file)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Exported 1 patterns")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<path>")
	assert.NotContains(t, string(raw), "/home/dev")

	dst := t.TempDir()
	out := mustRun(t, dst, "-o", "json", "import", file)
	var res memory.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, memory.ImportResult{Imported: 1, New: 1}, res)

	out = mustRun(t, dst, "import", "--strategy", "skip", file)
	assert.Contains(t, out, "1 skipped")

	_, _, err = run(t, dst, "import", "--strategy", "clobber", file)
	assert.Error(t, err)
}

func TestImportRejectsInvalidPayload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"version": 1}`), 0o644))
	_, _, err := run(t, t.TempDir(), "import", file)
	assert.Error(t, err)
}

func TestDelegationCommands(t *testing.T) {
	root := t.TempDir()

	out := mustRun(t, root, "-o", "json", "classify", "--learn", "we need better regression coverage for this flaky test")
	var res classifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Decisions)
	assert.Equal(t, "sherlock", res.Decisions[0].Specialist)
	assert.Contains(t, res.Learned, "sherlock")

	for i := 0; i < 5; i++ {
		mustRun(t, root, "feedback", "sherlock", "--failed", "--satisfaction", "0.5")
	}
	out = mustRun(t, root, "-o", "json", "adjust")
	var adj []delegation.Adjustment
	require.NoError(t, json.Unmarshal([]byte(out), &adj))
	require.Len(t, adj, 1)
	assert.InDelta(t, 0.47, adj[0].After, 1e-9)

	out = mustRun(t, root, "-o", "json", "stats")
	var stats []delegation.SpecialistStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	for _, st := range stats {
		if st.Specialist == "sherlock" {
			assert.Equal(t, 5, st.Total)
			assert.NotEmpty(t, st.Phrases)
		}
	}

	_, _, err := run(t, root, "feedback", "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, bad := range []string{"1.5", "-0.1"} {
		_, _, err = run(t, root, "feedback", "sherlock", "--satisfaction="+bad)
		assert.ErrorContains(t, err, "satisfaction must be between")
	}

	_, _, err = run(t, root, "reset")
	assert.Error(t, err, "reset needs --yes")
	mustRun(t, root, "reset", "--yes")
	out = mustRun(t, root, "-o", "yaml", "stats")
	assert.Contains(t, out, "totalDelegations: 0")
	assert.NotContains(t, out, "totalDelegations: 5")
}

func TestMetricsFile(t *testing.T) {
	root := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "paired.prom")
	mustRun(t, root, "--metrics-file", metricsFile, "learn",
		"--agent", "a", "--type", "t", "--outcome", "o", "-c", "k=v")
	raw, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `paired_patterns_registrations_total{result="created"} 1`)
}

func TestJSONStorageDriver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.DirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, config.DirName, "config.yaml"),
		[]byte("storage:\n  driver: json\n"), 0o644))

	mustRun(t, root, "learn", "--agent", "a", "--type", "t", "--outcome", "o", "-c", "k=v")
	_, err := os.Stat(filepath.Join(root, config.DirName, "memory", "state.json"))
	assert.NoError(t, err)
}

func TestParseContext(t *testing.T) {
	ctx, err := parseContext([]string{"n=3", "ok=true", "none=null", "name=Alice", "eq=a=b"}, `{"n": 1, "extra": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, model.Number(3), ctx["n"], "pairs override json")
	assert.Equal(t, model.Bool(true), ctx["ok"])
	assert.Equal(t, model.Null(), ctx["none"])
	assert.Equal(t, model.String("Alice"), ctx["name"])
	assert.Equal(t, model.String("a=b"), ctx["eq"])
	assert.Equal(t, model.String("x"), ctx["extra"])

	_, err = parseContext(nil, `{"nested": {"a": 1}}`)
	assert.Error(t, err)
	_, err = parseContext([]string{"=v"}, "")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	assert.True(t, strings.HasPrefix(out, "paired "))
}
