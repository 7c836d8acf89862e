package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/fsutil"
	"github.com/mehmetkoksal-w/paired/internal/logger"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// FileVersion is written into every state file.
const FileVersion = 1

// stateFile is the on-disk layout. Sections stay raw and are decoded on
// their own, so a bad delegation section cannot hide the patterns and one
// bad pattern entry does not poison the rest.
type stateFile struct {
	Version    int             `json:"version"`
	Patterns   json.RawMessage `json:"patterns"`
	Delegation json.RawMessage `json:"delegation,omitempty"`
}

// JSONFile stores state in a single JSON document. Writes go through a temp
// file and rename.
type JSONFile struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewJSONFile returns a backend for path. The file is created on first save.
func NewJSONFile(path string, log *zap.Logger) *JSONFile {
	return &JSONFile{path: path, log: logger.OrNop(log)}
}

// Path returns the state file path.
func (j *JSONFile) Path() string { return j.path }

// Close is a no-op.
func (j *JSONFile) Close() error { return nil }

func (j *JSONFile) read() (stateFile, error) {
	var doc stateFile
	raw, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return stateFile{Version: FileVersion}, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", j.path, err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", j.path, err)
	}
	return doc, nil
}

func (j *JSONFile) write(doc stateFile) error {
	doc.Version = FileVersion
	if len(doc.Patterns) == 0 {
		doc.Patterns = json.RawMessage("[]")
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return fsutil.WriteFileAtomic(j.path, append(raw, '\n'), 0o644)
}

// readForUpdate tolerates an unreadable file so a save can repair it.
func (j *JSONFile) readForUpdate() stateFile {
	doc, err := j.read()
	if err != nil {
		j.log.Warn("overwriting unreadable state file", zap.String("path", j.path), zap.Error(err))
		return stateFile{Version: FileVersion}
	}
	return doc
}

// LoadPatterns returns the stored patterns, skipping entries that fail to
// decode.
func (j *JSONFile) LoadPatterns(ctx context.Context) ([]model.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	doc, err := j.read()
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if !isNull(doc.Patterns) {
		if err := json.Unmarshal(doc.Patterns, &entries); err != nil {
			return nil, fmt.Errorf("parse patterns in %s: %w", j.path, err)
		}
	}
	out := make([]model.Pattern, 0, len(entries))
	for i, raw := range entries {
		var p model.Pattern
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			j.log.Warn("skipping corrupt pattern entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePatterns replaces the stored patterns with the snapshot.
func (j *JSONFile) SavePatterns(ctx context.Context, patterns []model.Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if patterns == nil {
		patterns = []model.Pattern{}
	}
	raw, err := json.Marshal(patterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}
	doc := j.readForUpdate()
	doc.Patterns = raw
	return j.write(doc)
}

// LoadStats returns the stored delegation state.
func (j *JSONFile) LoadStats(ctx context.Context) (model.DelegationState, error) {
	empty := model.DelegationState{Specialists: map[string]model.SpecialistState{}}
	if err := ctx.Err(); err != nil {
		return empty, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	doc, err := j.read()
	if err != nil {
		return empty, err
	}
	if isNull(doc.Delegation) {
		return empty, nil
	}
	var state model.DelegationState
	if err := json.Unmarshal(doc.Delegation, &state); err != nil {
		return empty, fmt.Errorf("parse delegation state in %s: %w", j.path, err)
	}
	if state.Specialists == nil {
		state.Specialists = map[string]model.SpecialistState{}
	}
	return state, nil
}

// SaveStats replaces the stored delegation state.
func (j *JSONFile) SaveStats(ctx context.Context, state model.DelegationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal delegation state: %w", err)
	}
	doc := j.readForUpdate()
	doc.Delegation = raw
	return j.write(doc)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
