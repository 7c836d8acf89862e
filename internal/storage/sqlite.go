// Package storage persists patterns and delegation state for the engine.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mehmetkoksal-w/paired/internal/logger"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

const timeLayout = time.RFC3339Nano

// SQLite stores state in a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// OpenSQLite opens or creates the database at path and applies pending
// migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: gives every connection its own database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLite{db: db, path: path, log: logger.OrNop(log)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadPatterns returns every stored pattern. Rows that fail to decode are
// skipped with a warning.
func (s *SQLite) LoadPatterns(ctx context.Context) ([]model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, type, project, tags, context, outcome, confidence,
		       success_rate, usage_count, created_at, last_used_at, recent_outcomes
		FROM patterns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var (
			p                     model.Pattern
			tags, ctxJSON, recent string
			createdAt, lastUsedAt string
		)
		if err := rows.Scan(&p.ID, &p.Agent, &p.Type, &p.Project, &tags, &ctxJSON, &p.Outcome,
			&p.Confidence, &p.SuccessRate, &p.UsageCount, &createdAt, &lastUsedAt, &recent); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := decodePatternColumns(&p, tags, ctxJSON, recent, createdAt, lastUsedAt); err != nil {
			s.log.Warn("skipping corrupt pattern row", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return out, nil
}

func decodePatternColumns(p *model.Pattern, tags, ctxJSON, recent, createdAt, lastUsedAt string) error {
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	if err := json.Unmarshal([]byte(ctxJSON), &p.Context); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := json.Unmarshal([]byte(recent), &p.RecentOutcomes); err != nil {
		return fmt.Errorf("recent outcomes: %w", err)
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	if len(p.RecentOutcomes) == 0 {
		p.RecentOutcomes = nil
	}
	var err error
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if p.LastUsedAt, err = time.Parse(timeLayout, lastUsedAt); err != nil {
		return fmt.Errorf("last_used_at: %w", err)
	}
	return nil
}

// SavePatterns replaces the stored patterns with the snapshot.
func (s *SQLite) SavePatterns(ctx context.Context, patterns []model.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM patterns"); err != nil {
		return fmt.Errorf("clear patterns: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (id, agent, type, project, tags, context, outcome, confidence,
		                      success_rate, usage_count, created_at, last_used_at, recent_outcomes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range patterns {
		tags, err := marshalOr(p.Tags, "[]")
		if err != nil {
			return fmt.Errorf("pattern %s tags: %w", p.ID, err)
		}
		ctxJSON, err := marshalOr(p.Context, "{}")
		if err != nil {
			return fmt.Errorf("pattern %s context: %w", p.ID, err)
		}
		recent, err := marshalOr(p.RecentOutcomes, "[]")
		if err != nil {
			return fmt.Errorf("pattern %s outcomes: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Agent, p.Type, p.Project, tags, ctxJSON, p.Outcome,
			p.Confidence, p.SuccessRate, p.UsageCount,
			p.CreatedAt.UTC().Format(timeLayout), p.LastUsedAt.UTC().Format(timeLayout), recent); err != nil {
			return fmt.Errorf("insert pattern %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// LoadStats returns the stored delegation state. Specialist rows that fail to
// decode are skipped with a warning.
func (s *SQLite) LoadStats(ctx context.Context) (model.DelegationState, error) {
	state := model.DelegationState{Specialists: map[string]model.SpecialistState{}}

	var updated string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_state WHERE key = 'delegation_updated_at'").Scan(&updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return state, fmt.Errorf("read delegation timestamp: %w", err)
	default:
		if t, perr := time.Parse(timeLayout, updated); perr == nil {
			state.UpdatedAt = t
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT specialist, state FROM specialist_state ORDER BY specialist")
	if err != nil {
		return state, fmt.Errorf("query specialist state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return state, fmt.Errorf("scan specialist state: %w", err)
		}
		var st model.SpecialistState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			s.log.Warn("skipping corrupt specialist state", zap.String("specialist", name), zap.Error(err))
			continue
		}
		state.Specialists[name] = st
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate specialist state: %w", err)
	}
	return state, nil
}

// SaveStats replaces the stored delegation state.
func (s *SQLite) SaveStats(ctx context.Context, state model.DelegationState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM specialist_state"); err != nil {
		return fmt.Errorf("clear specialist state: %w", err)
	}
	for name, st := range state.Specialists {
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO specialist_state (specialist, state) VALUES (?, ?)", name, string(raw)); err != nil {
			return fmt.Errorf("insert %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES ('delegation_updated_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		state.UpdatedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("write delegation timestamp: %w", err)
	}
	return tx.Commit()
}

func marshalOr(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
