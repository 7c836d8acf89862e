package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mehmetkoksal-w/paired/internal/fsutil"
	"github.com/mehmetkoksal-w/paired/internal/memory"
)

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ExportOptions contains the configuration for the export command.
type ExportOptions struct {
	Agent          string
	MinSuccessRate float64
	Out            string
}

func newExportCommand(a *app) *cobra.Command {
	var opts ExportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write anonymized patterns for sharing",
		Long: `Export writes the patterns of one agent (or all agents) whose success rate
is at least --min-success. Paths and e-mail addresses in contexts are
replaced with placeholders. Files ending in .yaml or .yml are written as
YAML, anything else as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateConfidence(opts.MinSuccessRate); err != nil {
				return fmt.Errorf("min-success: %w", err)
			}
			return a.withSession(cmd, func(s *session) error {
				payload := s.engine.ExportPatterns(opts.Agent, opts.MinSuccessRate)
				if opts.Out == "" {
					return writePayload(a.out, payload, a.output == FormatYAML)
				}
				var buf bytes.Buffer
				if err := writePayload(&buf, payload, isYAMLPath(opts.Out)); err != nil {
					return err
				}
				if err := fsutil.WriteFileAtomic(opts.Out, buf.Bytes(), 0o644); err != nil {
					return err
				}
				sum, err := fsutil.HashFile(opts.Out)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "Exported %d patterns to %s (sha256 %s)\n", len(payload.Patterns), opts.Out, sum[:12])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "only export this agent's patterns")
	cmd.Flags().Float64Var(&opts.MinSuccessRate, "min-success", 0.7, "minimum success rate (0.0-1.0)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "file to write (default: stdout)")
	return cmd
}

func writePayload(w io.Writer, payload memory.ExportPayload, asYAML bool) error {
	if asYAML {
		data, err := toYAML(payload)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func newImportCommand(a *app) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge shared patterns",
		Long: `Import reads a payload written by export. --strategy decides what happens
when an incoming pattern already exists: merge blends the two, replace
overwrites the local copy, skip keeps it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := memory.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			payload, err := readPayload(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				res := s.engine.ImportPatterns(cmd.Context(), payload, strat)
				return a.emit(res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Imported %d patterns (%d new, %d updated, %d skipped, %d invalid)\n",
						res.Imported, res.New, res.Updated, res.Skipped, res.Invalid)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", string(memory.StrategyMerge), "conflict strategy (merge, replace, skip)")
	return cmd
}

func readPayload(path string) (memory.ExportPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return memory.ExportPayload{}, fmt.Errorf("read %s: %w", path, err)
	}
	if isYAMLPath(path) {
		if data, err = fromYAML(data); err != nil {
			return memory.ExportPayload{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	payload, err := memory.DecodePayload(data)
	if err != nil {
		return memory.ExportPayload{}, fmt.Errorf("%s: %w", path, err)
	}
	return payload, nil
}
