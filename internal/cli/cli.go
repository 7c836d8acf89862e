// Package cli implements the paired command line host around the engine.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mehmetkoksal-w/paired/internal/config"
	"github.com/mehmetkoksal-w/paired/internal/engine"
	"github.com/mehmetkoksal-w/paired/internal/logger"
	"github.com/mehmetkoksal-w/paired/internal/metrics"
	"github.com/mehmetkoksal-w/paired/internal/storage"
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// app carries the global flags and the writers commands print to.
type app struct {
	root        string
	configPath  string
	output      string
	verbose     bool
	debug       bool
	metricsFile string

	out    io.Writer
	errOut io.Writer
}

// Run executes the CLI with args, writing to stdout and stderr.
func Run(args []string) error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.Execute()
}

// NewRootCommand builds the command tree. Tests pass buffers for out and
// errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "paired",
		Short: "Adaptive pattern matching and delegation for agent teams",
		Long: `paired remembers which outcomes worked in which situations, recommends
them to agents facing similar situations, and learns which specialist a
request should be delegated to.

Patterns:
  learn       Record an observed outcome
  match       Find stored patterns similar to a situation
  recommend   Suggest outcomes for a situation
  usage       Report whether applying a pattern worked
  analyze     Report pattern effectiveness
  export      Write anonymized patterns for sharing
  import      Merge shared patterns

Delegation:
  classify    Rank specialists for a request
  feedback    Report how a delegation went
  adjust      Run the periodic threshold correction
  stats       Show adaptive delegation state
  reset       Forget delegation learning`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.root, "root", ".", "project root containing .paired/")
	pf.StringVar(&a.configPath, "config", "", "config file (default: .paired/config.{jsonc,json,yaml,yml})")
	pf.StringVarP(&a.output, "output", "o", FormatText, "output format (text, json, yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")
	pf.BoolVar(&a.debug, "debug", false, "log debugging detail to stderr")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")

	root.AddCommand(
		newInitCommand(a),
		newLearnCommand(a),
		newMatchCommand(a),
		newRecommendCommand(a),
		newUsageCommand(a),
		newAnalyzeCommand(a),
		newExportCommand(a),
		newImportCommand(a),
		newClassifyCommand(a),
		newFeedbackCommand(a),
		newAdjustCommand(a),
		newStatsCommand(a),
		newResetCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) validateOutput() error {
	switch a.output {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("output must be text, json, or yaml, got %q", a.output)
	}
}

// loadConfig resolves the root and reads the configuration.
func (a *app) loadConfig() (string, config.Config, error) {
	root, err := filepath.Abs(a.root)
	if err != nil {
		return "", config.Config{}, err
	}
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		return root, cfg, err
	}
	cfg, _, err := config.LoadProject(root)
	return root, cfg, err
}

// session is one command's view of the engine.
type session struct {
	app      *app
	cfg      config.Config
	backend  storage.Backend
	engine   *engine.Engine
	registry *prometheus.Registry
	log      *zap.Logger
}

// open loads config, storage and engine state.
func (a *app) open(ctx context.Context) (*session, error) {
	if err := a.validateOutput(); err != nil {
		return nil, err
	}
	root, cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := logger.FromFlags(cfg.Logging.Level, a.verbose, a.debug)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{Level: level, JSON: cfg.Logging.JSON, Output: a.errOut})

	backend, err := storage.Open(cfg.Storage.Driver, cfg.StoragePath(root), log.Named("storage"))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	e, err := engine.New(cfg, engine.Options{
		Persister: backend,
		Metrics:   metrics.New(reg),
		Logger:    log,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := e.Load(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	log.Debug("session opened", zap.String("root", root), zap.String("driver", cfg.Storage.Driver))
	return &session{app: a, cfg: cfg, backend: backend, engine: e, registry: reg, log: log}, nil
}

// close flushes pending state, writes metrics when asked, and releases the
// backend.
func (s *session) close(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var errs []error
	if err := s.engine.Flush(flushCtx); err != nil {
		errs = append(errs, err)
	}
	if s.app.metricsFile != "" {
		if err := prometheus.WriteToTextfile(s.app.metricsFile, s.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	_ = s.log.Sync()
	return errors.Join(errs...)
}

// withSession opens a session, runs fn, and always closes it.
func (a *app) withSession(cmd *cobra.Command, fn func(*session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
