package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mehmetkoksal-w/paired/internal/insight"
	"github.com/mehmetkoksal-w/paired/internal/matcher"
	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// contextFlags are shared by every command that takes a situation.
type contextFlags struct {
	pairs []string
	json  string
}

func (c *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&c.pairs, "context", "c", nil, "context field as key=value (repeatable)")
	cmd.Flags().StringVar(&c.json, "context-json", "", "context as a JSON object of scalars")
}

func (c *contextFlags) parse() (model.Context, error) {
	return parseContext(c.pairs, c.json)
}

// LearnOptions contains the configuration for the learn command.
type LearnOptions struct {
	Agent      string
	Type       string
	Outcome    string
	Confidence float64
	Project    string
	Tags       []string
	Context    contextFlags
}

func newLearnCommand(a *app) *cobra.Command {
	var opts LearnOptions
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Record an observed outcome",
		Example: `  paired learn --agent sherlock --type bug_fix \
    -c error_type=NullPointer -c module=auth --outcome "add a nil guard" --confidence 0.9`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateConfidence(opts.Confidence); err != nil {
				return err
			}
			ctx, err := opts.Context.parse()
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				id, created := s.engine.RegisterPattern(cmd.Context(), memory.Observation{
					Agent:      opts.Agent,
					Type:       opts.Type,
					Context:    ctx,
					Outcome:    opts.Outcome,
					Confidence: opts.Confidence,
					Project:    opts.Project,
					Tags:       opts.Tags,
				})
				result := map[string]any{"id": id, "created": created}
				return a.emit(result, func(w io.Writer) error {
					verb := "Updated"
					if created {
						verb = "Learned"
					}
					_, err := fmt.Fprintf(w, "%s pattern %s\n", verb, id)
					return err
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Agent, "agent", "", "agent that observed the outcome")
	f.StringVar(&opts.Type, "type", "", "pattern type, e.g. bug_fix")
	f.StringVar(&opts.Outcome, "outcome", "", "what worked")
	f.Float64Var(&opts.Confidence, "confidence", 0.5, "confidence in the outcome (0.0-1.0)")
	f.StringVar(&opts.Project, "project", "", "project the observation came from")
	f.StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	opts.Context.register(cmd)
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func newMatchCommand(a *app) *cobra.Command {
	var (
		agent, patternType string
		cf                 contextFlags
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find stored patterns similar to a situation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := cf.parse()
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				matches := s.engine.FindMatchingPatterns(agent, ctx, patternType)
				return a.emit(matches, func(w io.Writer) error {
					if len(matches) == 0 {
						_, err := fmt.Fprintln(w, "No matching patterns.")
						return err
					}
					tw := newTable(w)
					fmt.Fprintln(tw, "ID\tAGENT\tTYPE\tSIMILARITY\tRELEVANCE\tSUCCESS\tOUTCOME")
					for _, m := range matches {
						p := m.Pattern
						fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
							p.ID, p.Agent, p.Type, m.Similarity, m.Relevance, pct(p.SuccessRate), p.Outcome)
					}
					return tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent asking")
	cmd.Flags().StringVar(&patternType, "type", "", "only match this pattern type")
	cf.register(cmd)
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func newRecommendCommand(a *app) *cobra.Command {
	var (
		agent string
		limit int
		cf    contextFlags
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest outcomes for a situation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateLimit(limit); err != nil {
				return err
			}
			ctx, err := cf.parse()
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				recs := s.engine.GetRecommendations(agent, ctx, limit)
				return a.emit(recs, func(w io.Writer) error { return printRecommendations(w, recs) })
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent asking")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum recommendations (0 uses the configured default)")
	cf.register(cmd)
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func printRecommendations(w io.Writer, recs []matcher.Recommendation) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No recommendations.")
		return err
	}
	for i, r := range recs {
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Text)
		fmt.Fprintf(w, "   confidence %.2f  from %s/%s (%s)\n", r.Confidence, r.Agent, r.Type, r.PatternID)
	}
	return nil
}

func newUsageCommand(a *app) *cobra.Command {
	var (
		note   string
		failed bool
	)
	cmd := &cobra.Command{
		Use:   "usage <pattern-id>",
		Short: "Report whether applying a pattern worked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				p, err := s.engine.RecordPatternUsage(cmd.Context(), args[0], note, !failed)
				if err != nil {
					return err
				}
				return a.emit(p, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Pattern %s: success rate %s over %d uses\n", p.ID, pct(p.SuccessRate), p.UsageCount)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "what happened")
	cmd.Flags().BoolVar(&failed, "failed", false, "the pattern did not help")
	return cmd
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		agent string
		days  int
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report pattern effectiveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				report := s.engine.AnalyzePatternEffectiveness(agent, days)
				return a.emit(report, func(w io.Writer) error { return printReport(w, report) })
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "only analyze this agent")
	cmd.Flags().IntVar(&days, "days", 30, "window in days (0 for all time)")
	return cmd
}

func printReport(w io.Writer, r insight.Report) error {
	header(w, "Pattern Effectiveness")
	window := "all time"
	if r.WindowDays > 0 {
		window = fmt.Sprintf("last %d days", r.WindowDays)
	}
	fmt.Fprintf(w, "Window:    %s\n", window)
	fmt.Fprintf(w, "Patterns:  %d (%d effective, %s)\n", r.Total, r.Effective, pct(r.Ratio))

	if len(r.Agents) > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		fmt.Fprintln(tw, "AGENT\tPATTERNS\tEFFECTIVE\tMEAN SUCCESS")
		for _, ag := range r.Agents {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ag.Agent, ag.Total, pct(ag.Ratio), pct(ag.MeanSuccessRate))
		}
		tw.Flush()
	}
	if len(r.Signatures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recurring situations:")
		for _, sig := range r.Signatures {
			fmt.Fprintf(w, "  %s [%s] seen %d times, %s success\n",
				sig.Type, strings.Join(sig.Keys, ", "), sig.Frequency, pct(sig.SuccessRate))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
	return nil
}

func validateConfidence(v float64) error {
	return validateUnit("confidence", v)
}

func validateUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0.0 || v > 1.0 {
		return fmt.Errorf("%s must be between 0.0 and 1.0, got %f", name, v)
	}
	return nil
}

func validateLimit(v int) error {
	if v < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", v)
	}
	return nil
}
