package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mehmetkoksal-w/paired/internal/delegation"
)

type classifyResult struct {
	Decisions []delegation.Decision `json:"decisions"`
	Learned   map[string][]string   `json:"learned,omitempty"`
}

func newClassifyCommand(a *app) *cobra.Command {
	var learn bool
	cmd := &cobra.Command{
		Use:   "classify <text>...",
		Short: "Rank specialists for a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return a.withSession(cmd, func(s *session) error {
				res := classifyResult{Decisions: s.engine.Classify(text)}
				if learn {
					res.Learned = s.engine.LearnFromInteraction(cmd.Context(), text)
				}
				return a.emit(res, func(w io.Writer) error { return printDecisions(w, res) })
			})
		},
	}
	cmd.Flags().BoolVar(&learn, "learn", false, "learn word pairs for confident specialists")
	return cmd
}

func printDecisions(w io.Writer, res classifyResult) error {
	if len(res.Decisions) == 0 {
		fmt.Fprintln(w, "No specialist triggered.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "SPECIALIST\tCONFIDENCE\tTRIGGER\tDELEGATE\tSIGNALS")
		for _, d := range res.Decisions {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%t\t%s\n",
				d.Specialist, d.Confidence, d.Trigger, d.ShouldDelegate, strings.Join(d.Signals, ", "))
		}
		tw.Flush()
	}
	for specialist, phrases := range res.Learned {
		fmt.Fprintf(w, "Learned for %s: %s\n", specialist, strings.Join(phrases, ", "))
	}
	return nil
}

func newFeedbackCommand(a *app) *cobra.Command {
	var (
		failed       bool
		satisfaction float64
	)
	cmd := &cobra.Command{
		Use:   "feedback <specialist>",
		Short: "Report how a delegation went",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUnit("satisfaction", satisfaction); err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				t, err := s.engine.ProvideDelegationFeedback(cmd.Context(), args[0], !failed, satisfaction)
				if err != nil {
					return err
				}
				return a.emit(t, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s: trigger %.3f, delegation %.3f\n", args[0], t.Trigger, t.Delegation)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "the delegation did not succeed")
	cmd.Flags().Float64Var(&satisfaction, "satisfaction", 0.5, "user satisfaction (0.0-1.0)")
	return cmd
}

func newAdjustCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust",
		Short: "Run the periodic threshold correction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				adj := s.engine.AutoAdjustThresholds(cmd.Context())
				return a.emit(adj, func(w io.Writer) error {
					if len(adj) == 0 {
						_, err := fmt.Fprintln(w, "No thresholds changed.")
						return err
					}
					for _, x := range adj {
						fmt.Fprintf(w, "%s: trigger %.3f -> %.3f\n", x.Specialist, x.Before, x.After)
					}
					return nil
				})
			})
		},
	}
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show adaptive delegation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				stats := s.engine.GetAdaptiveStats()
				return a.emit(stats, func(w io.Writer) error {
					header(w, "Delegation Statistics")
					tw := newTable(w)
					fmt.Fprintln(tw, "SPECIALIST\tTRIGGER\tDELEGATION\tDELEGATIONS\tSUCCESS\tRECENT\tSATISFACTION\tPHRASES")
					for _, st := range stats {
						fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%d\t%s\t%s\t%.2f\t%d\n",
							st.Specialist, st.Thresholds.Trigger, st.Thresholds.Delegation, st.Total,
							pct(st.SuccessRate), pct(st.RecentSuccessRate), st.MeanSatisfaction, len(st.Phrases))
					}
					return tw.Flush()
				})
			})
		},
	}
}

func newResetCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget delegation learning",
		Long:  "Reset restores default thresholds and drops feedback history and learned phrases. Patterns are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("reset discards all delegation learning; rerun with --yes to confirm")
			}
			return a.withSession(cmd, func(s *session) error {
				s.engine.ResetLearning(cmd.Context())
				_, err := fmt.Fprintln(a.errOut, "Delegation learning reset.")
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
