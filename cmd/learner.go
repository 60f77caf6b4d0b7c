package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/proficiency"
	"github.com/abhisek/essaygrade/internal/report"
)

var learnerCmd = &cobra.Command{
	Use:   "learner",
	Short: "Inspect and manage learner proficiency",
}

var learnerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known learners",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		learners, err := s.LearnerRepo().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list learners: %w", err)
		}
		if len(learners) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No learners yet.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-24s  %-12s  %s\n", "Learner", "Level", "Updated")
		fmt.Fprintln(w, strings.Repeat("─", 60))
		for _, l := range learners {
			fmt.Fprintf(w, "%-24s  %-12s  %s\n",
				truncate(l.ID, 24), l.Level, l.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var learnerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a learner's level, recent scores and warnings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		state, err := s.LearnerRepo().LoadState(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("learner %q not found", args[0])
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), report.LearnerCard(*state, time.Now()))
		return nil
	},
}

var learnerHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List a learner's gradings and level changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		gradings, err := s.GradingRepo().ListByLearner(ctx, args[0], limit)
		if err != nil {
			return err
		}
		transitions, err := s.TransitionRepo().ListByLearner(ctx, args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(gradings) == 0 {
			fmt.Fprintln(w, "No gradings recorded.")
		} else {
			fmt.Fprintf(w, "%-19s  %5s  %-5s  %6s  %-9s  %-12s  %s\n",
				"Graded", "Score", "Grade", "Words", "Scorer", "Analysis", "ID")
			fmt.Fprintln(w, strings.Repeat("─", 100))
			for _, g := range gradings {
				fmt.Fprintf(w, "%-19s  %5d  %-5s  %6d  %-9s  %-12s  %s\n",
					g.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					g.FinalScore, g.Grade, g.WordCount, g.Source, g.ParseStage, g.ID)
			}
		}

		if len(transitions) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Level changes")
			fmt.Fprintln(w, strings.Repeat("─", 60))
			for _, t := range transitions {
				fmt.Fprintf(w, "%-19s  %-12s → %-12s  %s\n",
					t.At.Local().Format("2006-01-02 15:04:05"), t.From, t.To, t.Reason)
			}
		}
		return nil
	},
}

var learnerSeedCmd = &cobra.Command{
	Use:   "seed <id>",
	Short: "Start a learner at a level with prior scores",
	Long: "Replace a learner's state with a fresh one at --level, seeding the recent-score " +
		"window from --scores (oldest first), e.g. imported from another system, or from the " +
		"learner's stored gradings with --from-history.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		levelName, _ := cmd.Flags().GetString("level")
		scoreList, _ := cmd.Flags().GetString("scores")
		fromHistory, _ := cmd.Flags().GetBool("from-history")
		if fromHistory && scoreList != "" {
			return fmt.Errorf("--scores and --from-history are mutually exclusive")
		}

		level, err := essay.ParseLevel(levelName)
		if err != nil {
			return err
		}
		prior, err := parseScores(scoreList)
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if fromHistory {
			prior, err = s.GradingRepo().RecentScores(cmd.Context(), args[0], cfg.Proficiency.WindowSize)
			if err != nil {
				return err
			}
		}

		tracker := proficiency.NewTracker(s.LearnerRepo(),
			proficiency.WithPolicy(cfg.Proficiency), proficiency.WithLogger(logger))
		state, err := tracker.Seed(cmd.Context(), args[0], level, prior)
		if err != nil {
			return err
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), report.LearnerCard(state, time.Now()))
		return nil
	},
}

var learnerResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Forget a learner's proficiency state",
	Long:  "Delete a learner's proficiency state. Stored gradings and level changes are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		deleted, err := s.LearnerRepo().Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("learner %q not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s.\n", args[0])
		return nil
	},
}

// parseScores reads a comma-separated list of 0-100 scores.
func parseScores(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid score %q: %w", part, err)
		}
		if n < 0 || n > 100 {
			return nil, fmt.Errorf("score %d outside 0-100", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func init() {
	learnerHistoryCmd.Flags().IntP("limit", "n", 20, "Number of gradings to show")
	learnerSeedCmd.Flags().String("level", string(essay.Beginner), "Starting level: beginner, intermediate or advanced")
	learnerSeedCmd.Flags().String("scores", "", "Prior scores, oldest first, e.g. 72,75,80")
	learnerSeedCmd.Flags().Bool("from-history", false, "Seed from the learner's most recent stored gradings")

	learnerCmd.AddCommand(learnerListCmd)
	learnerCmd.AddCommand(learnerShowCmd)
	learnerCmd.AddCommand(learnerHistoryCmd)
	learnerCmd.AddCommand(learnerSeedCmd)
	learnerCmd.AddCommand(learnerResetCmd)
}
