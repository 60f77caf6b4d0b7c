package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/essaygrade/internal/analysis"
	"github.com/abhisek/essaygrade/internal/calibration"
	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/inference"
	"github.com/abhisek/essaygrade/internal/llm"
	"github.com/abhisek/essaygrade/internal/pipeline"
	"github.com/abhisek/essaygrade/internal/proficiency"
	"github.com/abhisek/essaygrade/internal/report"
	"github.com/abhisek/essaygrade/internal/store"
)

var gradeCmd = &cobra.Command{
	Use:   "grade <file|->",
	Short: "Grade an essay",
	Long:  "Grade an essay read from a file, or from stdin when the argument is \"-\".",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrade,
}

func init() {
	gradeCmd.Flags().StringP("learner", "l", "", "Learner ID; updates the learner's proficiency level")
	gradeCmd.Flags().String("id", "", "Submission ID; regrading the same ID does not count twice")
	gradeCmd.Flags().Float64("ocr-confidence", 0, "OCR confidence in [0,1] for transcribed essays")
	gradeCmd.Flags().Bool("json", false, "Print the full outcome as JSON")
	gradeCmd.Flags().Bool("no-llm", false, "Skip language-model analysis")
	gradeCmd.Flags().Bool("no-save", false, "Do not store the grading")
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	learnerID, _ := cmd.Flags().GetString("learner")
	id, _ := cmd.Flags().GetString("id")
	asJSON, _ := cmd.Flags().GetBool("json")
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	noSave, _ := cmd.Flags().GetBool("no-save")

	sub := pipeline.Submission{ID: id, LearnerID: learnerID, Text: text}
	if cmd.Flags().Changed("ocr-confidence") {
		c, _ := cmd.Flags().GetFloat64("ocr-confidence")
		sub.OCRConfidence = &c
	}
	if err := pipeline.ValidateSubmission(sub, cfg.MinWords); err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	grader, err := buildGrader(ctx, st, !noLLM)
	if err != nil {
		return err
	}

	out, gradeErr := grader.Grade(ctx, sub)
	if gradeErr != nil && out.Calibration.Grade == "" {
		return fmt.Errorf("grade essay: %w", gradeErr)
	}

	if !noSave {
		if err := saveGrading(ctx, st.GradingRepo(), out); err != nil {
			logger.Warn("grading not saved", "error", err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		lipgloss.Fprintln(cmd.OutOrStdout(), report.GradeCard(out))
	}

	// The grade is shown even when the learner update failed.
	if gradeErr != nil {
		return fmt.Errorf("update learner %s: %w", learnerID, gradeErr)
	}
	return nil
}

// buildGrader wires the pipeline from the loaded configuration.
func buildGrader(ctx context.Context, st *store.Store, withLLM bool) (*pipeline.Grader, error) {
	extractor, err := features.NewExtractor(cfg.Features)
	if err != nil {
		return nil, err
	}
	scaler, err := inference.LoadScaler(cfg.ScalerPath)
	if err != nil {
		return nil, err
	}
	engine, err := calibration.NewEngine(cfg.Calibration)
	if err != nil {
		return nil, err
	}
	start, err := essay.ParseLevel(cfg.StartLevel)
	if err != nil {
		return nil, err
	}

	gateway := inference.New(cfg.Inference, scaler, inference.WithLogger(logger))
	tracker := proficiency.NewTracker(st.LearnerRepo(),
		proficiency.WithPolicy(cfg.Proficiency),
		proficiency.WithTransitionSink(st.TransitionRepo()),
		proficiency.WithStartLevel(start),
		proficiency.WithLogger(logger),
	)

	opts := []pipeline.Option{
		pipeline.WithTracker(tracker),
		pipeline.WithWeaknessThreshold(cfg.WeaknessThreshold),
		pipeline.WithLogger(logger),
	}
	if withLLM && cfg.LLM.Enabled() {
		provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo())
		if err != nil {
			// Grading continues without the analysis.
			logger.Warn("LLM provider not configured", "error", err)
		} else {
			opts = append(opts, pipeline.WithAnalyzer(
				analysis.NewAnalyzer(provider, cfg.Analysis, analysis.WithLogger(logger))))
		}
	}

	return pipeline.New(extractor, gateway, engine, opts...), nil
}

func saveGrading(ctx context.Context, repo *store.GradingRepo, out pipeline.Outcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return repo.Save(ctx, &store.GradingRecord{
		ID:             out.SubmissionID,
		LearnerID:      out.LearnerID,
		CreatedAt:      out.GradedAt,
		WordCount:      out.Summary.Words,
		FinalScore:     out.Calibration.FinalScore,
		Grade:          out.Calibration.Grade,
		Uncertainty:    out.Calibration.UncertaintyRange,
		Source:         string(out.Inference.Source),
		ParseStage:     string(out.Analysis.Stage),
		FallbackReason: out.Inference.FallbackReason,
		ResultJSON:     string(data),
	})
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read essay: %w", err)
	}
	return string(data), nil
}
