package cmd

import (
	"encoding/json"
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/report"
)

var featuresCmd = &cobra.Command{
	Use:   "features <file|->",
	Short: "Show the feature vector computed for an essay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		nonZero, _ := cmd.Flags().GetBool("nonzero")
		asJSON, _ := cmd.Flags().GetBool("json")

		if group != "" && !knownGroup(group) {
			return fmt.Errorf("unknown feature group %q", group)
		}

		text, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		extractor, err := features.NewExtractor(cfg.Features)
		if err != nil {
			return err
		}
		v, summary := extractor.Analyze(text, nil)

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Summary  features.Summary `json:"summary"`
				Features []float64        `json:"features"`
			}{summary, v.Slice()})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d words, %d sentences, %d paragraphs, structure: %v\n\n",
			summary.Words, summary.Sentences, summary.Paragraphs, summary.StructurePresent)
		lipgloss.Fprintln(cmd.OutOrStdout(), report.FeatureTable(v, group, nonZero))
		return nil
	},
}

func knownGroup(name string) bool {
	for _, g := range features.Layout() {
		if g.Name == name {
			return true
		}
	}
	return false
}

func init() {
	featuresCmd.Flags().StringP("group", "g", "", "Only show one group (surface, lexical, vocabulary, sentence, structure, coherence, mechanics)")
	featuresCmd.Flags().Bool("nonzero", false, "Hide slots whose value is zero")
	featuresCmd.Flags().Bool("json", false, "Print the summary and raw vector as JSON")
}
