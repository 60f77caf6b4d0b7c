package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/essaygrade/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: "Print the configuration after applying flags, ESSAYGRADE_* environment variables " +
		"and the --config file. API keys are redacted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(redacted(cfg))
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every configuration key",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, name := range config.Names() {
			env := config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
			fmt.Fprintf(w, "%-24s  %s\n", name, env)
		}
	},
}

func redacted(c config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&c.LLM.Anthropic.APIKey)
	mask(&c.LLM.OpenAI.APIKey)
	mask(&c.LLM.Gemini.APIKey)
	mask(&c.LLM.OpenRouter.APIKey)
	return c
}

func init() {
	configCmd.AddCommand(configKeysCmd)
}
