package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/essaygrade/internal/config"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	c.Flags().String("config", "", "")
	c.Flags().String("db", "", "")
	c.Flags().String("log-level", "", "")
	c.Flags().String("log-format", "", "")
	c.Flags().StringArray("set", nil, "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestConfigArgs(t *testing.T) {
	c := newFlagCmd(t, "--db", "/tmp/x.db", "--set", "min-words=5", "--set", "backend-url=http://h/score?a=b")
	got, err := configArgs(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"-db", "/tmp/x.db", "-min-words", "5", "-backend-url", "http://h/score?a=b"}, got)

	none, err := configArgs(newFlagCmd(t))
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = configArgs(newFlagCmd(t, "--set", "novalue"))
	assert.Error(t, err)
	_, err = configArgs(newFlagCmd(t, "--set", "=5"))
	assert.Error(t, err)
}

func TestParseScores(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"72, 75,80", []int{72, 75, 80}, false},
		{"100,0", []int{100, 0}, false},
		{"72,abc", nil, true},
		{"101", nil, true},
		{"-1", nil, true},
	}
	for _, tt := range tests {
		got, err := parseScores(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRedacted(t *testing.T) {
	c := config.Default()
	c.LLM.Anthropic.APIKey = "sk-ant-secret"
	c.LLM.OpenAI.APIKey = ""

	r := redacted(c)
	assert.Equal(t, "********", r.LLM.Anthropic.APIKey)
	assert.Empty(t, r.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-ant-secret", c.LLM.Anthropic.APIKey)
}
