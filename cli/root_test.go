package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(t *testing.T, root *cobra.Command, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(args)
	require.NoError(t, err)
	return cmd
}

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should inject YAML values into the context", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "docqa.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("retrieval:\n  top_k: 7\nllm:\n  provider: mock\n"), 0o600))

		cmd := findCommand(t, RootCmd(), "ask")
		require.NoError(t, cmd.ParseFlags([]string{"--env-file", "", "--config", cfgPath}))

		require.NoError(t, SetupGlobalConfig(cmd))

		cfg := config.FromContext(cmd.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, 7, cfg.Retrieval.TopK)
		assert.Equal(t, "mock", cfg.LLM.Provider)
		assert.NotNil(t, logger.FromContext(cmd.Context()))
	})

	t.Run("Should let flags override YAML", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "docqa.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("retrieval:\n  top_k: 7\n"), 0o600))

		cmd := findCommand(t, RootCmd(), "ask")
		require.NoError(t, cmd.ParseFlags([]string{
			"--env-file", "", "--config", cfgPath,
			"--top-k", "3", "--llm-timeout", "9s", "--threshold", "0.42",
			"--context-tokens", "600",
		}))

		require.NoError(t, SetupGlobalConfig(cmd))

		cfg := config.FromContext(cmd.Context())
		assert.Equal(t, 3, cfg.Retrieval.TopK)
		assert.Equal(t, 9*time.Second, cfg.LLM.Timeout)
		assert.InDelta(t, 0.42, cfg.Retrieval.Threshold, 1e-9)
		assert.Equal(t, 600, cfg.Retrieval.MaxTokens)
	})

	t.Run("Should disable auth with no-auth flag", func(t *testing.T) {
		cmd := findCommand(t, RootCmd(), "serve")
		require.NoError(t, cmd.ParseFlags([]string{"--env-file", "", "--config", "", "--no-auth"}))

		require.NoError(t, SetupGlobalConfig(cmd))

		assert.False(t, config.FromContext(cmd.Context()).Server.Auth.Enabled)
	})

	t.Run("Should tolerate a missing config file", func(t *testing.T) {
		cmd := findCommand(t, RootCmd(), "ask")
		missing := filepath.Join(t.TempDir(), "absent.yaml")
		require.NoError(t, cmd.ParseFlags([]string{"--env-file", "", "--config", missing}))

		require.NoError(t, SetupGlobalConfig(cmd))
		assert.Equal(t, config.Default().Retrieval.TopK, config.FromContext(cmd.Context()).Retrieval.TopK)
	})

	t.Run("Should reject invalid chunk settings", func(t *testing.T) {
		cmd := findCommand(t, RootCmd(), "ask")
		require.NoError(t, cmd.ParseFlags([]string{
			"--env-file", "", "--config", "",
			"--chunk-size", "100", "--chunk-overlap", "200",
		}))

		err := SetupGlobalConfig(cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})
}

func TestRootCmd(t *testing.T) {
	t.Run("Should register every subcommand", func(t *testing.T) {
		root := RootCmd()
		names := make([]string, 0, len(root.Commands()))
		for _, c := range root.Commands() {
			names = append(names, c.Name())
		}
		assert.Subset(t, names, []string{"serve", "ask", "client", "config"})
	})
}
