package cli

import (
	"context"
	"fmt"

	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "docqa.yaml"
	defaultEnvFile    = ".env"
)

// RootCmd builds the docqa command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Answer questions about remote documents with retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML configuration file")
	flags.String("env-file", defaultEnvFile, "Path to a .env file loaded before the environment is read")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")

	root.AddCommand(
		ServeCmd(),
		AskCmd(),
		ClientCmd(),
		ConfigCmd(),
	)
	return root
}

// SetupGlobalConfig loads the env file and configuration, then attaches the
// configuration and logger to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, _, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, logSource)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, config.Service, error) {
	if _, err := loadEnvFile(cmd); err != nil {
		return nil, nil, err
	}
	var sources []config.Source
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	flags := make(map[string]any)
	if err := extractCLIFlags(cmd, flags); err != nil {
		return nil, nil, err
	}
	sources = append(sources, config.NewCLIProvider(flags))
	svc := config.NewService()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := svc.Load(ctx, sources...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, svc, nil
}
