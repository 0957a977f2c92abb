package cli

import (
	"fmt"

	"github.com/compozy/docqa/engine/app"
	"github.com/compozy/docqa/engine/infra/server"
	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// ServeCmd starts the HTTP API.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the question answering HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("host", "", "Host interface to bind")
	f.Int("port", 0, "Port to listen on")
	f.String("auth-token", "", "Bearer token required on API routes")
	f.Bool("no-auth", false, "Disable bearer authentication")
	addPipelineFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)
	if cfg.Runtime.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	a, err := app.Build(ctx, cfg, app.WithMonitoring())
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			log.Warn("Failed to close application", "error", err)
		}
	}()
	srv, err := server.NewServer(ctx, cfg, a.Pipeline, server.WithMonitoring(a.Monitoring))
	if err != nil {
		return err
	}
	log.Info("Starting server", "addr", srv.Addr(), "llm", cfg.LLM.Provider, "model", cfg.LLM.Model)
	return srv.Run(ctx)
}
