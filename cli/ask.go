package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/docqa/engine/app"
	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/spf13/cobra"
)

// AskCmd runs the pipeline in process without the HTTP server.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer questions about a document locally",
		Example: `  docqa ask --document https://example.com/policy.pdf \
    --question "What is the grace period?" --question "Is maternity covered?"`,
		RunE: runAsk,
	}
	f := cmd.Flags()
	f.String("document", "", "URL of the document to query")
	f.StringArrayP("question", "q", nil, "Question to answer (repeatable)")
	f.Bool("json", false, "Print the answers as JSON")
	addPipelineFlags(cmd)
	return cmd
}

func runAsk(cmd *cobra.Command, _ []string) error {
	documentURL, questions, err := questionInput(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.FromContext(ctx).Warn("Failed to close application", "error", err)
		}
	}()
	answers, err := a.Pipeline.Process(ctx, documentURL, questions)
	if err != nil {
		return err
	}
	return writeAnswers(cmd, questions, answers)
}

func questionInput(cmd *cobra.Command) (string, []string, error) {
	documentURL, err := cmd.Flags().GetString("document")
	if err != nil {
		return "", nil, err
	}
	questions, err := cmd.Flags().GetStringArray("question")
	if err != nil {
		return "", nil, err
	}
	documentURL = strings.TrimSpace(documentURL)
	if documentURL == "" {
		return "", nil, errors.New("--document is required")
	}
	if len(questions) == 0 {
		return "", nil, errors.New("at least one --question is required")
	}
	for i, q := range questions {
		questions[i] = strings.TrimSpace(q)
		if questions[i] == "" {
			return "", nil, fmt.Errorf("question %d is blank", i+1)
		}
	}
	return documentURL, questions, nil
}
