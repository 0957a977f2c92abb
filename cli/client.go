package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/compozy/docqa/engine/infra/server"
	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

const (
	clientRetryCount   = 3
	clientRetryWait    = 500 * time.Millisecond
	clientRetryMaxWait = 5 * time.Second
)

// APIClient calls a running docqa server.
type APIClient struct {
	client *resty.Client
}

// APIError is the problem body returned by the server.
type APIError struct {
	Status  int    `json:"status"`
	Title   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Detail  string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := e.Details
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = e.Title
	}
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

// NewAPIClient builds a client from the cli configuration section.
func NewAPIClient(cfg *config.Config) (*APIClient, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.CLI.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("cli.base_url is required")
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(clientRetryCount).
		SetRetryWaitTime(clientRetryWait).
		SetRetryMaxWaitTime(clientRetryMaxWait).
		AddRetryCondition(shouldRetry)
	if cfg.CLI.Timeout > 0 {
		client.SetTimeout(cfg.CLI.Timeout)
	}
	if key := cfg.CLI.APIKey.Value(); key != "" {
		client.SetAuthToken(key)
	}
	return &APIClient{client: client}, nil
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	switch resp.StatusCode() {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Run submits one document and its questions.
func (c *APIClient) Run(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	var result server.RunResponse
	var apiErr APIError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(server.RunRequest{Documents: documentURL, Questions: questions}).
		SetResult(&result).
		SetError(&apiErr).
		Post(server.RouteRun)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode()
		}
		return nil, &apiErr
	}
	if len(result.Answers) != len(questions) {
		return nil, fmt.Errorf("server returned %d answers for %d questions", len(result.Answers), len(questions))
	}
	return result.Answers, nil
}

// ClientCmd groups the commands that talk to a remote server.
func ClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Call a running docqa server",
	}
	cmd.AddCommand(clientRunCmd())
	return cmd
}

func clientRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a document and questions to the server",
		RunE:  runClient,
	}
	f := cmd.Flags()
	f.String("document", "", "URL of the document to query")
	f.StringArrayP("question", "q", nil, "Question to answer (repeatable)")
	f.Bool("json", false, "Print the answers as JSON")
	f.String("base-url", "", "Server base URL")
	f.String("api-key", "", "Bearer token sent to the server")
	return cmd
}

func runClient(cmd *cobra.Command, _ []string) error {
	documentURL, questions, err := questionInput(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	client, err := NewAPIClient(cfg)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Submitting questions", "base_url", cfg.CLI.BaseURL, "questions", len(questions))
	answers, err := client.Run(ctx, documentURL, questions)
	if err != nil {
		return err
	}
	return writeAnswers(cmd, questions, answers)
}
