package llmadapter

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// statusRe finds an HTTP status embedded in provider error text, such as
// "googleapi: Error 429" or "status code: 503".
var statusRe = regexp.MustCompile(`(?i)(?:status code:?|status:|http|error|code)\s+([45]\d\d)\b`)

// errorRule maps message fragments to a classified error.
type errorRule struct {
	fragments []string
	status    int
	code      string
}

// Order matters: quota must win over the generic 429 fragments.
var errorRules = []errorRule{
	{fragments: []string{"insufficient_quota", "quota exceeded"}, code: ErrCodeQuotaExceeded},
	{fragments: []string{
		"rate limit", "rate-limit", "ratelimit", "too many requests",
		"throttled", "throttling", "resource_exhausted", "resource exhausted",
	}, status: http.StatusTooManyRequests},
	{fragments: []string{
		"service unavailable", "service_unavailable", "temporarily unavailable",
		"overloaded", "try again later",
	}, status: http.StatusServiceUnavailable},
	{fragments: []string{
		"unauthorized", "invalid api key", "invalid_api_key", "api key not valid",
		"permission denied", "permission_denied",
	}, status: http.StatusUnauthorized},
	{fragments: []string{"invalid model", "model not found"}, code: ErrCodeInvalidModel},
	{fragments: []string{"content policy", "safety"}, code: ErrCodeContentPolicy},
	{fragments: []string{"timeout", "timed out", "deadline exceeded"}, code: ErrCodeTimeout},
	{fragments: []string{"connection reset"}, code: ErrCodeConnectionReset},
	{fragments: []string{
		"connection refused", "connection failed", "network error", "no such host",
	}, code: ErrCodeConnectionRefused},
}

// ErrorParser classifies raw provider errors so the answer generator can
// decide whether to retry.
type ErrorParser struct {
	provider string
}

// NewErrorParser creates a parser that tags errors with provider.
func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

// ParseError returns nil when err does not match any known shape.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCode(ErrCodeTimeout, msg, p.provider, err)
	}
	if m := statusRe.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return NewError(code, msg, p.provider, err)
		}
	}
	lower := strings.ToLower(msg)
	for _, rule := range errorRules {
		if !containsAny(lower, rule.fragments) {
			continue
		}
		if rule.code != "" {
			return NewErrorWithCode(rule.code, msg, p.provider, err)
		}
		return NewError(rule.status, msg, p.provider, err)
	}
	return nil
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
