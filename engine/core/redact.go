package core

import (
	"net/url"
	"regexp"
	"strings"
)

// Precompiled patterns for common secret shapes in error/log strings.
var (
	bearerTokenRe = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-\._~\+\/]+=*`)
	kvSecretRe    = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|password|pwd|credential|access_token)\s*[:=]\s*["']?[^"'\s&]+["']?`,
	)
	genericKeyRe = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{16,}|AIza[0-9A-Za-z_\-]{35})\b`)
	// signed storage URLs carry their credential in the query string
	signatureRe = regexp.MustCompile(`(?i)([?&](sig|signature|x-goog-signature|x-amz-signature|key)=)[^&\s"']+`)
	userinfoRe  = regexp.MustCompile(`(?i)(https?://)[^@/\s]+@`)
)

// RedactString trims, truncates, and scrubs common secret patterns.
func RedactString(s string) string {
	const maxLen = 512
	s = strings.TrimSpace(s)
	s = userinfoRe.ReplaceAllString(s, "$1[REDACTED]@")
	s = signatureRe.ReplaceAllString(s, "$1[REDACTED]")
	s = bearerTokenRe.ReplaceAllString(s, "$1[REDACTED]")
	s = kvSecretRe.ReplaceAllString(s, "$1=[REDACTED]")
	s = genericKeyRe.ReplaceAllString(s, "[REDACTED]")
	if len(s) > maxLen {
		s = s[:maxLen] + "…"
	}
	return s
}

// RedactError applies RedactString to an error, returning an empty string when nil.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return RedactString(err.Error())
}

// RedactURL drops the query string and user info so document links can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return RedactString(raw)
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	u.Fragment = ""
	return u.String()
}
