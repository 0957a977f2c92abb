package document

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classifier picks the extraction format for a download.
type Classifier struct {
	fallback Type
}

func NewClassifier(fallback Type) *Classifier {
	if fallback == "" {
		fallback = TypePDF
	}
	return &Classifier{fallback: fallback}
}

// Classify decides by URL path suffix, then by declared content type, then
// by sniffing the body for plain text, and finally falls back to the
// configured default.
func (c *Classifier) Classify(rawURL, contentType string, head []byte) Type {
	if t, ok := classifyDeclared(rawURL, contentType); ok {
		return t
	}
	if len(head) > 0 {
		if isPlainText(detectMIME(head)) {
			return TypeText
		}
	}
	return c.fallback
}

func classifyDeclared(rawURL, contentType string) (Type, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return TypePDF, true
	case ".docx":
		return TypeDOCX, true
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return TypePDF, true
	case strings.Contains(ct, "word"):
		return TypeDOCX, true
	}
	return "", false
}

// detectMIME determines a MIME type using stdlib detection first and
// falling back to the broader mimetype library when ambiguous.
func detectMIME(head []byte) string {
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mt := http.DetectContentType(head)
	if mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(head).String()
}

func isPlainText(mime string) bool {
	return strings.HasPrefix(mime, "text/plain")
}
