package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Extractor turns a document body into text pages.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (*Extraction, error)
}

// ExtractorFor returns the extractor registered for t.
func ExtractorFor(t Type) (Extractor, error) {
	switch t {
	case TypePDF:
		return pdfExtractor{}, nil
	case TypeDOCX:
		return docxExtractor{}, nil
	case TypeText:
		return textExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}
}

type pdfExtractor struct{}

// Extract returns one page per PDF page, skipping pages without text.
// The pdf reader panics on malformed input; that is reported as an error.
func (pdfExtractor) Extract(ctx context.Context, data []byte, _ string) (out *Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	out = &Extraction{TotalPages: total, Paginated: true}
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out.Pages = append(out.Pages, Page{Number: i, Text: text})
	}
	return out, nil
}

type textExtractor struct{}

// Extract returns UTF-8 input as is and transcodes anything else using the
// declared or detected charset.
func (textExtractor) Extract(_ context.Context, data []byte, contentType string) (*Extraction, error) {
	text, err := decodeText(data, contentType)
	if err != nil {
		return nil, err
	}
	return singlePage(text), nil
}

func decodeText(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded result invalid utf-8")
	}
	return string(decoded), nil
}

func singlePage(text string) *Extraction {
	if strings.TrimSpace(text) == "" {
		return &Extraction{}
	}
	return &Extraction{Pages: []Page{{Text: text}}}
}
