package document

import (
	"errors"
	"fmt"
)

// Type is the document format selected for extraction.
type Type string

const (
	TypePDF  Type = "pdf"
	TypeDOCX Type = "docx"
	TypeText Type = "text"
)

// ParseType validates a configured document type.
func ParseType(value string) (Type, error) {
	switch t := Type(value); t {
	case TypePDF, TypeDOCX, TypeText:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, value)
	}
}

var (
	ErrUnsupportedType      = errors.New("unsupported document type")
	ErrEmptyDocument        = errors.New("document contains no extractable text")
	ErrTooLarge             = errors.New("document exceeds size limit")
	ErrMaxRedirectsExceeded = errors.New("max redirects exceeded")
	ErrUnsupportedScheme    = errors.New("document url must use http or https")
)

// Download is a fetched document body.
type Download struct {
	Data        []byte
	ContentType string
	FinalURL    string
}

// Page is one unit of extracted text. Number is 1-based for paginated
// formats and zero otherwise.
type Page struct {
	Number int
	Text   string
}

// Extraction is the text of a document split into pages.
type Extraction struct {
	Pages      []Page
	TotalPages int
	Paginated  bool
}
