package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

type docxExtractor struct{}

// Extract returns the body paragraphs followed by the table rows as one page.
func (docxExtractor) Extract(_ context.Context, data []byte, _ string) (*Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	content, err := readZipPart(reader, docxBodyPart)
	if err != nil {
		return nil, err
	}
	text, err := parseDocumentXML(content)
	if err != nil {
		return nil, err
	}
	return singlePage(text), nil
}

func readZipPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open docx part %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read docx part %s: %w", name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("docx part %s not found", name)
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
		Tables     []table     `xml:"tbl"`
	} `xml:"body"`
}

type table struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

// paragraph collects the text of every w:t inside a w:p in document order.
// Tabs and breaks count only inside a run; w:tab under w:pPr is a tab stop.
type paragraph struct {
	text string
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	depth := 0
	runs := 0
	inText := false
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "r":
				runs++
			case "t":
				inText = true
			case "tab":
				if runs > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if runs > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if depth == 0 {
				p.text = b.String()
				return nil
			}
			depth--
			switch t.Name.Local {
			case "r":
				runs--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse docx body: %w", err)
	}
	var b strings.Builder
	for _, para := range doc.Body.Paragraphs {
		if strings.TrimSpace(para.text) == "" {
			continue
		}
		b.WriteString(para.text)
		b.WriteString("\n\n")
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				texts := make([]string, len(cell.Paragraphs))
				for i := range cell.Paragraphs {
					texts[i] = cell.Paragraphs[i].text
				}
				if text := strings.TrimSpace(strings.Join(texts, "\n")); text != "" {
					cells = append(cells, text)
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}
