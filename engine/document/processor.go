package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/engine/knowledge/chunk"
	"github.com/compozy/docqa/pkg/logger"
)

const sniffLength = 3072

// Downloader fetches a document body.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*Download, error)
}

// Processor turns a document URL into chunks.
type Processor struct {
	downloader Downloader
	classifier *Classifier
	chunker    *chunk.Processor
}

func NewProcessor(downloader Downloader, classifier *Classifier, chunker *chunk.Processor) (*Processor, error) {
	if downloader == nil {
		return nil, errors.New("document: downloader is required")
	}
	if chunker == nil {
		return nil, errors.New("document: chunker is required")
	}
	if classifier == nil {
		classifier = NewClassifier(TypePDF)
	}
	return &Processor{downloader: downloader, classifier: classifier, chunker: chunker}, nil
}

// Process downloads, classifies, extracts and chunks the document at rawURL.
// Chunk numbering continues across pages so every chunk id is unique.
func (p *Processor) Process(ctx context.Context, rawURL string) ([]chunk.Chunk, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("url", core.RedactURL(rawURL))
	download, err := p.downloader.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	head := download.Data
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	docType := p.classifier.Classify(rawURL, download.ContentType, head)
	extractor, err := ExtractorFor(docType)
	if err != nil {
		return nil, err
	}
	extraction, err := extractor.Extract(ctx, download.Data, download.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", docType, err)
	}
	if len(extraction.Pages) == 0 {
		return nil, ErrEmptyDocument
	}
	var chunks []chunk.Chunk
	for _, page := range extraction.Pages {
		base := map[string]any{
			chunk.MetaSourceURL:    rawURL,
			chunk.MetaDocumentType: string(docType),
		}
		if extraction.Paginated {
			base[chunk.MetaPage] = page.Number
			base[chunk.MetaTotalPages] = extraction.TotalPages
		}
		chunks = append(chunks, p.chunker.MakeChunksFrom(page.Text, base, len(chunks))...)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	log.Info("Document processed",
		"document_type", docType,
		"pages", len(extraction.Pages),
		"chunks", len(chunks),
		"duration_seconds", time.Since(start).Seconds(),
	)
	return chunks, nil
}
