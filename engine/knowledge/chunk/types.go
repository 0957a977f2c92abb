package chunk

// Metadata keys attached to every chunk.
const (
	MetaSourceURL    = "source_url"
	MetaDocumentType = "document_type"
	MetaChunkIndex   = "chunk_index"
	MetaPage         = "page"
	MetaTotalPages   = "total_pages"
	MetaStartChar    = "start_char"
	MetaEndChar      = "end_char"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Settings configures the sliding window, measured in characters.
type Settings struct {
	Size    int
	Overlap int
}

// DefaultSettings returns the 1000/200 window.
func DefaultSettings() Settings {
	return Settings{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Chunk represents a processed slice ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata map[string]any
}

// Index returns the chunk_index metadata value or -1.
func (c Chunk) Index() int {
	if v, ok := c.Metadata[MetaChunkIndex].(int); ok {
		return v
	}
	return -1
}
