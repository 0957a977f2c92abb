package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/docqa/engine/core"
)

// Processor splits text into overlapping fixed-size windows.
type Processor struct {
	settings Settings
}

// NewProcessor validates the window settings.
func NewProcessor(settings Settings) (*Processor, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Processor{settings: settings}, nil
}

// Settings returns the active window settings.
func (p *Processor) Settings() Settings {
	return p.settings
}

// MakeChunks splits text and numbers the chunks from zero.
func (p *Processor) MakeChunks(text string, base map[string]any) []Chunk {
	return p.MakeChunksFrom(text, base, 0)
}

// MakeChunksFrom splits text and numbers the chunks from first.
//
// A text that fits in one window is returned as a single chunk without
// offsets. Longer texts are cut every Size characters; when the cut falls
// before the end of the text it moves back to the last space found in the
// final Overlap characters of the window, provided that space lies after
// the window start. Windows advance to end-Overlap, so neighbours share up
// to Overlap characters. Offsets are character (rune) positions into text
// before trimming.
func (p *Processor) MakeChunksFrom(text string, base map[string]any, first int) []Chunk {
	runes := []rune(text)
	n := len(runes)
	size, overlap := p.settings.Size, p.settings.Overlap
	if n <= size {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Chunk{newChunk(text, base, first, nil)}
	}
	var chunks []Chunk
	idx := first
	start := 0
	for start < n {
		end := start + size
		if end < n {
			if bp := lastSpace(runes, end-overlap, end); bp > start {
				end = bp
			}
		} else {
			end = n
		}
		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			chunks = append(chunks, newChunk(window, base, idx, map[string]any{
				MetaStartChar: start,
				MetaEndChar:   end,
			}))
			idx++
		}
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			// only reachable when 2*overlap >= size
			next = end
		}
		start = next
	}
	return chunks
}

// lastSpace returns the position of the last ' ' in runes[from:to] or -1.
func lastSpace(runes []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	for i := to - 1; i >= from; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func newChunk(text string, base map[string]any, idx int, extra map[string]any) Chunk {
	metadata := core.CloneMap(base)
	if metadata == nil {
		metadata = make(map[string]any, len(extra)+1)
	}
	metadata[MetaChunkIndex] = idx
	for k, v := range extra {
		metadata[k] = v
	}
	return Chunk{
		ID:       fmt.Sprintf("chunk_%d", idx),
		Text:     text,
		Hash:     hashText(strings.TrimSpace(text)),
		Metadata: metadata,
	}
}

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
