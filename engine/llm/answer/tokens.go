package answer

import (
	"context"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/compozy/docqa/pkg/logger"
)

const defaultEncoding = "cl100k_base"

// TokenCounter estimates prompt sizes for logging.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) int
}

// RuneCounter approximates tokens as four characters each.
type RuneCounter struct{}

func (RuneCounter) CountTokens(_ context.Context, text string) int {
	count := len([]rune(text))
	if count == 0 {
		return 0
	}
	if tokens := count / 4; tokens > 0 {
		return tokens
	}
	return 1
}

// TiktokenCounter loads the BPE encoding on first use and falls back to
// RuneCounter when it cannot.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	tke      *tiktoken.Tiktoken
	fallback RuneCounter
}

func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) CountTokens(ctx context.Context, text string) int {
	c.once.Do(func() {
		tke, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			logger.FromContext(ctx).Warn("Token encoder unavailable, estimating by characters",
				"encoding", c.encoding,
				"error", err,
			)
			return
		}
		c.tke = tke
	})
	if c.tke == nil {
		return c.fallback.CountTokens(ctx, text)
	}
	return len(c.tke.Encode(text, nil, nil))
}
