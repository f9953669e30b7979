package assembler

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used for budget accounting.
const DefaultEncoding = "cl100k_base"

func init() {
	// Offline loader: dictionaries are embedded, no network fetch.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// BPECounter counts tokens with tiktoken.
type BPECounter struct {
	enc *tiktoken.Tiktoken
}

// NewBPECounter loads the named encoding, defaulting to cl100k_base.
func NewBPECounter(encoding string) (*BPECounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encoding, err)
	}
	return &BPECounter{enc: enc}, nil
}

// CountTokens returns the number of BPE tokens in text.
func (c *BPECounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
