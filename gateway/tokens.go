package gateway

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens counts tokens with the cl100k_base encoding, falling back to
// the 4-chars-per-token approximation when the encoding is unavailable
// (offline environments cannot fetch the BPE ranks).
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}

	approx := len(text) / 4
	if approx < 1 {
		approx = 1
	}
	return approx
}
