// Package tokens estimates how many tokens a conversation consumes.
//
// The estimate follows the chat-format accounting published for OpenAI
// models: a fixed overhead per message, the encoded length of every field
// name and text value, a flat cost per image, and a fixed priming overhead
// for the assistant reply. The per-message and per-image constants are an
// approximation and are not guaranteed to match any provider's billing.
//
// Text is encoded with tiktoken (github.com/pkoukk/tiktoken-go). BPE ranks
// are loaded from the embedded offline loader, so estimating never needs
// network access.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Encoding converts text to token IDs.
type Encoding interface {
	Name() string
	Encode(text string) []int
}

// Loader returns the encoding registered under name.
type Loader func(name string) (Encoding, error)

var offlineOnce sync.Once

// TiktokenLoader loads encodings with tiktoken-go using the embedded BPE
// files.
func TiktokenLoader(name string) (Encoding, error) {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", name, err)
	}
	return &tiktokenEncoding{name: name, enc: enc}, nil
}

// tiktokenEncoding adapts *tiktoken.Tiktoken to Encoding.
type tiktokenEncoding struct {
	name string
	enc  *tiktoken.Tiktoken
	mu   sync.RWMutex
}

func (t *tiktokenEncoding) Name() string {
	return t.name
}

// Encode encodes text with no special tokens allowed. This method is
// thread-safe.
func (t *tiktokenEncoding) Encode(text string) []int {
	if text == "" {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.enc.Encode(text, nil, nil)
}
