package tokens

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultEncoding is used when no encoding is registered for a model.
const DefaultEncoding = "cl100k_base"

// Known model identifiers and the encoding each one uses. Azure deployments
// commonly use the "gpt-35-turbo" spelling, so both spellings are listed.
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"chatgpt-4o-latest":      "o200k_base",
	"o1":                     "o200k_base",
	"o3":                     "o200k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-4-32k":              "cl100k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4-vision-preview":   "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"gpt-3.5":                "cl100k_base",
	"gpt-35-turbo":           "cl100k_base",
	"davinci-002":            "cl100k_base",
	"babbage-002":            "cl100k_base",
	"text-embedding-ada-002": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-davinci-003":       "p50k_base",
	"text-davinci-002":       "p50k_base",
	"code-davinci-002":       "p50k_base",
	"davinci":                "r50k_base",
	"curie":                  "r50k_base",
	"babbage":                "r50k_base",
	"ada":                    "r50k_base",
}

// Dated and fine-tuned variants are matched by prefix.
var modelPrefixEncodings = map[string]string{
	"o1-":              "o200k_base",
	"o3-":              "o200k_base",
	"gpt-4o-":          "o200k_base",
	"chatgpt-4o-":      "o200k_base",
	"gpt-4-":           "cl100k_base",
	"gpt-3.5-turbo-":   "cl100k_base",
	"gpt-35-turbo-":    "cl100k_base",
	"ft:gpt-4":         "cl100k_base",
	"ft:gpt-3.5-turbo": "cl100k_base",
	"ft:davinci-002":   "cl100k_base",
	"ft:babbage-002":   "cl100k_base",
}

type prefixEntry struct {
	prefix   string
	encoding string
}

// Registry maps model identifiers to encodings and caches loaded encodings.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	models   map[string]string
	prefixes []prefixEntry // Longest prefix first
	fallback string
	loader   Loader
	cache    map[string]Encoding
}

// NewRegistry creates an empty registry. Encodings are loaded lazily with
// loader; fallback names the encoding used for unknown models.
func NewRegistry(loader Loader, fallback string) *Registry {
	if fallback == "" {
		fallback = DefaultEncoding
	}
	return &Registry{
		models:   make(map[string]string),
		fallback: fallback,
		loader:   loader,
		cache:    make(map[string]Encoding),
	}
}

// NewModelRegistry creates a registry seeded with the known OpenAI models.
func NewModelRegistry(loader Loader) *Registry {
	r := NewRegistry(loader, DefaultEncoding)
	for m, enc := range modelEncodings {
		r.RegisterModel(m, enc)
	}
	for p, enc := range modelPrefixEncodings {
		r.RegisterPrefix(p, enc)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide tiktoken-backed registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewModelRegistry(TiktokenLoader)
	})
	return defaultRegistry
}

// RegisterModel maps an exact model identifier to an encoding name.
func (r *Registry) RegisterModel(model, encoding string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[model] = encoding
}

// RegisterPrefix maps every model starting with prefix to an encoding name.
func (r *Registry) RegisterPrefix(prefix, encoding string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.prefixes {
		if p.prefix == prefix {
			r.prefixes[i].encoding = encoding
			return
		}
	}
	r.prefixes = append(r.prefixes, prefixEntry{prefix: prefix, encoding: encoding})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
}

// Lookup returns the encoding name for model. found is false when neither an
// exact identifier nor a prefix matches.
func (r *Registry) Lookup(model string) (encoding string, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if enc, ok := r.models[model]; ok {
		return enc, true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(model, p.prefix) {
			return p.encoding, true
		}
	}
	return "", false
}

// Fallback returns the name of the encoding used for unknown models.
func (r *Registry) Fallback() string {
	return r.fallback
}

// Load returns the named encoding, loading it on first use.
func (r *Registry) Load(name string) (Encoding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if enc, ok := r.cache[name]; ok {
		return enc, nil
	}
	if r.loader == nil {
		return nil, fmt.Errorf("no loader configured for encoding %s", name)
	}
	enc, err := r.loader(name)
	if err != nil {
		return nil, err
	}
	r.cache[name] = enc
	return enc, nil
}
