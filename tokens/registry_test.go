package tokens

import (
	"errors"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewModelRegistry(nil)

	tests := []struct {
		model     string
		wantEnc   string
		wantFound bool
	}{
		{"gpt-4", "cl100k_base", true},
		{"gpt-35-turbo", "cl100k_base", true},
		{"gpt-4-0613", "cl100k_base", true},
		{"gpt-4o", "o200k_base", true},
		{"gpt-4o-mini", "o200k_base", true},
		{"gpt-4o-2024-08-06", "o200k_base", true},
		{"text-davinci-003", "p50k_base", true},
		{"ft:gpt-3.5-turbo:acme::abc", "cl100k_base", true},
		{"llama3.1:latest", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			enc, found := r.Lookup(tt.model)
			if found != tt.wantFound || enc != tt.wantEnc {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.model, enc, found, tt.wantEnc, tt.wantFound)
			}
		})
	}
}

func TestRegistryPrefixOverride(t *testing.T) {
	r := NewRegistry(nil, "")
	r.RegisterPrefix("acme-", "p50k_base")
	r.RegisterPrefix("acme-large-", "cl100k_base")
	r.RegisterPrefix("acme-", "r50k_base")

	if enc, _ := r.Lookup("acme-large-v2"); enc != "cl100k_base" {
		t.Errorf("Lookup(acme-large-v2) = %q, want longest prefix match", enc)
	}
	if enc, _ := r.Lookup("acme-small"); enc != "r50k_base" {
		t.Errorf("Lookup(acme-small) = %q, want re-registered prefix", enc)
	}
	if r.Fallback() != DefaultEncoding {
		t.Errorf("Fallback() = %q, want %q", r.Fallback(), DefaultEncoding)
	}
}

func TestRegistryLoadCaches(t *testing.T) {
	calls := 0
	r := NewRegistry(func(name string) (Encoding, error) {
		calls++
		if name == "broken" {
			return nil, errors.New("no ranks")
		}
		return stubEncoding(name), nil
	}, "")

	for i := 0; i < 3; i++ {
		if _, err := r.Load("cl100k_base"); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
	if _, err := r.Load("broken"); err == nil {
		t.Error("Load(broken) expected error")
	}
}

func TestRegistryLoadWithoutLoader(t *testing.T) {
	if _, err := NewRegistry(nil, "").Load("cl100k_base"); err == nil {
		t.Error("Load() expected error without loader")
	}
}

type stubEncoding string

func (s stubEncoding) Name() string { return string(s) }
func (s stubEncoding) Encode(text string) []int { return []int{len(text)} }
