// Package attachment turns image sources into base64 payloads and data URIs
// that can be embedded in a user message.
package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"techbot/model"
)

// DefaultMediaType is used when the image type cannot be detected.
const DefaultMediaType = "image/jpeg"

// AllowedExtensions is the upload filter applied by the file picker.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

// Image is an encoded-on-demand image attachment.
type Image struct {
	Name      string
	Data      []byte
	MediaType string
}

// EncodeBytes returns the standard base64 encoding of data.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeReader reads r to the end and returns its base64 encoding.
func EncodeReader(r io.Reader) (string, error) {
	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.String(), nil
}

// EncodeFile returns the base64 encoding of the file at path.
func EncodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return EncodeReader(f)
}

// Decode reverses EncodeBytes.
func Decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// Load reads an image from disk.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(filepath.Base(path), data), nil
}

// FromBytes wraps an in-memory image buffer.
func FromBytes(name string, data []byte) *Image {
	return &Image{
		Name:      name,
		Data:      data,
		MediaType: DetectMediaType(name, data),
	}
}

// Base64 returns the base64 encoding of the image bytes.
func (img *Image) Base64() string {
	return EncodeBytes(img.Data)
}

// DataURI returns the image as data:<media type>;base64,<payload>.
func (img *Image) DataURI() string {
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return DataURI(mediaType, img.Base64())
}

// Message builds a single-image user message for the transcript.
func (img *Image) Message() (model.ImageMessage, error) {
	return model.NewImageMessage(img.DataURI())
}

// Size returns the raw size of the image in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// DataURI formats a base64 payload as a data URI.
func DataURI(mediaType, payload string) string {
	return "data:" + mediaType + ";base64," + payload
}

// ParseDataURI splits a base64 data URI into media type and payload.
// ok is false for remote URLs or non-base64 data URIs.
func ParseDataURI(uri string) (mediaType, payload string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return mediaType, payload, true
}

// DetectMediaType sniffs the image type from its content, then its file
// extension, and defaults to DefaultMediaType.
func DetectMediaType(name string, data []byte) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return DefaultMediaType
}

// IsAllowed reports whether path passes the upload extension filter.
func IsAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
