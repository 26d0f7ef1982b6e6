package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation transcript.
//
// The set of implementations is closed: SystemMessage, TextMessage and
// ImageMessage. Callers branch on the concrete type with a type switch
// instead of inspecting role or content strings.
type Message interface {
	MessageID() string
	MessageRole() Role
	CreatedAt() time.Time
	isMessage()
}

// SystemMessage carries the instruction context for the conversation.
type SystemMessage struct {
	ID        string
	Content   string
	Timestamp time.Time
}

// TextMessage is a plain-text user or assistant message.
type TextMessage struct {
	ID        string
	Role      Role
	Name      string // Optional participant name, counted separately by the estimator
	Content   string
	Timestamp time.Time
}

// ImagePart references one image by URL. The URL is either a data URI
// (data:image/<fmt>;base64,<payload>) or a remote http(s) URL.
type ImagePart struct {
	URL string
}

// ImageMessage is a user message whose content is a non-empty, ordered list
// of images. Text and images are never mixed in one message.
type ImageMessage struct {
	ID        string
	Images    []ImagePart
	Timestamp time.Time
}

func (m SystemMessage) MessageID() string { return m.ID }
func (m SystemMessage) MessageRole() Role { return RoleSystem }
func (m SystemMessage) CreatedAt() time.Time { return m.Timestamp }
func (SystemMessage) isMessage() {}

func (m TextMessage) MessageID() string { return m.ID }
func (m TextMessage) MessageRole() Role { return m.Role }
func (m TextMessage) CreatedAt() time.Time { return m.Timestamp }
func (TextMessage) isMessage() {}

func (m ImageMessage) MessageID() string { return m.ID }
func (m ImageMessage) MessageRole() Role { return RoleUser }
func (m ImageMessage) CreatedAt() time.Time { return m.Timestamp }
func (ImageMessage) isMessage() {}

// NewSystemMessage creates a system message with a fresh ID.
func NewSystemMessage(content string) SystemMessage {
	return SystemMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user text message with a fresh ID.
func NewUserMessage(content string) TextMessage {
	return TextMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant text message with a fresh ID.
func NewAssistantMessage(content string) TextMessage {
	return TextMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewImageMessage creates a user message holding the given image URLs.
// Returns ErrInvalidMessage if no URL is given or any URL is empty.
func NewImageMessage(urls ...string) (ImageMessage, error) {
	if len(urls) == 0 {
		return ImageMessage{}, fmt.Errorf("%w: image message needs at least one image", ErrInvalidMessage)
	}
	parts := make([]ImagePart, 0, len(urls))
	for i, u := range urls {
		if u == "" {
			return ImageMessage{}, fmt.Errorf("%w: image %d has an empty URL", ErrInvalidMessage, i)
		}
		parts = append(parts, ImagePart{URL: u})
	}
	return ImageMessage{
		ID:        uuid.NewString(),
		Images:    parts,
		Timestamp: time.Now(),
	}, nil
}

// Validate checks the structural invariants of a message.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case SystemMessage:
		return nil
	case TextMessage:
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: text message has role %q", ErrInvalidMessage, m.Role)
		}
		return nil
	case ImageMessage:
		if len(m.Images) == 0 {
			return fmt.Errorf("%w: image message has no images", ErrInvalidMessage)
		}
		for i, img := range m.Images {
			if img.URL == "" {
				return fmt.Errorf("%w: image %d has an empty URL", ErrInvalidMessage, i)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: unsupported message type %T", ErrInvalidMessage, msg)
	}
}
