package model

import (
	"github.com/samber/lo"
)

// Transcript is the ordered, append-only list of messages in a conversation.
// It is not safe for concurrent use; the owning session serializes access.
type Transcript struct {
	messages []Message
}

// NewTranscript returns a transcript seeded with the given messages.
func NewTranscript(messages ...Message) *Transcript {
	t := &Transcript{}
	t.messages = append(t.messages, messages...)
	return t
}

// Append adds a message after validating it.
func (t *Transcript) Append(msg Message) error {
	if err := Validate(msg); err != nil {
		return err
	}
	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return nil, false
	}
	return t.messages[len(t.messages)-1], true
}

// HasSystemMessage reports whether a system message is present.
func (t *Transcript) HasSystemMessage() bool {
	return lo.ContainsBy(t.messages, func(m Message) bool {
		return m.MessageRole() == RoleSystem
	})
}

// SystemCount returns the number of system messages.
func (t *Transcript) SystemCount() int {
	return lo.CountBy(t.messages, func(m Message) bool {
		return m.MessageRole() == RoleSystem
	})
}

// EnsureSystemMessage appends a system message with prompt if none exists.
// The message is added at the point of first use, so it is not necessarily
// at index 0. Returns true if a message was inserted.
func (t *Transcript) EnsureSystemMessage(prompt string) bool {
	if t.HasSystemMessage() {
		return false
	}
	t.messages = append(t.messages, NewSystemMessage(prompt))
	return true
}

// Visible returns the messages shown in the conversation view; the system
// message is instruction context and is not rendered.
func (t *Transcript) Visible() []Message {
	return lo.Filter(t.messages, func(m Message, _ int) bool {
		return m.MessageRole() != RoleSystem
	})
}

// LastAssistantText returns the content of the most recent assistant reply.
func (t *Transcript) LastAssistantText() (string, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if tm, ok := t.messages[i].(TextMessage); ok && tm.Role == RoleAssistant {
			return tm.Content, true
		}
	}
	return "", false
}
