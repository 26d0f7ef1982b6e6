package testutil

import (
	"techbot/model"
)

// Fragments builds one single-choice fragment per chunk.
func Fragments(chunks ...string) []model.Fragment {
	out := make([]model.Fragment, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, model.TextFragment(c))
	}
	return out
}

// KeepAlive returns a fragment with no choices.
func KeepAlive() model.Fragment {
	return model.Fragment{}
}

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		model.NewSystemMessage("You are a test assistant."),
		model.NewUserMessage("Hello, how are you?"),
		model.NewAssistantMessage("I'm doing well, thank you!"),
		model.NewUserMessage("Can you help me with a task?"),
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.NewUserMessage(content)}
}

// ImageConversation returns a system message, a question and an image.
func ImageConversation(url string) []model.Message {
	img, err := model.NewImageMessage(url)
	if err != nil {
		panic(err)
	}
	return []model.Message{
		model.NewSystemMessage("You are a test assistant."),
		model.NewUserMessage("What is in this picture?"),
		img,
	}
}

// TinyPNG is a 1x1 transparent PNG.
var TinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
