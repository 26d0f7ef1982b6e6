package model

// Bubble Tea messages exchanged between the session commands and the UI.

type StreamStartedMsg struct{}

type StreamChunkMsg struct {
	Live string // Accumulated text so far, including the cursor marker
}

type StreamDoneMsg struct {
	Message TextMessage
}

type StreamErrorMsg struct {
	Err    error
	Notice string
}

type TokenUsageMsg struct {
	Count int
	Err   error
}

type ModelsListMsg struct {
	Models []ModelInfo
	Err    error
}

type ImageStagedMsg struct {
	Name string
	Size int
	Err  error
}

type MarkdownRenderedMsg struct {
	MessageID string
	Rendered  string
}

type ClipboardCopiedMsg struct {
	Err error
}

type FlashTickMsg struct{}
