package ui

import (
	"techbot/model"
	"techbot/provider"
)

// Message type aliases - these are defined in the model package
type streamStartedMsg = model.StreamStartedMsg
type streamChunkMsg = model.StreamChunkMsg
type streamDoneMsg = model.StreamDoneMsg
type streamErrorMsg = model.StreamErrorMsg
type tokenUsageMsg = model.TokenUsageMsg
type modelsListMsg = model.ModelsListMsg
type imageStagedMsg = model.ImageStagedMsg
type markdownRenderedMsg = model.MarkdownRenderedMsg
type clipboardCopiedMsg = model.ClipboardCopiedMsg
type flashTickMsg = model.FlashTickMsg
type pingProviderMsg = provider.PingProviderMsg
