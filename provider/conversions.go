package provider

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"github.com/samber/lo"

	"techbot/attachment"
	"techbot/model"
)

// ConvertToOpenAIMessages converts transcript messages to chat-completion
// message params. Images become image_url content parts; data URIs are
// passed through unchanged.
func ConvertToOpenAIMessages(messages []model.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for i, msg := range messages {
		switch m := msg.(type) {
		case model.SystemMessage:
			result = append(result, openai.SystemMessage(m.Content))

		case model.TextMessage:
			switch m.Role {
			case model.RoleUser:
				user := openai.UserMessage(m.Content)
				if m.Name != "" {
					user.OfUser.Name = openai.String(m.Name)
				}
				result = append(result, user)
			case model.RoleAssistant:
				result = append(result, openai.AssistantMessage(m.Content))
			default:
				return nil, fmt.Errorf("%w: message %d has role %q", model.ErrInvalidMessage, i, m.Role)
			}

		case model.ImageMessage:
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Images))
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.URL,
				}))
			}
			result = append(result, openai.UserMessage(parts))

		default:
			return nil, fmt.Errorf("%w: message %d has type %T", model.ErrInvalidMessage, i, msg)
		}
	}

	return result, nil
}

// ConvertToAnthropicMessages converts transcript messages to Anthropic
// message params. System messages are returned separately because the
// Messages API takes them as a top-level parameter.
func ConvertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam, error) {
	var system []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		switch m := msg.(type) {
		case model.SystemMessage:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})

		case model.TextMessage:
			switch m.Role {
			case model.RoleUser:
				result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			case model.RoleAssistant:
				result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			default:
				return nil, nil, fmt.Errorf("%w: message %d has role %q", model.ErrInvalidMessage, i, m.Role)
			}

		case model.ImageMessage:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Images))
			for _, img := range m.Images {
				if mediaType, payload, ok := attachment.ParseDataURI(img.URL); ok {
					blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, payload))
				} else {
					blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}))
				}
			}
			result = append(result, anthropic.NewUserMessage(blocks...))

		default:
			return nil, nil, fmt.Errorf("%w: message %d has type %T", model.ErrInvalidMessage, i, msg)
		}
	}

	return result, system, nil
}

// ConvertToOllamaMessages converts transcript messages to Ollama messages.
// Ollama takes raw image bytes, so only data URIs can be sent.
func ConvertToOllamaMessages(messages []model.Message) ([]api.Message, error) {
	result := make([]api.Message, 0, len(messages))

	for i, msg := range messages {
		switch m := msg.(type) {
		case model.SystemMessage:
			result = append(result, api.Message{Role: string(model.RoleSystem), Content: m.Content})

		case model.TextMessage:
			result = append(result, api.Message{Role: string(m.Role), Content: m.Content})

		case model.ImageMessage:
			images := make([]api.ImageData, 0, len(m.Images))
			for _, img := range m.Images {
				_, payload, ok := attachment.ParseDataURI(img.URL)
				if !ok {
					return nil, fmt.Errorf("%w: message %d: ollama needs inline image data, got %s",
						model.ErrInvalidMessage, i, truncateURL(img.URL))
				}
				data, err := attachment.Decode(payload)
				if err != nil {
					return nil, fmt.Errorf("%w: message %d: %w", model.ErrInvalidMessage, i, err)
				}
				images = append(images, api.ImageData(data))
			}
			result = append(result, api.Message{Role: string(model.RoleUser), Images: images})

		default:
			return nil, fmt.Errorf("%w: message %d has type %T", model.ErrInvalidMessage, i, msg)
		}
	}

	return result, nil
}

// ConvertFromOllamaModels converts an Ollama model listing.
func ConvertFromOllamaModels(models []api.ListModelResponse) []model.ModelInfo {
	return lo.Map(models, func(m api.ListModelResponse, _ int) model.ModelInfo {
		return model.ModelInfo{
			Name:         m.Name,
			InternalName: m.Name, // Ollama uses same name for display and API
			Size:         m.Size,
			Provider:     string(ProviderTypeOllama),
		}
	})
}

func truncateURL(url string) string {
	const limit = 48
	if len(url) <= limit {
		return url
	}
	return url[:limit] + "..."
}

// hasImages reports whether any message carries an image.
func hasImages(messages []model.Message) bool {
	return lo.ContainsBy(messages, func(msg model.Message) bool {
		_, ok := msg.(model.ImageMessage)
		return ok
	})
}

// stripProviderPrefix removes vendor prefixes from OpenRouter model names.
// "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
