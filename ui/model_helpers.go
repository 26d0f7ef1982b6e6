package ui

import (
	"strings"

	"techbot/model"
	"techbot/ollama"
)

// IsCurrentModel checks if a model matches the current model name.
//
// For Ollama: Name == InternalName (e.g., "llava:latest")
// For OpenRouter: Name is stripped, InternalName has full path
//   - Name: "gpt-4o-mini"
//   - InternalName: "openai/gpt-4o-mini"
func IsCurrentModel(m model.ModelInfo, currentModel string) bool {
	return m.InternalName == currentModel || m.Name == currentModel
}

// FindModelByName returns the index of the model matching modelName, or -1.
func FindModelByName(models []model.ModelInfo, modelName string) int {
	for i, m := range models {
		if IsCurrentModel(m, modelName) {
			return i
		}
	}
	return -1
}

// ModelAcceptsImages reports whether a model is expected to accept image
// messages. It only drives the selector indicator; the provider still has
// the final word.
//
// Image support by provider:
//   - Ollama: curated family list
//   - Anthropic: all Claude 3+ models
//   - OpenAI/OpenRouter: gpt-4o, gpt-4.1, gpt-4-turbo and vision models
//   - Azure: the deployment name says nothing about the model, assume yes
func ModelAcceptsImages(m model.ModelInfo) bool {
	name := strings.ToLower(m.InternalName)

	switch m.Provider {
	case "ollama":
		return ollama.ModelSupportsVision(m.InternalName)

	case "anthropic":
		return strings.HasPrefix(name, "claude")

	case "openai", "openrouter":
		for _, marker := range []string{"gpt-4o", "gpt-4.1", "gpt-4-turbo", "vision", "gpt-5", "o3", "o4"} {
			if strings.Contains(name, marker) {
				return true
			}
		}
		return false

	case "azure":
		return true

	default:
		return false
	}
}
