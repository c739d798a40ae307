package ai

import "context"

// TextGenerator produces a completion from a system prompt and user prompt.
// All LLM providers (Gemini, OpenAI-compatible, Ollama) implement this.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator produces hosted image URLs from a free-text prompt.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string, count int, size string) ([]string, error)
}
