package config

import (
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

var (
	openaiClient *openai.Client
	openaiOnce   sync.Once
)

// GetOpenAIClient returns the shared OpenAI client, or nil when no API key
// is configured. Callers must treat a nil client as "capability absent" and
// degrade (skip embeddings, fall back to template prose).
func GetOpenAIClient() *openai.Client {
	openaiOnce.Do(func() {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return
		}
		cfg := openai.DefaultConfig(apiKey)
		if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
			cfg.BaseURL = base
		}
		openaiClient = openai.NewClientWithConfig(cfg)
	})
	return openaiClient
}

func GetEmbeddingModel() openai.EmbeddingModel {
	if v := os.Getenv("OPENAI_EMBEDDING_MODEL"); v != "" {
		return openai.EmbeddingModel(v)
	}
	return openai.SmallEmbedding3
}

func GetGenerationModel() string {
	if v := os.Getenv("OPENAI_GENERATION_MODEL"); v != "" {
		return v
	}
	return openai.GPT4oMini
}
