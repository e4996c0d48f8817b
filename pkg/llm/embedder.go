package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const embedRetries = 5

type EmbedderConfig struct {
	Provider   string // "local" (ollama) or "openai"
	Model      string
	BaseURL    string // Ollama server URL
	APIKey     string // OpenAI key; falls back to OPENAI_API_KEY
	Dimensions int
}

type embedderClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns text batches into vectors using either a local Ollama
// model or the OpenAI API.
type Embedder struct {
	config EmbedderConfig
	client embedderClient
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Provider == "" {
		config.Provider = "local"
	}

	var (
		client embedderClient
		err    error
	)
	switch config.Provider {
	case "local":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		if config.Dimensions == 0 {
			config.Dimensions = 768
		}
		client, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		if config.Dimensions == 0 {
			config.Dimensions = 1536
		}
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s embedder: %w", config.Provider, err)
	}

	return &Embedder{config: config, client: client}, nil
}

// CreateEmbedding embeds a batch of texts, retrying transient API errors
// with capped exponential backoff.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < embedRetries; attempt++ {
		embeddings, err := e.client.CreateEmbedding(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err

		if attempt < embedRetries-1 {
			wait := time.Duration(1<<attempt) * time.Second
			if wait > 30*time.Second {
				wait = 30 * time.Second
			}
			log.Printf("embedding attempt %d/%d failed, retry in %s: %v", attempt+1, embedRetries, wait, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("embed batch of %d texts after %d attempts: %w", len(texts), embedRetries, lastErr)
}

func (e *Embedder) Dimensions() int {
	return e.config.Dimensions
}

func (e *Embedder) Provider() string {
	return e.config.Provider
}

func (e *Embedder) Model() string {
	return e.config.Model
}
