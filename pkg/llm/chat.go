package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dikastis/cylaw/internal/models"
)

const defaultSystemTemplate = `You are a legal research assistant specializing in Cypriot court decisions. You answer questions using only the case excerpts supplied with each question.

Rules:
1. Cite every case you reference by title, court and year.
2. Quote short passages when they support the answer.
3. If the excerpts do not answer the question, say so clearly.
4. Answer in the language of the question (Greek or English).
5. Start with a direct answer, then the supporting cases.`

const defaultContextTemplate = "Retrieved case excerpts:\n%s\n\nQuestion: %s"

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
}

// ChatEngine answers questions about retrieved court case excerpts.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = defaultContextTemplate
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// FormatResults renders retrieved chunks as context for the model.
func FormatResults(results []models.SearchResult) string {
	if len(results) == 0 {
		return "No results found for this query."
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf(
			"[Result %d] %s\nCourt: %s | Year: %s | Relevance: %.1f%%\n%s",
			i+1, r.Title, r.Court, r.Year, r.Score, r.Text,
		))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (ce *ChatEngine) buildMessages(query string, results []models.SearchResult) []llms.MessageContent {
	prompt := fmt.Sprintf(ce.config.ContextTemplate, FormatResults(results), query)
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
}

// Chat generates an answer to the query grounded in the retrieved results.
func (ce *ChatEngine) Chat(ctx context.Context, query string, results []models.SearchResult) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, ce.buildMessages(query, results),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat error: no response from LLM")
	}
	return response.Choices[0].Content, nil
}

// ChatStream generates an answer, delivering tokens through fn as they
// arrive.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, results []models.SearchResult, fn func(token string)) error {
	_, err := ce.llm.GenerateContent(ctx, ce.buildMessages(query, results),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			fn(string(chunk))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}
