package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Scraper config
	if c.Scraper.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "scraper.base_url",
			Message: "base URL is required",
		})
	} else if _, err := url.Parse(c.Scraper.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "scraper.base_url",
			Message: "invalid base URL",
		})
	}

	if c.Scraper.RequestDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.request_delay",
			Message: "request_delay must be non-negative",
		})
	}

	if c.Scraper.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_retries",
			Message: "max_retries must be positive",
		})
	}

	if c.Scraper.Threads < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.threads",
			Message: "threads must be positive",
		})
	}

	// Validate Chunker config
	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Chunker.MinTailChars < 0 {
		errors = append(errors, ValidationError{
			Field:   "chunker.min_tail_chars",
			Message: "min_tail_chars must be non-negative",
		})
	}

	if c.Chunker.MaxContentChars < 200 {
		errors = append(errors, ValidationError{
			Field:   "chunker.max_content_chars",
			Message: "max_content_chars must be at least 200",
		})
	}

	// Validate Embedding config
	if c.Embedding.Provider != ProviderLocal && c.Embedding.Provider != ProviderOpenAI {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("provider must be %q or %q", ProviderLocal, ProviderOpenAI),
		})
	}

	if c.Embedding.Dimensions < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be positive",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.SearchLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.search_limit",
			Message: "search_limit must be positive",
		})
	}

	// Validate LLM config
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
