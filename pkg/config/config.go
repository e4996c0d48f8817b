package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Embedding providers understood by the pipeline.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
)

type Config struct {
	Scraper struct {
		BaseURL      string  `yaml:"base_url"`
		RequestDelay float64 `yaml:"request_delay"`
		Timeout      int     `yaml:"timeout"`
		MaxRetries   int     `yaml:"max_retries"`
		UserAgent    string  `yaml:"user_agent"`
		Threads      int     `yaml:"threads"`
		CacheDir     string  `yaml:"cache_dir"`
		IndexDir     string  `yaml:"index_dir"`
		CasesDir     string  `yaml:"cases_dir"`
		ParsedDir    string  `yaml:"parsed_dir"`
	} `yaml:"scraper"`

	Chunker struct {
		ChunkSize       int `yaml:"chunk_size"`
		ChunkOverlap    int `yaml:"chunk_overlap"`
		MinTailChars    int `yaml:"min_tail_chars"`
		MaxContentChars int `yaml:"max_content_chars"`
	} `yaml:"chunker"`

	Embedding struct {
		Provider   string `yaml:"provider"`
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url"`
		Dimensions int    `yaml:"dimensions"`
		BatchSize  int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Database struct {
		URL            string `yaml:"url"`
		ChunksTable    string `yaml:"chunks_table"`
		DocumentsTable string `yaml:"documents_table"`
		SearchLimit    int    `yaml:"search_limit"`
	} `yaml:"database"`

	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/cylaw/config.yaml"),
			"/etc/cylaw/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Environment first: provider-dependent defaults need the final provider
	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Scraper.BaseURL == "" {
		config.Scraper.BaseURL = "https://www.cylaw.org"
	}
	if config.Scraper.RequestDelay == 0 {
		config.Scraper.RequestDelay = 0.75
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30
	}
	if config.Scraper.MaxRetries == 0 {
		config.Scraper.MaxRetries = 3
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "CyLawIndexScraper/1.0 (Legal research tool; contact: research@example.com)"
	}
	if config.Scraper.Threads == 0 {
		config.Scraper.Threads = 30
	}
	if config.Scraper.CacheDir == "" {
		config.Scraper.CacheDir = "data/cache"
	}
	if config.Scraper.IndexDir == "" {
		config.Scraper.IndexDir = "data/indexes"
	}
	if config.Scraper.CasesDir == "" {
		config.Scraper.CasesDir = "data/cases"
	}
	if config.Scraper.ParsedDir == "" {
		config.Scraper.ParsedDir = "data/cases_parsed"
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 2000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 400
	}
	if config.Chunker.MinTailChars == 0 {
		config.Chunker.MinTailChars = 500
	}
	if config.Chunker.MaxContentChars == 0 {
		config.Chunker.MaxContentChars = 3500
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = ProviderLocal
	}
	switch config.Embedding.Provider {
	case ProviderOpenAI:
		if config.Embedding.Model == "" {
			config.Embedding.Model = "text-embedding-3-small"
		}
		if config.Embedding.Dimensions == 0 {
			config.Embedding.Dimensions = 1536
		}
		if config.Embedding.BatchSize == 0 {
			config.Embedding.BatchSize = 100
		}
	default:
		if config.Embedding.Model == "" {
			config.Embedding.Model = "nomic-embed-text:latest"
		}
		if config.Embedding.BaseURL == "" {
			config.Embedding.BaseURL = "http://localhost:11434"
		}
		if config.Embedding.Dimensions == 0 {
			config.Embedding.Dimensions = 768
		}
		if config.Embedding.BatchSize == 0 {
			config.Embedding.BatchSize = 256
		}
	}

	if config.Database.ChunksTable == "" {
		config.Database.ChunksTable = "cylaw_chunks"
	}
	if config.Database.DocumentsTable == "" {
		config.Database.DocumentsTable = "cylaw_documents"
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 10
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
			"http://localhost:3003",
		}
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
