// Package config loads configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds runtime settings.
type Config struct {
	DatabaseURL         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	GoogleAPIKey        string
	LLMModel            string
	EmbeddingModel      string
	CharactersDir       string
	DefaultCharacter    string
	TopK                int
	SimilarityThreshold float64
	HistoryLimit        int
	TokenBudget         int
	Temperature         float64
	MaxTokens           int
}

// Load reads env vars, applies defaults, and validates required fields.
func Load() Config {
	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		EmbeddingModel:   os.Getenv("EMBEDDING_MODEL"),
		CharactersDir:    os.Getenv("CHARACTERS_DIR"),
		DefaultCharacter: os.Getenv("DEFAULT_CHARACTER"),
	}

	cfg.TopK = getEnvInt("TOP_K", 5)
	cfg.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", 0.7)
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 10)
	cfg.TokenBudget = getEnvInt("TOKEN_BUDGET", 4096)
	cfg.Temperature = getEnvFloat("TEMPERATURE", 0.7)
	cfg.MaxTokens = getEnvInt("MAX_TOKENS", 0)

	if cfg.LLMModel == "" {
		cfg.LLMModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.CharactersDir == "" {
		cfg.CharactersDir = "characters"
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}
	if cfg.GoogleAPIKey == "" {
		log.Fatal("GOOGLE_API_KEY environment variable is required for embeddings")
	}

	return cfg
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}
