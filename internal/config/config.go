// Package config loads service configuration from TOML with env overrides.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Env       string          `toml:"env"` // "dev" or "prod"
	Server    ServerConfig    `toml:"server"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Ingest    IngestConfig    `toml:"ingest"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Seeds     []SeedConfig    `toml:"seeds"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
}

type DatabaseConfig struct {
	Path        string `toml:"path"`         // SQLite file, used when env=dev
	PostgresURL string `toml:"postgres_url"` // pgx pool URL, used when env=prod
}

type IngestConfig struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK int `toml:"top_k"`
}

// SeedConfig names a document ingested automatically at startup.
type SeedConfig struct {
	URL          string `toml:"url"`
	DocumentType string `toml:"document_type"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Env:       "dev",
		Server:    ServerConfig{Addr: ":8000"},
		LLM:       LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Embedding: EmbeddingConfig{Provider: "gemini", Model: "gemini-embedding-001", Dimensions: 768},
		Database:  DatabaseConfig{Path: "ragserve.db"},
		Ingest:    IngestConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Retrieval: RetrievalConfig{TopK: 4},
		Seeds: []SeedConfig{
			{URL: "https://allendowney.github.io/ThinkPython/index.html", DocumentType: "html"},
			{URL: "https://peps.python.org/pep-0008/", DocumentType: "html"},
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "ragserve.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("RAGSERVE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("RAGSERVE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RAGSERVE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RAGSERVE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RAGSERVE_POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("RAGSERVE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RAGSERVE_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.TopK = n
		}
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.LLM.Provider
	}

	return cfg
}
