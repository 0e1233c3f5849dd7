package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for raglite.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	CacheSize      int    `yaml:"cache_size"`
	CacheTTLSec    int    `yaml:"cache_ttl_seconds"`
	AnswerMaxChars int    `yaml:"answer_max_chars"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Backend string       `yaml:"backend"` // "memory", "local" or "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds remote Qdrant settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

// LexicalConfig holds BM25 parameters.
type LexicalConfig struct {
	Enabled bool    `yaml:"enabled"`
	K1      float64 `yaml:"k1"`
	B       float64 `yaml:"b"`
}

// RetrieveConfig holds retrieval defaults.
type RetrieveConfig struct {
	TopK  int     `yaml:"top_k"`
	Alpha float64 `yaml:"alpha"` // Vector weight in hybrid fusion (0-1)
}

// IngestConfig holds file ingestion configuration.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	MaxChars int      `yaml:"max_chars"`
	Overlap  int      `yaml:"overlap"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".raglite",
		Server: ServerConfig{
			Addr:           ":8080",
			CacheSize:      100,
			CacheTTLSec:    300,
			AnswerMaxChars: 600,
		},
		Embedding: EmbeddingConfig{
			Provider:  "mock",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 100,
		},
		Vector: VectorConfig{
			Backend: "local",
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6333",
				APIKeyEnv:  "QDRANT_API_KEY",
				Collection: "raglite_chunks",
				TimeoutSec: 15,
			},
		},
		Lexical: LexicalConfig{
			Enabled: true,
			K1:      1.5,
			B:       0.75,
		},
		Retrieve: RetrieveConfig{
			TopK:  5,
			Alpha: 0.6,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.txt", "**/*.md"},
			Excludes: []string{"**/node_modules/**", "**/.git/**"},
			MaxChars: 500,
			Overlap:  50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, starting from defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for raglite.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "raglite.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ChunkDBPath returns the path to the chunk database.
func (c *Config) ChunkDBPath() string {
	return filepath.Join(c.DataDir, "chunks.db")
}

// EnsureDataDir ensures the data directory exists.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
