package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"raglite/config"
	"raglite/internal/adapter/analyzer"
	"raglite/internal/adapter/embedding"
	"raglite/internal/adapter/lexical"
	"raglite/internal/adapter/store"
	"raglite/internal/adapter/vectorstore"
	"raglite/internal/adapter/vectorstore/qdrant"
	"raglite/internal/port"
	"raglite/internal/usecase"
)

// components is everything a command needs to operate the index.
type components struct {
	retrieval *usecase.Retrieval
	embedder  port.Embedder
	chunks    *store.BoltStore
}

func (c *components) Close() {
	if c.chunks != nil {
		c.chunks.Close()
	}
}

func buildComponents(cfg *config.Config, log zerolog.Logger) (*components, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vectors, err := buildVectorStore(cfg, embedder.Dimension(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	var lex *lexical.Index
	if cfg.Lexical.Enabled {
		lex = lexical.New(analyzer.NewTokenizer(), cfg.Lexical.K1, cfg.Lexical.B)
	}

	var chunks *store.BoltStore
	if cfg.Lexical.Enabled {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		chunks, err = store.NewBoltStore(cfg.ChunkDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open chunk store: %w", err)
		}
	}

	return &components{
		retrieval: usecase.NewRetrieval(vectors, lex, chunks, log),
		embedder:  embedder,
		chunks:    chunks,
	}, nil
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.Model,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Dimension,
			cfg.Embedding.BatchSize,
		)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func buildVectorStore(cfg *config.Config, dim int, log zerolog.Logger) (port.VectorStore, error) {
	switch cfg.Vector.Backend {
	case "memory":
		return vectorstore.NewMemory(dim), nil
	case "local":
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return vectorstore.NewLocal(dim, cfg.DataDir, log)
	case "qdrant":
		return qdrant.New(qdrant.Config{
			URL:        cfg.Vector.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Vector.Qdrant.APIKeyEnv),
			Collection: cfg.Vector.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Vector.Qdrant.TimeoutSec) * time.Second,
		}, dim)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}
