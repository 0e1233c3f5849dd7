package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"raglite/internal/adapter/chunker"
	"raglite/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP retrieval API",
	Long: `Start an HTTP server exposing the retrieval API.

Endpoints:
  GET  /health   Status and index size
  POST /ingest   Chunk, embed and index a document
  GET  /search   Vector, lexical or hybrid search
  POST /answer   Extractive answer with citations
  POST /reset    Drop all indexed data`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := newLogger()

	comps, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	splitter := chunker.NewParagraphChunker(cfg.Ingest.MaxChars, cfg.Ingest.Overlap)
	srv := server.New(comps.retrieval, comps.embedder, splitter, server.Options{
		TopK:           cfg.Retrieve.TopK,
		Alpha:          cfg.Retrieve.Alpha,
		AnswerMaxChars: cfg.Server.AnswerMaxChars,
		CacheSize:      cfg.Server.CacheSize,
		CacheTTL:       time.Duration(cfg.Server.CacheTTLSec) * time.Second,
	}, log)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	log.Info().
		Str("addr", addr).
		Str("backend", cfg.Vector.Backend).
		Str("embedder", comps.embedder.ModelName()).
		Int("chunks", comps.retrieval.Count()).
		Msg("listening")

	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
