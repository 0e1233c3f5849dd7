package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"raglite/internal/adapter/chunker"
	"raglite/internal/adapter/fs"
	"raglite/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index documents for retrieval",
	Long: `Walk a directory, chunk every matching file, embed the chunks and
add them to the vector and lexical indexes. The relative path of each
file becomes its document id, its modification time its timestamp.

Examples:
  raglite ingest .               # Index current directory
  raglite ingest /path/to/docs   # Index specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	log := newLogger()

	comps, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	splitter := chunker.NewParagraphChunker(cfg.Ingest.MaxChars, cfg.Ingest.Overlap)

	fmt.Printf("Scanning %s...\n", path)
	docs, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var (
		filesIndexed int
		chunksAdded  int
		skipped      []string
	)

	for _, doc := range docs {
		text, err := fs.ReadFile(doc.Path)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", doc.RelPath, err))
			bar.Add(1)
			continue
		}

		chunks := splitter.Split(text)
		if len(chunks) == 0 {
			bar.Add(1)
			continue
		}

		embeddings, err := comps.embedder.Embed(chunks)
		if err != nil {
			return fmt.Errorf("embedding failed for %s: %w", doc.RelPath, err)
		}

		ts := doc.ModTime
		meta := domain.ChunkMeta{Source: doc.RelPath, Timestamp: &ts}
		n, err := comps.retrieval.Add(doc.RelPath, chunks, embeddings, meta)
		if err != nil {
			return fmt.Errorf("indexing failed for %s: %w", doc.RelPath, err)
		}

		filesIndexed++
		chunksAdded += n
		bar.Add(1)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files indexed: %d\n", filesIndexed)
	fmt.Printf("  Chunks added:  %d\n", chunksAdded)
	fmt.Printf("  Index size:    %d chunks\n", comps.retrieval.Count())

	if len(skipped) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, s := range skipped {
			fmt.Printf("  - %s\n", s)
		}
	}

	return nil
}
