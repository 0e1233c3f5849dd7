package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"raglite/internal/domain"
	"raglite/internal/usecase"
)

var (
	queryText     string
	queryMode     string
	queryTopK     int
	queryAlpha    float64
	queryDocID    string
	querySource   string
	queryDateFrom int64
	queryDateTo   int64
	queryAnswer   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the index",
	Long: `Search the index with vector, lexical or hybrid ranking.

Examples:
  raglite query -q "token rotation"
  raglite query -q "token rotation" --mode lexical -k 10
  raglite query -q "token rotation" --source docs/auth.md
  raglite query -q "token rotation" --answer`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().StringVar(&queryMode, "mode", "hybrid", "search mode: vector, lexical or hybrid")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryAlpha, "alpha", 0, "vector weight for hybrid fusion (default from config)")
	queryCmd.Flags().StringVar(&queryDocID, "doc-id", "", "restrict to one document id")
	queryCmd.Flags().StringVar(&querySource, "source", "", "restrict to one source")
	queryCmd.Flags().Int64Var(&queryDateFrom, "date-from", 0, "minimum timestamp (unix milliseconds)")
	queryCmd.Flags().Int64Var(&queryDateTo, "date-to", 0, "maximum timestamp (unix milliseconds)")
	queryCmd.Flags().BoolVar(&queryAnswer, "answer", false, "compose an extractive answer with citations")
	queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := newLogger()

	comps, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	topK := queryTopK
	if topK <= 0 {
		topK = cfg.Retrieve.TopK
	}
	alpha := queryAlpha
	if alpha <= 0 || alpha > 1 {
		alpha = cfg.Retrieve.Alpha
	}

	filter := buildQueryFilter()
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return err
		}
	}

	var hits []domain.Hit
	switch queryMode {
	case "lexical":
		hits, err = comps.retrieval.SearchLexical(queryText, topK, filter)
	case "vector":
		var emb []float32
		emb, err = embedQuery(comps)
		if err == nil {
			hits, err = comps.retrieval.SearchVector(emb, topK, filter)
		}
	case "hybrid":
		var emb []float32
		emb, err = embedQuery(comps)
		if err == nil {
			hits, err = comps.retrieval.SearchHybrid(queryText, emb, topK, alpha, filter)
		}
	default:
		return fmt.Errorf("unknown search mode: %s", queryMode)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	if queryAnswer {
		ans := usecase.BuildAnswer(hits, cfg.Server.AnswerMaxChars)
		fmt.Println(ans.Text)
		fmt.Println("\nCitations:")
		for i, c := range ans.Citations {
			fmt.Printf("  [%d] %s (score %.4f)\n", i+1, c.DocID, c.Score)
		}
		return nil
	}

	for i, h := range hits {
		fmt.Printf("%d. %s (score %.4f, id %d)\n", i+1, h.DocID, h.Score, h.ID)
		fmt.Printf("   %s\n", previewText(h.Text, 160))
	}
	return nil
}

func embedQuery(comps *components) ([]float32, error) {
	embs, err := comps.embedder.Embed([]string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return embs[0], nil
}

func buildQueryFilter() *domain.Filter {
	f := &domain.Filter{DocID: queryDocID, Source: querySource}
	if queryDateFrom != 0 {
		v := queryDateFrom
		f.DateFrom = &v
	}
	if queryDateTo != 0 {
		v := queryDateTo
		f.DateTo = &v
	}
	if f.IsZero() {
		return nil
	}
	return f
}

func previewText(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
