package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all indexed data",
	Long: `Remove every chunk from the vector index, the lexical index and the
durable chunk store. Persisted files are deleted; the next ingest starts
from an empty index with ids assigned from zero again.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := newLogger()

	comps, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	before := comps.retrieval.Count()
	if err := comps.retrieval.Reset(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	fmt.Printf("Index reset, %d chunks removed.\n", before)
	return nil
}
