package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/convomemory/recall/internal/application/search"
)

func statsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rt, closeFn, err := openRuntime()
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := rt.Stats.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printStats(w io.Writer, stats *search.IndexStats, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "Sessions: %d\n", stats.Sessions)
	fmt.Fprintf(w, "Messages: %d\n", stats.Messages)
	fmt.Fprintf(w, "Embeddings: %d\n", stats.Embeddings)
	fmt.Fprintf(w, "Size: %.2f MB\n", float64(stats.DBSizeBytes)/(1<<20))
	if stats.LastIndexedAt > 0 {
		fmt.Fprintf(w, "Last indexed: %s\n", time.UnixMilli(stats.LastIndexedAt).Local().Format(time.DateTime))
	}
	semantic := "disabled"
	if stats.SemanticEnabled {
		semantic = "enabled (" + stats.EmbeddingModel + ")"
	}
	fmt.Fprintf(w, "Semantic search: %s, vector backend: %s\n", semantic, stats.VectorBackend)
	for _, a := range stats.Agents {
		fmt.Fprintf(w, "  %s: %d session(s)\n", a.AgentID, a.Sessions)
	}
	return nil
}
