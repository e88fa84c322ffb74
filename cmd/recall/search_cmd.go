package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/convomemory/recall/internal/application/search"
)

const previewRunes = 300

func searchCmd() *cobra.Command {
	var (
		semantic   bool
		keyword    bool
		mode       string
		agent      string
		channel    string
		filesOnly  bool
		convosOnly bool
		limit      int
		contextN   int
		days       float64
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search conversations and workspace files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := search.ModeFromFlags(mode, semantic, keyword)
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			_, rt, closeFn, err := openRuntime()
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := rt.Engine.Search(cmd.Context(), search.Request{
				Query:      strings.Join(args, " "),
				Mode:       m,
				AgentID:    agent,
				Channel:    channel,
				Days:       days,
				Limit:      limit,
				Context:    contextN,
				FilesOnly:  filesOnly,
				ConvosOnly: convosOnly,
			})
			if err != nil {
				if search.IsQueryError(err) {
					return &exitError{code: 2, err: err}
				}
				return err
			}
			return printSearchResponse(cmd.OutOrStdout(), resp, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&semantic, "semantic", false, "semantic search only")
	cmd.Flags().BoolVar(&keyword, "keyword", false, "keyword search only")
	cmd.Flags().StringVar(&mode, "mode", "", "auto|keyword|semantic|hybrid")
	cmd.Flags().StringVar(&agent, "agent", "", "filter by agent ID")
	cmd.Flags().StringVar(&channel, "channel", "", "filter by channel")
	cmd.Flags().BoolVar(&filesOnly, "files-only", false, "search workspace files only")
	cmd.Flags().BoolVar(&convosOnly, "convos-only", false, "search conversations only")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results per kind (default from config)")
	cmd.Flags().IntVar(&contextN, "context", 0, "neighbouring messages to show around each hit")
	cmd.Flags().Float64Var(&days, "days", 0, "only search the last N days")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// printSearchResponse 输出检索结果
func printSearchResponse(w io.Writer, resp *search.Response, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "Searching: %q (mode: %s)\n", resp.Query, resp.Summary.Mode)
	for _, warning := range resp.Summary.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	if len(resp.Conversations) == 0 && len(resp.Files) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	rule := strings.Repeat("=", 60)
	for i, r := range resp.Conversations {
		ts := "unknown"
		if r.Timestamp > 0 {
			ts = time.UnixMilli(r.Timestamp).Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "\n%s\n", rule)
		fmt.Fprintf(w, "#%d | Agent: %s | Channel: %s | %s\n", i+1, r.AgentID, r.Channel, ts)
		fmt.Fprintf(w, "Score: %.3f (%s) | Session: %s\n", r.Score, r.Match, r.SessionID)
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%s] %s\n", r.Role, preview(r.Snippet))
		printContext(w, "Context Before", r.ContextBefore)
		printContext(w, "Context After", r.ContextAfter)
	}

	if len(resp.Files) > 0 {
		fmt.Fprintf(w, "\n%s\nFiles\n%s\n", rule, rule)
		for _, f := range resp.Files {
			section := ""
			if f.Section != "" {
				section = " [" + f.Section + "]"
			}
			fmt.Fprintf(w, "%s:%d%s (%s)\n  %s\n", f.Path, f.Line, section, f.Agent, f.Snippet)
		}
	}

	fmt.Fprintf(w, "\nFound %d conversation(s), %d file match(es) in %dms\n",
		resp.Summary.Conversations, resp.Summary.Files, resp.Summary.DurationMs)
	return nil
}

func printContext(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "--- %s ---\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
