package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

var (
	searchLimit     int
	searchThreshold float64
	searchProject   string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories by meaning",
	Long:  "Search the memories of a project using vector similarity.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "Minimum similarity (default from config)")
	searchCmd.Flags().StringVarP(&searchProject, "project", "p", "", "Project to search (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	params := engine.SearchParams{Limit: searchLimit, Project: searchProject}
	if params.Project == "" {
		params.Project = a.cfg.Session.Project
	}
	if cmd.Flags().Changed("threshold") {
		params.Threshold = &searchThreshold
	}

	results, err := a.engine.Search(ctx, query, params)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Similarity, r.ID)
		fmt.Fprintf(out, "   %s\n\n", truncate(r.Content, 200))
	}

	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
