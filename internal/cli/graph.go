package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/engine"
)

var (
	graphDepth   int
	graphContent bool
)

var graphCmd = &cobra.Command{
	Use:   "graph [memory-id]",
	Short: "Show the relation graph around a memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects and their memory counts",
	RunE:  runProjects,
}

func init() {
	graphCmd.Flags().IntVarP(&graphDepth, "depth", "d", -1, "Maximum number of hops (default from config)")
	graphCmd.Flags().BoolVar(&graphContent, "content", true, "Show memory content")
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := a.engine.Graph(ctx, args[0], graphDepth, graphContent)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "## %s (%d nodes, depth %d)\n\n", g.Root.ID, g.NodesVisited, g.MaxDepth)
	printNode(out, g.Root)
	return nil
}

func printNode(w io.Writer, n *engine.GraphNode) {
	indent := strings.Repeat("  ", n.Depth)
	label := n.ID
	if n.RelationType != "" {
		arrow := "->"
		if n.Direction == engine.EdgeIncoming {
			arrow = "<-"
		}
		label = fmt.Sprintf("%s %s %s", arrow, n.RelationType, n.ID)
	}
	if n.Content != "" {
		fmt.Fprintf(w, "%s%s\n%s  %s\n", indent, label, indent, n.Content)
	} else {
		fmt.Fprintf(w, "%s%s\n", indent, label)
	}
	for _, c := range n.Children {
		printNode(w, c)
	}
}

func runProjects(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.engine.ListProjects(context.Background())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No memories stored yet.")
		return nil
	}
	for _, p := range projects {
		last := time.UnixMilli(p.LastUpdated).Format("2006-01-02 15:04")
		fmt.Fprintf(out, "  %s (%d memories, last updated %s)\n", p.Name, p.MemoryCount, last)
	}
	return nil
}
