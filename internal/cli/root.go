package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "mnemo",
	Short:         "Semantic memory for AI agents",
	Long:          "Mnemo stores memories with vector embeddings, finds them by meaning and links them into a relation graph. Serve it over MCP or HTTP.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mnemo/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(reembedCmd)
}
