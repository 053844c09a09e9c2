package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/client"
	"github.com/lazypower/mnemo/internal/tools"
)

var (
	callURL     string
	callSession string
	callLocal   bool
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [json-arguments]",
	Short: "Invoke a tool and print its JSON result",
	Long: `Invoke a tool on a running server (see "mnemo serve"), or in-process with --local.

Examples:
  mnemo call create_memory '{"content":"I live in Shanghai"}'
  mnemo call --local search_memory '{"query":"where do I live"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Regenerate vectors missing or produced by another embedder",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.Reembed(cmd.Context())
		if err != nil {
			return fmt.Errorf("reembed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reembedded %d memories\n", n)
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callURL, "url", "", "server URL (default $MNEMO_URL or "+client.DefaultServerURL+")")
	callCmd.Flags().StringVarP(&callSession, "session", "s", "", "session ID")
	callCmd.Flags().BoolVar(&callLocal, "local", false, "run the tool in-process against the local database")
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]
	var toolArgs map[string]any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var res tools.Result
	if callLocal {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		res = a.tools.Call(ctx, callSession, name, toolArgs)
	} else {
		c := client.NewClient(callURL)
		c.SessionID = callSession
		var err error
		if res, err = c.CallTool(ctx, name, toolArgs); err != nil {
			return err
		}
	}

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	if !res.Success() {
		return fmt.Errorf("%s failed (%s): %s", name, res.Code(), res.Error())
	}
	return nil
}
