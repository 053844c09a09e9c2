package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/mcpserver"
	"github.com/lazypower/mnemo/internal/server"
)

// HTTP callers never announce that they are done, so their sessions expire.
const (
	sessionSweepInterval = 10 * time.Minute
	sessionIdleTimeout   = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the memory tools over MCP on stdin/stdout",
	RunE:  runMCP,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	go reembedInBackground(a)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go a.tools.Sessions().Sweep(sweepCtx, sessionSweepInterval, sessionIdleTimeout)

	srv := server.New(a.db, a.tools, a.log, VersionString())
	addr := a.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		a.log.Info("mnemo serving", "addr", addr, "db", a.db.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-done:
	}
	a.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	go reembedInBackground(a)

	a.log.Info("mnemo serving MCP on stdio", "db", a.db.Path)
	return mcpserver.ServeStdio(a.tools, VersionString())
}

// reembedInBackground brings vectors up to date with the configured
// embedder, e.g. after a change of embedding.dimensions.
func reembedInBackground(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := a.engine.Reembed(ctx); err != nil {
		a.log.Warn("reembed stale memories", "err", err)
	}
}
