package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/rapport/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	a.engine.StartRetentionTimer()

	srv := server.New(a.db, a.engine, VersionString(), a.cfg.Server.CORSOrigins, a.log)
	addr := a.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "rapport serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", a.db.Path)
		fmt.Fprintf(os.Stderr, "  state: %s\n", a.cfg.State.Backend)
		stats := a.memory.Stats(context.Background(), "")
		fmt.Fprintf(os.Stderr, "  memory: %s (%d indexed)\n", stats.Model, stats.IndexSize)
		if a.cfg.LLM.Provider != "" && a.cfg.LLM.Provider != "none" {
			fmt.Fprintf(os.Stderr, "  llm: %s\n", a.cfg.LLM.Provider)
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		a.log.Warn("shutdown", zap.Error(err))
		return err
	}
	return nil
}
