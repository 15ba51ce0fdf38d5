package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dsvikstrand/bleu/internal/engine"
	"github.com/dsvikstrand/bleu/internal/metrics"
	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := metrics.New(prometheus.DefaultRegisterer, "bleu")
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	eng := engine.New(db)
	eng.SetMetrics(m)
	eng.RetentionCap = cfg.Retention.Cap
	eng.MaxAttempts = cfg.Retry.MaxAttempts
	eng.Retry = policy.RetryPolicy{Base: cfg.Retry.BaseDelay, Max: cfg.Retry.MaxDelay}
	eng.StartRedelivery(cfg.Worker.RedeliveryInterval)
	defer eng.Stop()

	srv := server.New(eng, prometheus.DefaultGatherer, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "bleu serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		fmt.Fprintf(os.Stderr, "  retention cap: %d, max attempts: %d, backoff: %s..%s\n",
			cfg.Retention.Cap, cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
