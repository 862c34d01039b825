package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identification API server",
	Long: `Start the Facegate HTTP API.
The server exposes identification, verification, face login, enrollment
and audit endpoints, plus Prometheus metrics on /metrics. Requests are
rejected with 503 until the embedding extractor has warmed up.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	ctx := context.Background()
	svcs, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.close()

	server := web.NewServer(svcs.pipeline, svcs.events, host, port)

	// Warm up in the background so the server binds immediately; the
	// readiness endpoint reports 503 until this finishes.
	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := svcs.warmup(warmupCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			fmt.Fprintln(os.Stderr, "Identification requests will fail until the extractor is reachable")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
