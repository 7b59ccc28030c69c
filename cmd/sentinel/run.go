package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/task-sentinel/pkg/coordinator"
	"github.com/cuemby/task-sentinel/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordination core as a standalone process",
	Long: `Start every component (worker registry, lock manager, heartbeat
monitor, memory synchronizer, load balancer) and serve /metrics and /health
over HTTP until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildCoordinatorConfig(cmd)
		if err != nil {
			return err
		}

		c, err := coordinator.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build coordinator: %w", err)
		}
		c.Start()
		fmt.Println("sentinel is running. Press Ctrl+C to stop.")

		listenAddr, _ := cmd.Flags().GetString("listen-addr")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		srv := &http.Server{Addr: listenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("✓ Metrics and health endpoints listening on http://%s\n", listenAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		_ = srv.Close()
		if err := c.Stop(); err != nil {
			return fmt.Errorf("failed to stop coordinator: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	addStoreFlags(runCmd)
	runCmd.Flags().String("listen-addr", "127.0.0.1:9090", "Address to serve /metrics, /health and /ready on")
}
