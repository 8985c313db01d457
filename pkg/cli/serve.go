package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/service/worker"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var syncInterval time.Duration
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "sync-interval",
			Usage:       "Background sync worker interval (0 disables the worker, default comes from the policy file)",
			Sources:     cli.EnvVars("MNEMOSYNE_SYNC_INTERVAL"),
			Destination: &syncInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, policy, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			// Start background sync worker unless disabled. The flag
			// overrides the policy file when set.
			interval := policy.WorkerInterval()
			if c.IsSet("sync-interval") {
				interval = syncInterval
			}
			var syncWorker *worker.SyncWorker
			if interval > 0 {
				syncWorker = worker.New(uc, interval)
				if err := syncWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start sync worker")
				}
			} else {
				logging.Default().Info("Background sync worker disabled")
			}

			httpHandler := httpctrl.New(uc,
				httpctrl.WithDefaultSearchLimit(policy.Search.DefaultLimit),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "sync_interval", interval)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop sync worker first so no pass races the drain
				if syncWorker != nil {
					syncWorker.Stop()
				}

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
