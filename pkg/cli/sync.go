package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

func cmdSync() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run and inspect sync passes between the stores",
		Commands: []*cli.Command{
			cmdSyncRun(),
			cmdSyncStatus(),
		},
	}
}

func cmdSyncRun() *cli.Command {
	var direction string
	var limit int
	var loop bool
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "direction",
			Usage:       "Sync direction (export, import, or both)",
			Value:       "both",
			Sources:     cli.EnvVars("MNEMOSYNE_SYNC_DIRECTION"),
			Destination: &direction,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Records per pass (0 uses the policy page size)",
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "loop",
			Usage:       "Keep running passes until interrupted",
			Destination: &loop,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run sync passes once, or continuously with --loop",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			switch direction {
			case "export", "import", "both":
			default:
				return goerr.New("invalid sync direction", goerr.V("direction", direction))
			}

			uc, policy, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			runOnce := func(ctx context.Context) error {
				if direction == "export" || direction == "both" {
					result, err := uc.ExportBatch(ctx, limit)
					if err != nil {
						return goerr.Wrap(err, "export pass failed")
					}
					logging.Default().Info("export pass completed",
						"pushed", result.Pushed,
						"next_cursor", result.NextCursor)
				}
				if direction == "import" || direction == "both" {
					result, err := uc.ImportBatch(ctx, limit)
					if err != nil {
						return goerr.Wrap(err, "import pass failed")
					}
					logging.Default().Info("import pass completed",
						"pulled", result.Pulled,
						"applied", result.Applied,
						"conflicts", result.Conflicts,
						"next_cursor", result.NextCursor)
				}
				return nil
			}

			if !loop {
				return runOnce(ctx)
			}

			interval := policy.WorkerInterval()
			if interval <= 0 {
				interval = time.Minute
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logging.Default().Info("Running sync loop", "direction", direction, "interval", interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if err := runOnce(ctx); err != nil {
					logging.Default().Error("sync pass failed (will retry)", "error", err)
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					logging.Default().Info("Sync loop stopped")
					return nil
				}
			}
		},
	}
}

func cmdSyncStatus() *cli.Command {
	var engineCfg engineConfig

	return &cli.Command{
		Name:  "status",
		Usage: "Print the sync offsets of both directions",
		Flags: engineCfg.flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, _, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			status, err := uc.SyncStatus(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to read sync status")
			}

			printOffset("export", status.Export)
			printOffset("import", status.Import)
			return nil
		},
	}
}

func printOffset(name string, offset *model.SyncOffset) {
	heading := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s\n", heading(name))

	if offset == nil || offset.Cursor.IsZero() {
		fmt.Printf("  cursor:       %s\n", color.YellowString("(start of history)"))
	} else {
		fmt.Printf("  cursor:       %s\n", offset.Cursor.Format(time.RFC3339Nano))
	}
	if offset == nil || offset.LastSuccessAt.IsZero() {
		fmt.Printf("  last success: %s\n", color.YellowString("(never)"))
	} else {
		fmt.Printf("  last success: %s\n", offset.LastSuccessAt.Format(time.RFC3339Nano))
	}
}
