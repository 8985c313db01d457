package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

func cmdValidate() *cli.Command {
	var checkStores bool
	var engineCfg engineConfig

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check-stores",
			Usage:       "Also connect to both stores and cross-check their contents",
			Destination: &checkStores,
		},
	}
	flags = append(flags, engineCfg.flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the policy file and optionally check store consistency",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			// Step 1: Load and validate the policy file
			policy, err := engineCfg.policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "policy validation failed")
			}

			logger.Info("Policy validation passed",
				"export_limit", policy.Sync.ExportLimit,
				"import_limit", policy.Sync.ImportLimit,
				"tombstone_on_delete", policy.Tombstone(),
				"worker_interval", policy.WorkerInterval(),
				"search_default_limit", policy.Search.DefaultLimit,
			)

			// Step 2: Cross-check the stores when requested
			if !checkStores {
				logger.Info("Store consistency check skipped (pass --check-stores to enable)")
				return nil
			}

			uc, _, closer, err := engineCfg.configure(ctx)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.ValidateStores(ctx)
			if err != nil {
				return goerr.Wrap(err, "store consistency check failed")
			}

			logger.Info("Scanned both stores",
				"vector_records", result.VectorRecords,
				"warehouse_records", result.WarehouseRecords,
			)

			if result.HasIssues() {
				for _, issue := range result.Issues {
					logger.Warn("Store consistency issue found",
						"memory_id", issue.MemoryID,
						"message", issue.Message,
						"expected", issue.Expected,
						"actual", issue.Actual,
					)
				}

				return goerr.New("store consistency check found issues", goerr.V("issues", len(result.Issues)))
			}

			logger.Info("Store consistency check passed")
			return nil
		},
	}
}
