package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// engineConfig bundles the config structs every engine-backed command
// shares: both stores, the embedder, alerting, and the policy file.
type engineConfig struct {
	policyCfg    config.Policy
	vectorCfg    config.Vector
	warehouseCfg config.Warehouse
	geminiCfg    config.Gemini
	notifyCfg    config.Notify
}

func (x *engineConfig) flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.policyCfg.Flags()...)
	flags = append(flags, x.vectorCfg.Flags()...)
	flags = append(flags, x.warehouseCfg.Flags()...)
	flags = append(flags, x.geminiCfg.Flags()...)
	flags = append(flags, x.notifyCfg.Flags()...)
	return flags
}

// configure builds the usecases from the flags. The returned closer
// releases both store connections and must be called before exit.
func (x *engineConfig) configure(ctx context.Context) (*usecase.UseCases, *config.SyncPolicy, func(), error) {
	policy, err := x.policyCfg.Configure()
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to load policy")
	}

	vector, closeVector, err := x.vectorCfg.Configure(ctx)
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize vector index")
	}

	warehouse, offsets, closeWarehouse, err := x.warehouseCfg.Configure(ctx)
	if err != nil {
		_ = closeVector()
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize warehouse")
	}

	closer := func() {
		if err := closeWarehouse(); err != nil {
			logging.Default().Error("failed to close warehouse", "error", err.Error())
		}
		if err := closeVector(); err != nil {
			logging.Default().Error("failed to close vector index", "error", err.Error())
		}
	}

	embedder, err := x.geminiCfg.Configure(ctx)
	if err != nil {
		closer()
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize embedder")
	}

	notifier, err := x.notifyCfg.Configure()
	if err != nil {
		closer()
		return nil, nil, nil, goerr.Wrap(err, "failed to initialize notifier")
	}

	ucOpts := append(policy.UseCaseOptions(), usecase.WithNotifier(notifier))
	uc := usecase.New(vector, warehouse, offsets, embedder, ucOpts...)

	return uc, policy, closer, nil
}
