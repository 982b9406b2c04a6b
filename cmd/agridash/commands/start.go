package commands

import (
	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
	tmos "github.com/agrimarket/agridash/libs/os"
	"github.com/agrimarket/agridash/libs/service"
	"github.com/agrimarket/agridash/rpc"
	"github.com/agrimarket/agridash/sequencer"
)

// MakeStartCommand returns the command that serves the dashboard API.
//
// The API signs without prompting: a client confirms an action by calling
// the endpoint that starts it.
func MakeStartCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Serve the dashboard API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			signer, err := loadSigner(conf)
			if err != nil {
				return err
			}

			seqMetrics := sequencer.NopMetrics()
			apiMetrics := rpc.NopMetrics()
			var services []service.Service
			if conf.Instrumentation.Prometheus {
				seqMetrics = sequencer.PrometheusMetrics(conf.Instrumentation.Namespace)
				apiMetrics = rpc.PrometheusMetrics(conf.Instrumentation.Namespace)
				services = append(services, rpc.NewMetricsServer(conf.Instrumentation, logger.With("module", "metrics")))
			}

			n, err := newNode(ctx, conf, logger, signer, seqMetrics)
			if err != nil {
				return err
			}

			analyzer, err := newAnalyzer(ctx, conf.Analysis, logger.With("module", "analysis"))
			if err != nil {
				n.Close()
				return err
			}
			env := &rpc.Environment{
				Account:     n.account,
				ChainID:     conf.Chain.ChainIDBig(),
				Decimals:    n.decimals,
				Symbol:      n.symbol,
				Sequencer:   n.sequencer,
				State:       n.state,
				Products:    n.reader,
				Journal:     n.journal,
				EventSwitch: n.evsw,
			}
			if analyzer != nil {
				env.Analyzer = analyzer
			}
			services = append(services, rpc.NewServer(conf.RPC, env, logger.With("module", "api"), rpc.WithMetrics(apiMetrics)))

			group := service.NewGroup(logger, "agridash", services...)
			if err := group.Start(ctx); err != nil {
				n.Close()
				return err
			}
			logger.Info("serving dashboard API",
				"laddr", conf.RPC.ListenAddress, "account", n.account, "chain-id", conf.Chain.ChainID)

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				for _, h := range n.sequencer.Reset() {
					logger.Info("submitted transaction may still confirm", "method", h.Method, "hash", h.Hash)
				}
				if group.IsRunning() {
					if err := group.Stop(); err != nil {
						logger.Error("failed to stop services", "err", err)
					}
				}
				n.Close()
			})

			// Run forever.
			select {}
		},
	}
	AddChainFlags(cmd, conf)
	cmd.Flags().String("rpc.laddr", conf.RPC.ListenAddress, "dashboard API listen address")
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus, "serve Prometheus metrics")
	return cmd
}
