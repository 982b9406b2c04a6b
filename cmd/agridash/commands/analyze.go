package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/analysis"
	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
)

var errAnalysisDisabled = errors.New("market analysis is disabled; set [analysis] provider in config.toml")

// newAnalyzer returns nil when no provider is configured.
func newAnalyzer(ctx context.Context, conf *config.AnalysisConfig, logger log.Logger) (*analysis.Analyzer, error) {
	if !conf.Enabled() {
		return nil, nil
	}
	gen, err := analysis.NewGeminiGenerator(ctx, os.Getenv(conf.APIKeyEnv), conf.Model)
	if err != nil {
		return nil, fmt.Errorf("%w (set %s)", err, conf.APIKeyEnv)
	}
	return analysis.NewAnalyzer(logger, gen, conf.Timeout), nil
}

// MakeAnalyzeCommand generates a market-analysis report for the account's
// listings.
func MakeAnalyzeCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate an AI market analysis of your listed products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			an, err := newAnalyzer(ctx, conf.Analysis, logger.With("module", "analysis"))
			if err != nil {
				return err
			}
			if an == nil {
				return errAnalysisDisabled
			}

			return withReadSession(cmd, conf, logger, func(s *readSession) error {
				snap, err := s.state.Snapshot(ctx)
				if err != nil {
					return err
				}
				mine := snap.FarmerProducts(s.account)

				report, err := an.Analyze(ctx, analysis.Request{
					Products: analysis.ProductInputs(mine, s.decimals),
					Symbol:   s.symbol,
				})
				if err != nil {
					return err
				}
				if s.printer.json {
					return s.printer.writeJSON(report)
				}
				_, err = fmt.Fprintln(s.printer.out, report.Markdown)
				return err
			})
		},
	}
	addReadFlags(cmd, conf)
	return cmd
}
