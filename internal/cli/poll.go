package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sile/magpies/internal/metrics"
	"github.com/sile/magpies/internal/poller"
)

func newPollCmd(a *app) *cobra.Command {
	var (
		interval    time.Duration
		timeout     time.Duration
		count       int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:     "poll [TARGETS_FILE]",
		Short:   "Run target commands periodically and print one record per run",
		GroupID: "core",
		Long: "poll reads target descriptors (one JSON object per line, from TARGETS_FILE or stdin), " +
			"runs each command every interval and prints its JSON output as a record line on stdout.",
		Example: `  magpies target --target redis redis-cli info-json > targets.jsonl
  magpies poll -i 5s targets.jsonl >> records.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			if !cmd.Flags().Changed("interval") {
				interval = cfg.PollIntervalDuration()
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.PollTimeoutDuration()
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = cfg.Metrics.Address
			}
			if count < 0 {
				return fmt.Errorf("--count must be >= 0")
			}

			src := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open targets: %w", err)
				}
				defer f.Close()
				src = f
			}
			targets, err := poller.ReadTargets(src)
			if err != nil {
				return err
			}

			log, err := a.newLogger(true)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			rec := metrics.New()
			if metricsAddr != "" {
				go func() {
					if err := rec.Serve(ctx, metricsAddr); err != nil {
						log.Warn("metrics endpoint stopped", zap.String("addr", metricsAddr), zap.Error(err))
					}
				}()
			}

			p, err := poller.New(targets, poller.Options{
				Interval: interval,
				Timeout:  timeout,
				Count:    count,
				Logger:   log,
				Metrics:  rec,
			})
			if err != nil {
				return err
			}
			log.Info("polling started", zap.Int("targets", len(targets)), zap.Duration("interval", interval))
			if err := p.Run(ctx, cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for one command run (0 = none)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many rounds (0 = forever)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
