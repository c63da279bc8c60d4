package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xfhg/intercept/pkg/cli"
	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/observe"
	"github.com/xfhg/intercept/pkg/report"
)

var observeFlags struct {
	runFlags
	schedule    string
	stateDriver string
	statePath   string
	webhook     string
	metricsAddr string
	watch       bool
	once        bool
}

var observeCmd = &cobra.Command{
	Use:   "observe [target]",
	Short: "Continuously evaluate a policy on a schedule",
	Long: `Run the policy on a cron schedule and report violations not seen on a
previous tick to a webhook.

Runtime rules, which audit skips, are evaluated on every tick. Violations
are tracked per rule and location; a violation that disappears and later
reappears is reported again. State survives restarts with the sqlite and
sqlite3 state drivers.

Examples:
  # Every five minutes with in-memory state
  intercept observe ./srv --policy policy.yaml

  # Persistent state, webhook delivery and metrics
  intercept observe ./srv -p policy.yaml --schedule "*/1 * * * *" \
    --state-driver sqlite --state-path /var/lib/intercept/observe.db \
    --webhook https://hooks.example.com/intercept --metrics-address :9090

  # Reload the policy file when it changes
  intercept observe ./srv -p policy.yaml --watch

  # A single tick, printing the report
  intercept observe ./srv -p policy.yaml --once`,
	Args: cobra.MaximumNArgs(1),
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)

	observeFlags.register(observeCmd)
	observeCmd.Flags().StringVar(&observeFlags.schedule, "schedule", "", "cron expression or @every <duration>")
	observeCmd.Flags().StringVar(&observeFlags.stateDriver, "state-driver", "", "state driver: memory, sqlite, sqlite3")
	observeCmd.Flags().StringVar(&observeFlags.statePath, "state-path", "", "state database file")
	observeCmd.Flags().StringVar(&observeFlags.webhook, "webhook", "", "webhook URL for new violations")
	observeCmd.Flags().StringVar(&observeFlags.metricsAddr, "metrics-address", "", "serve Prometheus metrics on this address")
	observeCmd.Flags().BoolVar(&observeFlags.watch, "watch", false, "reload the policy file when it changes")
	observeCmd.Flags().BoolVar(&observeFlags.once, "once", false, "run a single tick and exit with its status")
}

func runObserve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyObserveFlags(cfg, targetArg(args))

	ctx, stop := cli.SetupSignalHandler(cmd.Context(), nil)
	defer stop()

	code, err := runDaemon(ctx, cmd, cfg, observeFlags.once)
	if err != nil {
		return err
	}
	return cli.Exit(code, nil)
}

func applyObserveFlags(cfg *config.Config, target string) {
	observeFlags.apply(cfg, target)
	if observeFlags.schedule != "" {
		cfg.Observe.Schedule = observeFlags.schedule
	}
	if observeFlags.stateDriver != "" {
		cfg.Observe.State.Driver = observeFlags.stateDriver
	}
	if observeFlags.statePath != "" {
		cfg.Observe.State.Path = observeFlags.statePath
	}
	if observeFlags.webhook != "" {
		cfg.Observe.Webhook.URL = observeFlags.webhook
	}
	if observeFlags.metricsAddr != "" {
		cfg.Observe.MetricsAddress = observeFlags.metricsAddr
	}
	if observeFlags.watch {
		cfg.Observe.WatchPolicy = true
	}
}

// runDaemon runs observe until ctx is done. With once set it runs a single
// tick, writes the report and returns its exit code.
func runDaemon(ctx context.Context, cmd *cobra.Command, cfg *config.Config, once bool) (int, error) {
	a, err := newApp(ctx, cmd, cfg)
	if err != nil {
		return 0, err
	}
	defer a.close()

	doc, err := a.loadPolicy(ctx)
	if err != nil {
		return 0, cli.NewCommandError("observe", err)
	}
	w, err := a.walker()
	if err != nil {
		return 0, err
	}

	state, err := observe.OpenState(cfg.Observe.State, a.logger.With("component", "observe.state"))
	if err != nil {
		return 0, cli.NewConfigError("observe.state", err.Error())
	}
	defer state.Close()

	opts := observe.Options{
		Schedule: cfg.Observe.Schedule,
		State:    state,
		Metrics:  a.metrics,
		Tracer:   a.tracer,
		Logger:   a.logger,
	}
	if cfg.Observe.Webhook.URL != "" {
		sink := observe.NewWebhookSink(cfg.Observe.Webhook, a.metrics, a.logger)
		defer closeSink(sink, cfg.Observe.Webhook.Timeout, a.logger)
		opts.Sink = sink
	}

	daemon, err := observe.NewDaemon(a.pipeline(), doc, w, opts)
	if err != nil {
		return 0, cli.NewConfigError("observe.schedule", err.Error())
	}

	if once {
		res, err := daemon.Tick(ctx)
		if err != nil {
			return 0, cli.NewCommandError("observe", err)
		}
		renderer, err := report.NewRenderer(cfg.Report.Format, report.RenderOptions{
			NoColor: cfg.Report.NoColor,
			Version: Version,
		})
		if err != nil {
			return 0, cli.NewConfigError("report.format", err.Error())
		}
		if err := renderer.Render(cmd.OutOrStdout(), res.Report); err != nil {
			return 0, cli.NewCommandError("observe", err)
		}
		return res.Report.ExitCode, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return daemon.Run(gctx)
	})
	if addr := cfg.Observe.MetricsAddress; addr != "" {
		g.Go(func() error {
			return observe.ServeMetrics(gctx, addr, a.metrics.Handler(), a.logger)
		})
	}
	if cfg.Observe.WatchPolicy {
		if isFileSource(cfg) {
			watcher := observe.NewPolicyWatcher(cfg.Policy.Path, cfg.Observe.WatchDebounce, a.loader.LoadFile, daemon.SetPolicy, a.logger)
			g.Go(func() error {
				return watcher.Watch(gctx)
			})
		} else {
			a.logger.Warn("policy watch requires a file policy source", "source", cfg.Policy.Source)
		}
	}

	if err := g.Wait(); err != nil {
		return 0, cli.NewCommandError("observe", err)
	}
	return cli.ExitOK, nil
}

func isFileSource(cfg *config.Config) bool {
	return cfg.Policy.Source == "" || strings.EqualFold(cfg.Policy.Source, config.PolicySourceFile)
}

// closeSink drains pending deliveries for at most one delivery timeout.
func closeSink(sink observe.Sink, timeout time.Duration, logger *slog.Logger) {
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		logger.Warn("failed to drain webhook deliveries", "error", err)
	}
}
