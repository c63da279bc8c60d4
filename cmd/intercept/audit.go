package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/xfhg/intercept/pkg/cli"
	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/engine"
	"github.com/xfhg/intercept/pkg/report"
)

var auditFlags struct {
	runFlags
	format  string
	output  string
	noColor bool
}

var auditCmd = &cobra.Command{
	Use:   "audit [target]",
	Short: "Evaluate a policy against a target tree",
	Long: `Evaluate every rule of a policy against the target directory once and
write the report.

The exit status reflects the most severe verdict: 0 clean, 1 warning,
2 critical. An interrupted run exits 130 after in-flight rules finish or
the grace period elapses.

Examples:
  # Audit the current directory
  intercept audit --policy policy.yaml

  # Audit a tree for the production environment
  intercept audit ./deploy --policy policy.yaml --env production

  # SARIF output for code scanning
  intercept audit . -p policy.yaml --format sarif --output intercept.sarif

  # Only rules tagged secrets, ignoring exceptions
  intercept audit . -p policy.yaml --tags-any secrets -x`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditFlags.register(auditCmd)
	auditCmd.Flags().StringVarP(&auditFlags.format, "format", "f", "", "report format: text, json, sarif")
	auditCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "write the report to a file")
	auditCmd.Flags().BoolVar(&auditFlags.noColor, "no-color", false, "disable colored output")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAuditFlags(cfg, targetArg(args))

	ctx, stop := cli.SetupSignalHandler(cmd.Context(), func() { os.Exit(report.ExitInterrupted) })
	defer stop()

	code, err := audit(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	return cli.Exit(code, nil)
}

func applyAuditFlags(cfg *config.Config, target string) {
	auditFlags.apply(cfg, target)
	if auditFlags.format != "" {
		cfg.Report.Format = auditFlags.format
	}
	if auditFlags.output != "" {
		cfg.Report.Output = auditFlags.output
	}
	if auditFlags.noColor {
		cfg.Report.NoColor = true
	}
}

// audit runs the policy once and writes the report. It returns the report's
// exit code.
func audit(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (int, error) {
	a, err := newApp(ctx, cmd, cfg)
	if err != nil {
		return 0, err
	}
	defer a.close()

	renderer, err := report.NewRenderer(cfg.Report.Format, report.RenderOptions{
		NoColor: cfg.Report.NoColor,
		Version: Version,
	})
	if err != nil {
		return 0, cli.NewConfigError("report.format", err.Error())
	}

	doc, err := a.loadPolicy(ctx)
	if err != nil {
		return 0, cli.NewCommandError("audit", err)
	}
	w, err := a.walker()
	if err != nil {
		return 0, err
	}

	r := a.pipeline().Run(ctx, doc, w, engine.ModeAudit)

	out, err := cli.OpenOutput(cfg.Report.Output, cmd.OutOrStdout())
	if err != nil {
		return 0, cli.NewCommandError("audit", err)
	}
	if err := renderer.Render(out, r); err != nil {
		out.Close()
		return 0, cli.NewCommandError("audit", err)
	}
	if err := out.Close(); err != nil {
		return 0, cli.NewCommandError("audit", err)
	}

	if cfg.Report.Output != "" {
		a.logger.Info("report written", "path", cfg.Report.Output, "format", cfg.Report.Format)
	}
	return r.ExitCode, nil
}
