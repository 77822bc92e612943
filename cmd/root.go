// Package cmd wires configuration, the GitLab client and the report writer
// into the gitlab-vuln-report command.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ortelius/gitlab-vuln-report/config"
	"github.com/ortelius/gitlab-vuln-report/gitlab"
	"github.com/ortelius/gitlab-vuln-report/report"
	"github.com/ortelius/gitlab-vuln-report/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	outputFile string
	withChart  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gitlab-vuln-report",
	Short: "Generate a GitLab vulnerabilities report by scrum",
	Long: `Collects open and recently created critical and high vulnerabilities
for every project of the configured GitLab groups and writes an XLSX workbook
with one sheet per group, a Summary sheet and a percent change table.

The access token is read from the GRAPHQL_API_TOKEN environment variable.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReport,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (optional)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Override the output workbook path")
	rootCmd.Flags().BoolVar(&withChart, "chart", false, "Add a bar chart to the Summary sheet")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if outputFile != "" {
		cfg.Report.Output = outputFile
	}
	if cmd.Flags().Changed("chart") {
		cfg.Report.Chart = withChart
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.InitLogger(cfg.Logging.Level)
	defer func() { _ = logger.Sync() }()

	return generate(cmd.Context(), cfg, logger)
}

// generate builds the report for every configured group and writes the workbook.
func generate(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	groups, err := cfg.GroupList()
	if err != nil {
		return err
	}

	client, err := gitlab.NewClient(gitlab.Options{
		BaseURL:           cfg.GitLab.BaseURL,
		Token:             cfg.GitLab.Token,
		PerPage:           cfg.GitLab.PerPage,
		ConnectTimeout:    cfg.GitLab.ConnectTimeout,
		ReadTimeout:       cfg.GitLab.ReadTimeout,
		MaxRetries:        cfg.GitLab.MaxRetries,
		BackoffFactor:     cfg.GitLab.BackoffFactor,
		RequestsPerSecond: cfg.GitLab.RequestsPerSecond,
		MaxIdleConns:      cfg.GitLab.MaxIdleConns,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	r, err := report.NewBuilder(client, logger).Build(ctx, groups)
	if err != nil {
		return fmt.Errorf("report interrupted: %w", err)
	}

	if incomplete := r.Incomplete(); len(incomplete) > 0 {
		logger.Warn("Some data could not be fetched, counts may be truncated", zap.Strings("incomplete", incomplete))
	}

	if err := report.Write(r, cfg.Report.Output, report.Options{Chart: cfg.Report.Chart, Logger: logger}); err != nil {
		return err
	}
	logger.Sugar().Infof("Report generated: %s", cfg.Report.Output)
	return nil
}
