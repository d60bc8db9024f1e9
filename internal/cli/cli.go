package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"admira-report/internal/config"
	"admira-report/internal/metrics"
	"admira-report/internal/models"
	"admira-report/internal/report"
)

// CLI builds reports from exports on local disk.
type CLI struct {
	config  *config.Config
	output  io.Writer
	logger  *logrus.Logger
	rootCmd *cobra.Command
}

type Options struct {
	Config *config.Config
	Output io.Writer
	// Logger defaults to a text logger on stderr.
	Logger *logrus.Logger
}

func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Config == nil {
		opts.Config = config.FromEnv()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(os.Stderr)
		if level, err := logrus.ParseLevel(opts.Config.LogLevel); err == nil {
			opts.Logger.SetLevel(level)
		}
	}

	c := &CLI{
		config: opts.Config,
		output: opts.Output,
		logger: opts.Logger,
	}
	c.rootCmd = c.newRootCmd()
	return c
}

func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

// SetArgs overrides os.Args, for tests.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "adreport",
		Short:         "Meta Ads period-comparison reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.output)

	cmd.AddCommand(c.newBuildCmd())
	cmd.AddCommand(c.newObjectivesCmd())
	return cmd
}

type buildCmd struct {
	cli       *CLI
	thisFiles []string
	lastFiles []string
	objective string
	retention string
	name      string
	top       int
}

func (c *CLI) newBuildCmd() *cobra.Command {
	bc := &buildCmd{cli: c}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a report from this-period and last-period exports",
		RunE:  bc.run,
	}

	cmd.Flags().StringSliceVar(&bc.thisFiles, "this", nil, "Export files for the current period (repeatable)")
	cmd.Flags().StringSliceVar(&bc.lastFiles, "last", nil, "Export files for the previous period (repeatable)")
	cmd.Flags().StringVar(&bc.objective, "objective", "", "Campaign objective (ctwa, cpas, ctlptowa, ctlptopurchase)")
	cmd.Flags().StringVar(&bc.retention, "retention", "wow", "Comparison window (wow, mom)")
	cmd.Flags().StringVar(&bc.name, "name", "", "Report name")
	cmd.Flags().IntVar(&bc.top, "top", 0, "Breakdown segments to show (0 uses BREAKDOWN_TOP_N)")

	_ = cmd.MarkFlagRequired("this")
	_ = cmd.MarkFlagRequired("last")
	_ = cmd.MarkFlagRequired("objective")

	return cmd
}

func (bc *buildCmd) run(cmd *cobra.Command, args []string) error {
	thisPeriod, err := readFiles(bc.thisFiles)
	if err != nil {
		return err
	}
	lastPeriod, err := readFiles(bc.lastFiles)
	if err != nil {
		return err
	}

	cfg := bc.cli.config
	builder := report.NewBuilder(report.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxFileRows:    cfg.MaxFileRows,
		TopN:           cfg.BreakdownTopN,
	}, bc.cli.logger)

	r, err := builder.Build(cmd.Context(), report.Request{
		Name:       bc.name,
		Objective:  models.Objective(bc.objective),
		Retention:  models.RetentionType(bc.retention),
		TopN:       bc.top,
		ThisPeriod: thisPeriod,
		LastPeriod: lastPeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	return writeJSON(bc.cli.output, r)
}

func (c *CLI) newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List supported campaign objectives and their metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []models.ObjectiveInfo
			for _, p := range metrics.Profiles() {
				infos = append(infos, p.Info())
			}
			return writeJSON(c.output, infos)
		},
	}
}

func readFiles(paths []string) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, models.UploadedFile{Name: filepath.Base(path), Content: content})
	}
	return files, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
