package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/j-veylop/wafer-yield/internal/config"
	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/services"
	"github.com/j-veylop/wafer-yield/internal/yield"
)

// options holds the persistent flags shared by every command.
type options struct {
	sheet      string
	output     string
	format     string
	profile    string
	zeroPolicy string
	database   string
	debounce   time.Duration
	notify     bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "waferyield [input]",
		Short: "Aggregate wafer test results into yield reports",
		Long: `wafer-yield reads per-die test records (Wafer, Bin, Sub_Bin, Reading_1,
Reading_2) from an xlsx, csv or sqlite input and writes six report tables:
die counts and percentages per bin and per sub-bin, and reading statistics
per bin and per sub-bin.

Run without a subcommand to generate the reports once.

Environment Variables:
  WAFER_INPUT_PATH          Input workbook, csv file or sqlite store
  WAFER_INPUT_SHEET         Worksheet holding the die records (default: Raw Data)
  WAFER_OUTPUT_PATH         Output workbook, csv directory or sqlite store
  WAFER_OUTPUT_FORMAT       xlsx, csv or sqlite (default: from output path)
  WAFER_PROFILE_PATH        YAML report profile
  WAFER_ZERO_TOTAL_POLICY   zero, omit or error
  WAFER_DATABASE_PATH       sqlite store used by import
  WAFER_WATCH_DEBOUNCE      Delay before regenerating after a change
  WAFER_NOTIFY              Desktop notifications in watch mode`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.SetVerbose(opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts, args)
		},
	}

	opts.addFlags(root.PersistentFlags())

	root.AddCommand(
		newReportCmd(opts),
		newImportCmd(opts),
		newWatchCmd(opts),
		newViewCmd(opts),
		newProfileCmd(),
		newVersionCmd(),
	)
	return root
}

func (o *options) addFlags(f *pflag.FlagSet) {
	f.StringVar(&o.sheet, "sheet", "", "worksheet holding the die records")
	f.StringVarP(&o.output, "output", "o", "", "output workbook, csv directory or sqlite store")
	f.StringVarP(&o.format, "format", "f", "", "output format: xlsx, csv or sqlite")
	f.StringVarP(&o.profile, "profile", "p", "", "YAML report profile")
	f.StringVar(&o.zeroPolicy, "zero-policy", "", "percentages of empty wafers: zero, omit or error")
	f.StringVar(&o.database, "db", "", "sqlite store used by import")
	f.DurationVar(&o.debounce, "debounce", 0, "delay before regenerating after an input change")
	f.BoolVar(&o.notify, "notify", false, "desktop notification after each watch run")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
}

// loadConfig merges the environment with the flags the user set and
// resolves the report profile.
func loadConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(args) > 0 {
		cfg.InputPath = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("sheet") {
		cfg.InputSheet = opts.sheet
	}
	if flags.Changed("output") {
		cfg.OutputPath = opts.output
		// the env format belongs to the env output
		cfg.OutputFormat = ""
	}
	if flags.Changed("format") {
		if cfg.OutputFormat, err = config.ParseFormat(opts.format); err != nil {
			return nil, err
		}
	}
	if flags.Changed("profile") {
		cfg.ProfilePath = opts.profile
	}
	if flags.Changed("zero-policy") {
		if cfg.ZeroTotalPolicy, err = yield.ParseZeroTotalPolicy(opts.zeroPolicy); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db") {
		cfg.DatabasePath = opts.database
	}
	if flags.Changed("debounce") {
		cfg.WatchDebounce = opts.debounce
	}
	if flags.Changed("notify") {
		cfg.Notify = opts.notify
	}

	if err := cfg.Resolve(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newManager loads the configuration and builds the service manager.
func newManager(cmd *cobra.Command, opts *options, args []string) (*services.Manager, error) {
	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		return nil, err
	}
	mgr, err := services.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return mgr, nil
}

func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		logger.Warn("error closing services", "error", err)
	}
}
