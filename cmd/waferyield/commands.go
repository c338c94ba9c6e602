package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/j-veylop/wafer-yield/internal/app"
	"github.com/j-veylop/wafer-yield/internal/config"
	"github.com/j-veylop/wafer-yield/internal/logger"
	"github.com/j-veylop/wafer-yield/internal/services"
	"github.com/j-veylop/wafer-yield/internal/ui/tabs/bins"
	"github.com/j-veylop/wafer-yield/internal/ui/tabs/info"
	"github.com/j-veylop/wafer-yield/internal/ui/tabs/stats"
	"github.com/j-veylop/wafer-yield/internal/ui/tabs/subbins"
	"github.com/j-veylop/wafer-yield/internal/version"
)

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report [input]",
		Short: "Generate the report tables once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts, args)
		},
	}
}

func runReport(cmd *cobra.Command, opts *options, args []string) error {
	mgr, err := newManager(cmd, opts, args)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	snap, written, err := mgr.Run(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), mgr.Config(), snap, written)
	return nil
}

// printSummary writes the one-line outcome of a report run.
func printSummary(w io.Writer, cfg *config.Config, snap *services.Snapshot, written []string) {
	fmt.Fprintf(w, "Processed %s dies on %s wafers in %s; wrote %d tables to %s (%s)\n",
		humanize.Comma(int64(snap.Records)),
		humanize.Comma(int64(len(snap.Wafers))),
		snap.Duration.Round(1e6),
		len(written),
		cfg.OutputPath,
		cfg.OutputFormat)
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import [input]",
		Short: "Copy the input die records into the sqlite store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(cmd, opts, args)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			n, err := mgr.Import(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s dies into %s\n",
				humanize.Comma(int64(n)), mgr.Config().DatabasePath)
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [input]",
		Short: "Regenerate the reports whenever the input changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(cmd, opts, args)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			ch, _ := mgr.Subscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				printEvents(cmd.OutOrStdout(), mgr.Config(), ch)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", mgr.Config().InputPath)
			err = mgr.Watch(cmd.Context())
			mgr.Unsubscribe(ch)
			<-done
			return err
		},
	}
}

// printEvents reports watch runs until ch is closed.
func printEvents(w io.Writer, cfg *config.Config, ch <-chan services.ServiceEvent) {
	for event := range ch {
		switch e := event.(type) {
		case services.InputChangedEvent:
			fmt.Fprintf(w, "%s changed, regenerating\n", filepath.Base(e.Path))
		case services.ReportsUpdatedEvent:
			printSummary(w, cfg, e.Snapshot, e.Written)
		case services.ErrorEvent:
			fmt.Fprintf(w, "Error (%s): %v\n", e.Service, e.Error)
		}
	}
}

func newViewCmd(opts *options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "view [input]",
		Short: "Browse the reports interactively",
		Long: `Browse the reports in the terminal.

Keyboard Shortcuts:
  1-4             Switch between tabs (Bins, Sub-bins, Stats, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate rows
  p               Counts / percent (Bins, Sub-bins)
  s               Bin / sub-bin (Stats)
  c               Toggle chart
  r               Regenerate from the input
  w               Write the reports to the output
  ?               Toggle help
  q, Ctrl+C       Quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(cmd, opts, args)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			logFile, err := openLogFile(mgr.Config())
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger.Init(logFile)

			ctx := cmd.Context()
			model := app.NewModel(ctx, mgr)
			state := model.GetState()
			model.SetTabs([]app.Tab{
				bins.New(state),
				subbins.New(state),
				stats.New(state),
				info.New(state, mgr.Config()),
			})

			if watch {
				go func() {
					if err := mgr.Watch(ctx); err != nil {
						logger.Error("watch stopped", "error", err)
					}
				}()
			}

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running viewer: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "regenerate and write the reports when the input changes")
	return cmd
}

// openLogFile opens the viewer log next to the sqlite store so log lines do
// not tear the screen.
func openLogFile(cfg *config.Config) (*os.File, error) {
	if err := cfg.EnsureDatabaseDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(filepath.Dir(cfg.DatabasePath), "wafer-yield.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <path>",
		Short: "Write the default report profile to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DefaultProfile().Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default profile to %s\n", args[0])
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
