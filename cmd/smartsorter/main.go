package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Nomadcxx/smartsorter/internal/config"
	"github.com/Nomadcxx/smartsorter/internal/fsops"
	"github.com/Nomadcxx/smartsorter/internal/reporter"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
	"github.com/Nomadcxx/smartsorter/internal/ui"
)

var (
	cfgFile string

	csvPath    string
	targetDir  string
	assumeYes  bool
	noTUI      bool
	historyMax int
	historyRun string

	// Version information (set via -ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "smartsorter",
	Short:         "Rename and file videos and thumbnails from a metadata CSV",
	Long:          getLongDescription(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match the files in a directory against a CSV and move them into place",
	Args:  cobra.NoArgs,
	RunE:  runSort,
}

var viewCmd = &cobra.Command{
	Use:   "view <report-file>",
	Short: "View a run report in the TUI",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration file location and contents",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var addNoiseCmd = &cobra.Command{
	Use:   "add-noise <pattern>",
	Short: "Add a regular expression stripped from filenames before title matching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editNoisePatterns(cmd, func(cfg *config.Config) error { return cfg.AddNoisePattern(args[0]) })
	},
}

var removeNoiseCmd = &cobra.Command{
	Use:   "remove-noise <pattern>",
	Short: "Remove a filename noise pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editNoisePatterns(cmd, func(cfg *config.Config) error { return cfg.RemoveNoisePattern(args[0]) })
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show moves recorded in the operation log",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "smartsorter %s\n", version)
		fmt.Fprintf(out, "  Commit:     %s\n", commit)
		fmt.Fprintf(out, "  Built:      %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/smartsorter/config.toml)")

	runCmd.Flags().StringVar(&csvPath, "csv", "", "metadata CSV with title, index and optional url columns")
	runCmd.Flags().StringVar(&targetDir, "dir", ".", "directory holding the files to sort")
	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "plain console output even on a terminal")
	_ = runCmd.MarkFlagRequired("csv")

	historyCmd.Flags().IntVarP(&historyMax, "limit", "n", 50, "show at most this many moves (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "only show moves from this run id")

	configCmd.AddCommand(addNoiseCmd)
	configCmd.AddCommand(removeNoiseCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSort(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Ctrl+C outside the TUI stops the run at the next file
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	result, err := executeRun(ctx, cfg, runOptions{
		CSV:    csvPath,
		Dir:    targetDir,
		Yes:    assumeYes,
		NoTUI:  noTUI,
		In:     os.Stdin,
		Out:    out,
		ErrOut: cmd.ErrOrStderr(),
	})

	switch {
	case errors.Is(err, sorter.ErrDeclined):
		fmt.Fprintln(out, "Run declined. No files were changed.")
		return nil
	case err != nil && result.Report.RunID == "":
		return err
	case sorter.IsSetupError(err):
		return err
	}

	printRunSummary(out, result)

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatStatusFail("Run cancelled by user. Completed moves are kept."))
		os.Exit(130) // Exit code 130 for SIGINT
	}
	return err
}

func runView(cmd *cobra.Command, args []string) error {
	report, err := reporter.Load(args[0])
	if err != nil {
		return fmt.Errorf("error loading report: %w", err)
	}

	p := tea.NewProgram(ui.NewModel(report), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n\n", path)
	fmt.Fprint(out, describeConfig(cfg))
	return nil
}

func editNoisePatterns(cmd *cobra.Command, edit func(*config.Config) error) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := edit(cfg); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d noise pattern(s) to %s\n", len(cfg.Matching.NoisePatterns), path)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	out := cmd.OutOrStdout()
	ops, err := fsops.ReadJournal(cfg.Output.OperationLog)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "No operations recorded yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read operation log: %w", err)
	}

	ops = filterOperations(ops, historyRun, historyMax)
	if len(ops) == 0 {
		fmt.Fprintln(out, "No matching operations.")
		return nil
	}
	fmt.Fprintln(out, renderHistory(ops))
	return nil
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

func getLongDescription() string {
	return ui.FormatASCIIHeader() + "\n\n" +
		"smartsorter matches loosely named video and thumbnail files against a metadata CSV,\n" +
		"renames them to \"<index> - <title>\" and files them into Videos/ and Thumbnails/."
}
