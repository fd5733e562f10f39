package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/Nomadcxx/smartsorter/internal/config"
	"github.com/Nomadcxx/smartsorter/internal/fsops"
	"github.com/Nomadcxx/smartsorter/internal/logging"
	"github.com/Nomadcxx/smartsorter/internal/reporter"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
	"github.com/Nomadcxx/smartsorter/internal/ui"
)

// runOptions are the inputs of one `smartsorter run`
type runOptions struct {
	CSV    string
	Dir    string
	Yes    bool
	NoTUI  bool
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// runResult is what a run leaves behind
type runResult struct {
	Report      reporter.Report
	ReportPath  string
	SummaryPath string
	LogPath     string
}

// executeRun wires the engine to the filesystem, the metadata CSV, the
// confirmation gate and every event sink, then runs it. The returned error is
// the engine's; the report is saved for every run that got past setup.
func executeRun(ctx context.Context, cfg *config.Config, opts runOptions) (runResult, error) {
	var result runResult

	if opts.CSV == "" {
		return result, errors.New("a metadata CSV is required (--csv)")
	}
	root, err := filepath.Abs(opts.Dir)
	if err != nil {
		return result, fmt.Errorf("failed to resolve directory: %w", err)
	}
	source, err := filepath.Abs(opts.CSV)
	if err != nil {
		return result, fmt.Errorf("failed to resolve metadata path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return result, fmt.Errorf("invalid configuration: %w", err)
	}
	settings, err := cfg.Settings(root)
	if err != nil {
		return result, fmt.Errorf("invalid configuration: %w", err)
	}

	lock, err := acquireLock(root)
	if err != nil {
		return result, err
	}
	defer lock.Unlock()

	runID := uuid.NewString()
	interactive := !opts.NoTUI && isTerminal(opts.In) && logging.IsTerminal(opts.Out)

	// The TUI owns the terminal; the log file still gets everything
	console := opts.ErrOut
	if interactive {
		console = io.Discard
	}
	logger, logCloser, err := logging.New(logging.Options{
		Level:   cfg.Output.LogLevel,
		File:    cfg.Output.LogFile,
		Console: console,
	})
	if err != nil {
		return result, err
	}
	defer logCloser.Close()
	logger = logger.With().Str("run_id", runID).Logger()

	journal, err := fsops.OpenJournal(cfg.Output.OperationLog, runID)
	if err != nil {
		return result, err
	}
	defer journal.Close()

	transcript, err := reporter.NewTranscript(cfg.Output.ReportDir, runID, root)
	if err != nil {
		return result, err
	}
	defer transcript.Close()
	result.LogPath = transcript.Path()

	collector := reporter.NewCollector(runID, root)
	sinks := sorter.Fanout{logging.EventLogger{Logger: logger}, collector, transcript}

	var gate sorter.Gate
	var confirm *ui.ConfirmGate
	switch {
	case opts.Yes:
		gate = sorter.AutoConfirm(true)
	case interactive:
		confirm = ui.NewConfirmGate()
		confirm.Input = opts.In
		confirm.Output = opts.Out
		gate = confirm
	default:
		gate = ui.PromptGate{In: opts.In, Out: opts.Out}
	}

	var stream *sorter.Stream
	if interactive {
		stream = sorter.NewStream()
		sinks = append(sinks, stream)
	}

	local := fsops.NewLocal(journal)
	engine, err := sorter.New(settings, sorter.Deps{
		Records:  cfg.Source(source),
		Lister:   local,
		Executor: local,
		Gate:     gate,
		Sink:     sinks,
	})
	if err != nil {
		return result, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	engineDone := make(chan struct{})
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer close(engineDone)
		if stream != nil {
			defer stream.Close()
		}
		_, runErr = engine.Run(gctx)
		if runErr != nil && !errors.Is(runErr, sorter.ErrDeclined) {
			collector.SetError(runErr)
		}
		return nil
	})

	if interactive {
		g.Go(func() error {
			finished := func() tea.Msg {
				return ui.RunFinishedMsg{Report: collector.Report(), Err: runErr}
			}
			return presentRun(stream, confirm, engineDone, cancel, len(settings.TitleThresholds()), finished, opts)
		})
	}

	waitErr := g.Wait()

	if err := transcript.Finalize(); err != nil {
		logger.Warn().Err(err).Msg("run log is incomplete")
	}
	if err := journal.Err(); err != nil {
		logger.Warn().Err(err).Msg("operation journal is incomplete")
	}

	result.Report = collector.Report()
	if runErr == nil || !(sorter.IsSetupError(runErr) || errors.Is(runErr, sorter.ErrDeclined)) {
		jsonPath, summaryPath, err := reporter.Save(result.Report, cfg.Output.ReportDir)
		if err != nil {
			logger.Error().Err(err).Msg("failed to save report")
		} else {
			result.ReportPath, result.SummaryPath = jsonPath, summaryPath
			logger.Info().Str("report", jsonPath).Int("journaled", journal.Count()).Msg("report saved")
		}
	}

	if runErr != nil {
		return result, runErr
	}
	return result, waitErr
}

// presentRun shows the live run view once the user has confirmed. Events
// queued while the prompt was up are replayed from the stream.
func presentRun(stream *sorter.Stream, confirm *ui.ConfirmGate, engineDone <-chan struct{}, cancel context.CancelFunc, passes int, finished func() tea.Msg, opts runOptions) error {
	if confirm != nil {
		select {
		case <-confirm.Done():
		case <-engineDone:
		}
		if !confirm.Confirmed() {
			go func() {
				for range stream.Events() {
				}
			}()
			return nil
		}
	}

	p := tea.NewProgram(
		ui.NewRunModel(stream.Events(), cancel, passes),
		tea.WithAltScreen(),
		tea.WithInput(opts.In),
		tea.WithOutput(opts.Out),
	)
	go func() {
		<-engineDone
		p.Send(finished())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run view failed: %w", err)
	}
	return nil
}

// isTerminal reports whether r is an interactive terminal
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
