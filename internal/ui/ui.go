package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/smartsorter/internal/reporter"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Custom messages for run progress
type eventMsg sorter.Event
type streamClosedMsg struct{}

// RunFinishedMsg is sent once the engine returned and the report is assembled
type RunFinishedMsg struct {
	Report reporter.Report
	Err    error
}

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewRunning ViewMode = iota
	ViewSummary
	ViewMoves
	ViewUnmatched
)

// maxLogLines bounds the in-memory run log
const maxLogLines = 1000

// Model represents the TUI state
type Model struct {
	report   reporter.Report
	mode     ViewMode
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	// Running state
	events     <-chan sorter.Event
	cancel     context.CancelFunc
	running    bool
	cancelled  bool
	runErr     error
	logs       []sorter.Event
	phase      sorter.Phase
	pass       int
	passes     int
	moved      int
	collisions int
	failures   int
}

// NewModel creates a TUI model showing a finished report
func NewModel(report reporter.Report) Model {
	return Model{
		report: report,
		mode:   ViewSummary,
	}
}

// NewRunModel creates a TUI model that follows a live run. events is the
// engine's event stream; cancel stops the run when the user presses Ctrl+C.
// The caller sends RunFinishedMsg once the engine has returned.
func NewRunModel(events <-chan sorter.Event, cancel context.CancelFunc, passes int) Model {
	return Model{
		mode:    ViewRunning,
		events:  events,
		cancel:  cancel,
		running: true,
		passes:  passes,
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return waitForEvent(m.events)
}

// waitForEvent reads the next event from the stream
func waitForEvent(events <-chan sorter.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.record(sorter.Event(msg))
		if m.mode == ViewRunning {
			m.viewport.SetContent(m.renderRunning())
			m.viewport.GotoBottom()
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, nil

	case RunFinishedMsg:
		m.running = false
		m.report = msg.Report
		m.runErr = msg.Err
		m.mode = ViewSummary
		m.viewport.SetContent(m.renderSummary())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.running {
				if !m.cancelled && m.cancel != nil {
					m.cancel()
				}
				m.cancelled = true
				m.viewport.SetContent(m.renderRunning())
				m.viewport.GotoBottom()
				return m, nil
			}
			return m, tea.Quit

		case "q":
			if m.running {
				return m, nil
			}
			return m, tea.Quit

		case "esc":
			if m.running {
				return m, nil
			}
			if m.mode != ViewSummary {
				m.mode = ViewSummary
				m.viewport.SetContent(m.renderSummary())
				m.viewport.GotoTop()
				return m, nil
			}
			return m, tea.Quit

		case "f1":
			if !m.running {
				m.mode = ViewMoves
				m.viewport.SetContent(m.renderMoves())
				m.viewport.GotoTop()
			}
			return m, nil

		case "f2":
			if !m.running {
				m.mode = ViewUnmatched
				m.viewport.SetContent(m.renderUnmatched())
				m.viewport.GotoTop()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			// Initialize viewport
			m.viewport = viewport.New(msg.Width, msg.Height-4) // Leave room for header/footer
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.render())
		if m.mode == ViewRunning {
			m.viewport.GotoBottom()
		}

		return m, nil
	}

	// Handle viewport updates (scrolling)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// record folds one engine event into the running counters
func (m *Model) record(e sorter.Event) {
	m.logs = append(m.logs, e)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}

	switch e.Kind {
	case sorter.EventPhaseStarted:
		m.phase = e.Phase
		m.pass = 0
	case sorter.EventPassStarted:
		m.pass = e.Pass
	case sorter.EventMoved:
		m.moved++
	case sorter.EventCollision:
		m.collisions++
	case sorter.EventMoveFailed:
		m.failures++
	}
}

// render returns the content for the current mode
func (m Model) render() string {
	switch m.mode {
	case ViewRunning:
		return m.renderRunning()
	case ViewMoves:
		return m.renderMoves()
	case ViewUnmatched:
		return m.renderUnmatched()
	default:
		return m.renderSummary()
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var header string
	var footer string

	scrollInfo := MutedStyle.Render(fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100)))

	switch m.mode {
	case ViewRunning:
		header = FormatHeader("SORTING IN PROGRESS")
		if m.cancelled {
			footer = FormatFooter(MutedStyle.Render("Stopping after the current file..."))
		} else {
			footer = FormatFooter(
				FormatKeybinding("Ctrl+C", "Stop Run"),
				MutedStyle.Render("Please wait..."),
			)
		}

	case ViewSummary:
		header = FormatHeader("SMARTSORTER RUN SUMMARY")
		footer = FormatFooter(
			FormatKeybinding("F1", "Moved Files"),
			FormatKeybinding("F2", "Unmatched"),
			FormatKeybinding("Esc", "Exit"),
		)

	case ViewMoves:
		header = FormatHeader("MOVED FILES (DETAILED)")
		footer = FormatFooter(
			FormatKeybinding("↑↓", "Scroll"),
			FormatKeybinding("PgUp/PgDn", "Page"),
			FormatKeybinding("Esc", "Back"),
			scrollInfo,
		)

	case ViewUnmatched:
		header = FormatHeader("UNMATCHED AND PROBLEM FILES")
		footer = FormatFooter(
			FormatKeybinding("↑↓", "Scroll"),
			FormatKeybinding("PgUp/PgDn", "Page"),
			FormatKeybinding("Esc", "Back"),
			scrollInfo,
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
	)
}

// renderRunning renders the live run log
func (m Model) renderRunning() string {
	var sb strings.Builder

	sb.WriteString(FormatASCIIHeader() + "\n\n")

	sb.WriteString(InfoStyle.Render("Phase: ") + ContentStyle.Render(phaseTitle(m.phase)))
	if m.phase == sorter.PhaseTitle && m.pass > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  (pass %d of %d)", m.pass, m.passes)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n\n",
		InfoStyle.Render("Moved:"), StatStyle.Render(fmt.Sprintf("%d", m.moved)),
		InfoStyle.Render("Collisions:"), StatStyle.Render(fmt.Sprintf("%d", m.collisions)),
		InfoStyle.Render("Failures:"), StatStyle.Render(fmt.Sprintf("%d", m.failures))))

	sb.WriteString(TitleStyle.Render("RUN LOG") + "\n")
	sb.WriteString(strings.Repeat("─", 80) + "\n")
	for _, e := range m.logs {
		line := e.String()
		if line == "" {
			continue
		}
		sb.WriteString(EventStyle(e).Render(fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), line)) + "\n")
	}

	if m.cancelled {
		sb.WriteString("\n" + ErrorStyle.Render("Run cancelled by user. Completed moves are kept.") + "\n")
	}

	return sb.String()
}

// renderSummary renders the summary view
func (m Model) renderSummary() string {
	var sb strings.Builder
	r := m.report

	// ASCII header
	sb.WriteString(FormatASCIIHeader() + "\n\n")

	sb.WriteString(InfoStyle.Render("Generated: ") + ContentStyle.Render(r.Timestamp.Format("2006-01-02 15:04:05")) + "\n")
	sb.WriteString(InfoStyle.Render("Run ID: ") + ContentStyle.Render(r.RunID) + "\n")
	sb.WriteString(InfoStyle.Render("Directory: ") + ContentStyle.Render(r.Root) + "\n")
	sb.WriteString(InfoStyle.Render("Metadata: ") + ContentStyle.Render(fmt.Sprintf("%s (%d records, %d with identifier)", r.Source, r.Records, r.WithIdentifier)) + "\n\n")

	if m.runErr != nil {
		sb.WriteString(ErrorStyle.Render("Run stopped: "+m.runErr.Error()) + "\n\n")
	} else if r.Error != "" {
		sb.WriteString(ErrorStyle.Render("Run stopped: "+r.Error) + "\n\n")
	}

	sb.WriteString(TitleStyle.Render("RESULTS") + "\n")
	sb.WriteString(InfoStyle.Render("Files at start: ") + StatStyle.Render(fmt.Sprintf("%d", r.InitialFiles)) + "\n")
	sb.WriteString(InfoStyle.Render("Renamed & moved: ") + StatStyle.Render(fmt.Sprintf("%d", r.Moved())) + "\n")
	sb.WriteString(MutedStyle.Render(fmt.Sprintf("  identifier %d, title %d (%d passes), last resort %d",
		r.MovedByPhase[sorter.PhaseIdentifier.String()],
		r.MovedByPhase[sorter.PhaseTitle.String()], r.TitlePasses,
		r.MovedByPhase[sorter.PhaseLastResort.String()])) + "\n")
	sb.WriteString(InfoStyle.Render("Skipped (unmatched): ") + StatStyle.Render(fmt.Sprintf("%d", r.Skipped())) + "\n")
	sb.WriteString(InfoStyle.Render("Collisions: ") + StatStyle.Render(fmt.Sprintf("%d", len(r.Collisions))) + "\n")
	sb.WriteString(InfoStyle.Render("Failures: ") + StatStyle.Render(fmt.Sprintf("%d", len(r.Failures))) + "\n")
	sb.WriteString(InfoStyle.Render("Ignored (unknown type): ") + StatStyle.Render(fmt.Sprintf("%d", len(r.Ignored))) + "\n")
	sb.WriteString(InfoStyle.Render("Duration: ") + ContentStyle.Render(r.Duration.Round(time.Millisecond).String()) + "\n\n")

	if len(r.Moves) > 0 {
		sb.WriteString(MutedStyle.Render("First 5 moves:") + "\n")
		limit := min(5, len(r.Moves))
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("  %s %s\n",
				WarningStyle.Render(fmt.Sprintf("%d.", i+1)),
				ContentStyle.Render(r.Moves[i].File)))
			sb.WriteString(fmt.Sprintf("     %s %s\n",
				MutedStyle.Render("->"),
				SuccessStyle.Render(r.Moves[i].Destination)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderMoves renders every moved file
func (m Model) renderMoves() string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("RENAMED & MOVED") + "\n\n")

	if len(m.report.Moves) == 0 {
		sb.WriteString(MutedStyle.Render("No files were moved.") + "\n")
		return sb.String()
	}

	for i, mv := range m.report.Moves {
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			WarningStyle.Render(fmt.Sprintf("%d.", i+1)),
			MutedStyle.Render(fmt.Sprintf("[%s %.2f]", mv.MatchType, mv.Score)),
			ContentStyle.Render(mv.File)))
		sb.WriteString(fmt.Sprintf("   %s %s\n",
			MutedStyle.Render("Now:"),
			SuccessStyle.Render(mv.Destination)))
	}

	return sb.String()
}

// renderUnmatched renders files left in place and why
func (m Model) renderUnmatched() string {
	var sb strings.Builder
	r := m.report

	sb.WriteString(TitleStyle.Render("UNMATCHED FILES") + "\n\n")
	if len(r.Unmatched) == 0 {
		sb.WriteString(SuccessStyle.Render("✓ Every classified file found a match") + "\n")
	}
	for _, name := range r.Unmatched {
		sb.WriteString("  " + WarningStyle.Render(name) + "\n")
	}

	if len(r.Failures) > 0 {
		sb.WriteString("\n" + TitleStyle.Render("FAILED MOVES") + "\n\n")
		for _, p := range r.Failures {
			sb.WriteString(fmt.Sprintf("  %s -> %s\n", ContentStyle.Render(p.File), MutedStyle.Render(p.Destination)))
			sb.WriteString(fmt.Sprintf("     %s %s\n", MutedStyle.Render("Reason:"), ErrorStyle.Render(p.Reason)))
		}
	}

	if len(r.Collisions) > 0 {
		sb.WriteString("\n" + TitleStyle.Render("COLLISIONS") + "\n\n")
		for _, p := range r.Collisions {
			sb.WriteString(fmt.Sprintf("  %s -> %s %s\n",
				ContentStyle.Render(p.File),
				MutedStyle.Render(p.Destination),
				WarningStyle.Render(fmt.Sprintf("(taken, %d attempt(s))", p.Attempts))))
		}
	}

	if len(r.Ignored) > 0 {
		sb.WriteString("\n" + TitleStyle.Render("IGNORED (UNKNOWN TYPE)") + "\n\n")
		for _, name := range r.Ignored {
			sb.WriteString("  " + MutedStyle.Render(name) + "\n")
		}
	}

	return sb.String()
}

func phaseTitle(p sorter.Phase) string {
	switch p {
	case sorter.PhaseIdentifier:
		return "Phase 0: Identifier Matching"
	case sorter.PhaseTitle:
		return "Phase 1: Title Matching"
	default:
		return "Phase 2: Last Resort Matching"
	}
}

// Mode returns the active view
func (m Model) Mode() ViewMode {
	return m.mode
}

// Running reports whether the engine is still working
func (m Model) Running() bool {
	return m.running
}

// Cancelled reports whether the user stopped the run
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Moved is the number of moves seen on the live stream
func (m Model) Moved() int {
	return m.moved
}

// Report returns the report shown in the summary views
func (m Model) Report() reporter.Report {
	return m.report
}
