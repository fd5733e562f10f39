package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

const confirmQuestion = "This will permanently rename and move files. Are you sure you want to continue?"

// ConfirmModel asks the yes/no question before any file is touched
type ConfirmModel struct {
	req      sorter.ConfirmRequest
	yes      bool // highlighted choice, defaults to No
	answered bool
	width    int
}

// NewConfirmModel creates the confirmation screen for req
func NewConfirmModel(req sorter.ConfirmRequest) ConfirmModel {
	return ConfirmModel{req: req}
}

// Init initializes the prompt
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.yes = true
			m.answered = true
			return m, tea.Quit

		case "n", "N", "q", "esc", "ctrl+c":
			m.yes = false
			m.answered = true
			return m, tea.Quit

		case "left", "right", "tab", "h", "l":
			m.yes = !m.yes
			return m, nil

		case "enter":
			m.answered = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}

	return m, nil
}

// View renders the prompt
func (m ConfirmModel) View() string {
	if m.answered {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(FormatASCIIHeader() + "\n\n")
	sb.WriteString(InfoStyle.Render("Directory: ") + ContentStyle.Render(m.req.Root) + "\n")
	sb.WriteString(InfoStyle.Render("Metadata: ") + ContentStyle.Render(m.req.Source) + "\n")
	sb.WriteString(InfoStyle.Render("Records: ") + StatStyle.Render(fmt.Sprintf("%d", m.req.Records)) + "\n")
	sb.WriteString(InfoStyle.Render("Files to consider: ") + StatStyle.Render(fmt.Sprintf("%d", m.req.Candidates)) + "\n\n")
	sb.WriteString(WarningStyle.Render(confirmQuestion) + "\n\n")

	yes, no := MutedStyle.Render(" Yes "), MutedStyle.Render(" No ")
	if m.yes {
		yes = HighlightStyle.Render(" Yes ")
	} else {
		no = HighlightStyle.Render(" No ")
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, yes, "  ", no) + "\n\n")
	sb.WriteString(FormatFooter(
		FormatKeybinding("Y/N", "Answer"),
		FormatKeybinding("←→", "Select"),
		FormatKeybinding("Enter", "Confirm"),
	))

	return BorderStyle.Render(sb.String())
}

// Confirmed reports whether the user answered yes
func (m ConfirmModel) Confirmed() bool {
	return m.answered && m.yes
}

// Answered reports whether a choice was made
func (m ConfirmModel) Answered() bool {
	return m.answered
}

// ConfirmGate is a sorter.Gate that shows a bubbletea yes/no screen.
// Done is closed once the prompt has been answered so the caller can hand
// the terminal over to the run view.
type ConfirmGate struct {
	Input  io.Reader // defaults to the terminal
	Output io.Writer

	once      sync.Once
	done      chan struct{}
	mu        sync.Mutex
	confirmed bool
}

// NewConfirmGate creates a gate that reads from the terminal
func NewConfirmGate() *ConfirmGate {
	return &ConfirmGate{done: make(chan struct{})}
}

// Confirm implements sorter.Gate.
func (g *ConfirmGate) Confirm(ctx context.Context, req sorter.ConfirmRequest) (bool, error) {
	defer g.finish()

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if g.Input != nil {
		opts = append(opts, tea.WithInput(g.Input))
	}
	if g.Output != nil {
		opts = append(opts, tea.WithOutput(g.Output))
	}

	final, err := tea.NewProgram(NewConfirmModel(req), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}

	m, ok := final.(ConfirmModel)
	if !ok {
		return false, errors.New("confirmation prompt returned an unexpected model")
	}

	g.mu.Lock()
	g.confirmed = m.Confirmed()
	g.mu.Unlock()
	return m.Confirmed(), nil
}

func (g *ConfirmGate) finish() {
	g.once.Do(func() {
		if g.done != nil {
			close(g.done)
		}
	})
}

// Done is closed after Confirm returned. It never closes when the run fails
// before asking.
func (g *ConfirmGate) Done() <-chan struct{} {
	return g.done
}

// Confirmed reports the answer given to the last prompt
func (g *ConfirmGate) Confirmed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmed
}

// PromptGate is a sorter.Gate for plain terminals and pipes. It prints the
// run details and reads "yes" or "no" from In.
type PromptGate struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements sorter.Gate. End of input counts as no.
func (g PromptGate) Confirm(ctx context.Context, req sorter.ConfirmRequest) (bool, error) {
	fmt.Fprintln(g.Out, FormatStatusInfo(fmt.Sprintf("Directory: %s", req.Root)))
	fmt.Fprintln(g.Out, FormatStatusInfo(fmt.Sprintf("Metadata: %s (%d records)", req.Source, req.Records)))
	fmt.Fprintln(g.Out, FormatStatusInfo(fmt.Sprintf("Files to consider: %d", req.Candidates)))
	fmt.Fprintln(g.Out, FormatStatusWarn(confirmQuestion))

	type answer struct {
		yes bool
		err error
	}
	result := make(chan answer, 1)

	go func() {
		reader := bufio.NewReader(g.In)
		for {
			fmt.Fprint(g.Out, "Proceed? (yes/no): ")
			line, err := reader.ReadString('\n')
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				result <- answer{yes: true}
				return
			case "n", "no":
				result <- answer{}
				return
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(g.Out)
					result <- answer{}
					return
				}
				result <- answer{err: fmt.Errorf("failed to read answer: %w", err)}
				return
			}
			fmt.Fprintln(g.Out, "Please answer yes or no.")
		}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-result:
		return a.yes, a.err
	}
}
