package ui

import "github.com/charmbracelet/lipgloss"

// ASCII art for the smartsorter header, kept as one string so spacing survives
const smartsorterASCII = `                                    ██                                 ██
 █████ ██████████  █████  ██████ ██████   █████  █████  ██████ ██████ ██████ ██████
██     ██  ██  ██     ██  ██       ██    ██     ██   ██ ██       ██   ██  ██ ██
 ████  ██  ██  ██  █████  ██       ██     ████  ██   ██ ██       ██   ██████ ██
    ██ ██  ██  ██ ██  ██  ██       ██        ██ ██   ██ ██       ██   ██     ██
█████  ██  ██  ██  ██████ ██       ████  █████   █████  ██       ████  █████ ██`

// FormatASCIIHeader renders the smartsorter ASCII header with RAMA theme
func FormatASCIIHeader() string {
	headerStyle := lipgloss.NewStyle().
		Foreground(RAMARed).
		Bold(true)

	return headerStyle.Render(smartsorterASCII)
}

// FormatASCIIHeaderWithSubtext renders header with subtitle
func FormatASCIIHeaderWithSubtext(subtext string) string {
	header := FormatASCIIHeader()

	subtitle := lipgloss.NewStyle().
		Foreground(RAMAMuted).
		Render(subtext)

	return header + "\n\n" + subtitle
}
