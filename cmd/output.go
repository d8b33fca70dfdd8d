package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	labelStyle = lipgloss.NewStyle().
			Bold(true)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)

	// Styled output only on terminals.
	styled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)

func render(style lipgloss.Style, s string) string {
	if !styled {
		return s
	}
	return style.Render(s)
}

// stat is one labelled value of a summary.
type stat struct {
	label string
	value any
}

// printSummary prints a titled block of stats, boxed on terminals.
func printSummary(title string, stats []stat) {
	var b strings.Builder
	b.WriteString(render(titleStyle, title))
	for _, s := range stats {
		fmt.Fprintf(&b, "\n%s: %s", render(labelStyle, s.label), render(statStyle, fmt.Sprint(s.value)))
	}

	if styled {
		fmt.Println(boxStyle.Render(b.String()))
		return
	}
	fmt.Println(b.String())
}
