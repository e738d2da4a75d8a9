package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"raffle-guess/internal/models"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// RenderGuesses draws list as a boxed table, newest first as given.
func RenderGuesses(fid int64, list []models.GuessRecord, width int) string {
	if width < minWidth {
		width = minWidth
	}
	inner := width - 2

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", inner) + "┐\n")
	b.WriteString(formatInfoLine(fmt.Sprintf("guesses for fid %d (%d)", fid, len(list)), width) + "\n")
	b.WriteString(separatorLine(width) + "\n")
	if len(list) == 0 {
		b.WriteString(formatInfoLine("no guesses yet", width) + "\n")
		b.WriteString("└" + strings.Repeat("─", inner) + "┘")
		return b.String()
	}

	cols := []int{12, 26, inner - 12 - 26 - 2}
	if cols[2] < 8 {
		cols[2] = 8
	}
	row := func(cells ...string) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = padToWidth(truncate(c, cols[i]), cols[i])
		}
		line := strings.Join(out, " ")
		if w := runewidth.StringWidth(line); w < inner {
			line += strings.Repeat(" ", inner-w)
		}
		return "│" + runewidth.Truncate(line, inner, "") + "│"
	}

	b.WriteString(headerStyle.Render(row("timestamp", "readable time (UTC)", "address")) + "\n")
	for _, g := range list {
		b.WriteString(row(fmt.Sprint(g.Timestamp), g.ReadableTime, g.UserAddress) + "\n")
	}
	b.WriteString("└" + strings.Repeat("─", inner) + "┘")
	return b.String()
}
