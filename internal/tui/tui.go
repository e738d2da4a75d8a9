// Package tui renders submission progress and guess lists in the terminal.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mattn/go-runewidth"

	"raffle-guess/internal/orchestrator"
)

const minWidth = 40

var (
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

// truncate cuts s to width display cells, marking the cut with "...".
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(truncate(text, width-2), width-2) + "│"
}

func shortHash(h common.Hash) string {
	if h == (common.Hash{}) {
		return "-"
	}
	s := h.Hex()
	return s[:10] + "..." + s[len(s)-6:]
}

// SessionInfo is the fixed context shown above the stage list.
type SessionInfo struct {
	ChainID      uint64
	Raffle       string
	RaffleNumber int64
	Date         string
	Time         string
}

// StageMsg carries one orchestrator transition.
type StageMsg struct {
	Event orchestrator.Event
}

// OutcomeMsg ends the program.
type OutcomeMsg struct {
	Result *orchestrator.Result
	Err    error
}

// Model holds the TUI state
type Model struct {
	info    SessionInfo
	current orchestrator.Stage
	failed  bool
	last    orchestrator.Event
	result  *orchestrator.Result
	err     error
	done    bool
	width   int
}

func NewModel(info SessionInfo) Model {
	return Model{info: info, current: orchestrator.StageIdle, width: 72}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StageMsg:
		ev := msg.Event
		if ev.Stage == orchestrator.StageFailed {
			m.failed = true
			m.err = ev.Err
		} else {
			m.current = ev.Stage
		}
		m.last = ev
		return m, nil

	case OutcomeMsg:
		m.result = msg.Result
		if msg.Err != nil {
			m.err = msg.Err
			m.failed = true
		} else if msg.Result != nil {
			m.current = orchestrator.StageCompleted
		}
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	width := m.width
	if width < minWidth {
		width = minWidth
	}

	lines := []string{
		fmt.Sprintf("raffle %s #%d on chain %d", m.info.Raffle, m.info.RaffleNumber, m.info.ChainID),
		fmt.Sprintf("guess: %s %s (UTC-3)", m.info.Date, m.info.Time),
	}
	if m.last.Address != (common.Address{}) {
		lines = append(lines, "wallet: "+m.last.Address.Hex())
	}

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", width-2) + "┐\n")
	for _, l := range lines {
		b.WriteString(formatInfoLine(l, width) + "\n")
	}
	b.WriteString(separatorLine(width) + "\n")

	for _, st := range orchestrator.Progress() {
		b.WriteString(m.stageLine(st, width) + "\n")
	}

	b.WriteString(separatorLine(width) + "\n")
	b.WriteString(formatInfoLine("approval tx: "+shortHash(m.last.ApprovalTx), width) + "\n")
	b.WriteString(formatInfoLine("entry tx:    "+shortHash(m.last.EntryTx), width) + "\n")
	if m.done || m.failed {
		b.WriteString(separatorLine(width) + "\n")
		b.WriteString(m.outcomeLine(width) + "\n")
	}
	b.WriteString("└" + strings.Repeat("─", width-2) + "┘")
	if !m.done {
		b.WriteString("\n" + dimStyle.Render("q to quit"))
	}
	return b.String()
}

func (m Model) stageLine(st orchestrator.Stage, width int) string {
	var marker string
	style := dimStyle
	switch {
	case m.failed && st == m.current:
		marker, style = "✗", failedStyle
	case m.current == orchestrator.StageCompleted || st < m.current:
		marker, style = "✓", doneStyle
	case st == m.current:
		marker, style = "▶", currentStyle
	default:
		marker = " "
	}
	text := padToWidth(truncate(fmt.Sprintf(" %s %s", marker, st), width-2), width-2)
	return "│" + style.Render(text) + "│"
}

func (m Model) outcomeLine(width int) string {
	if m.failed {
		msg := "failed"
		if m.err != nil {
			msg = "failed: " + m.err.Error()
		}
		return "│" + failedStyle.Render(padToWidth(truncate(msg, width-2), width-2)) + "│"
	}
	msg := "completed"
	if m.result != nil {
		msg = fmt.Sprintf("completed: guess %d (%s) fid %d", m.result.Timestamp, m.result.ReadableTime, m.result.FID)
	}
	return "│" + doneStyle.Render(padToWidth(truncate(msg, width-2), width-2)) + "│"
}

// Run starts the TUI program. It returns after an OutcomeMsg is received,
// updateCh closes, or the user quits.
func Run(info SessionInfo, updateCh <-chan interface{}) (Model, error) {
	p := tea.NewProgram(NewModel(info))

	go func() {
		for data := range updateCh {
			switch v := data.(type) {
			case orchestrator.Event:
				p.Send(StageMsg{Event: v})
			case OutcomeMsg:
				p.Send(v)
			}
		}
		p.Quit()
	}()

	final, err := p.Run()
	if err != nil {
		return Model{}, err
	}
	m, _ := final.(Model)
	return m, nil
}
