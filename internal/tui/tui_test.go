package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle-guess/internal/models"
	"raffle-guess/internal/orchestrator"
)

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestStageProgress(t *testing.T) {
	m := NewModel(SessionInfo{ChainID: 8453, Raffle: "0x0C80", RaffleNumber: 1, Date: "2025-03-01", Time: "14:30"})
	m = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = step(t, m, StageMsg{Event: orchestrator.Event{
		Stage:      orchestrator.StageAwaitingApproval,
		Address:    common.HexToAddress("0xbb"),
		ApprovalTx: common.HexToHash("0x1234"),
	}})

	assert.Equal(t, orchestrator.StageAwaitingApproval, m.current)
	view := m.View()
	assert.Contains(t, view, "chain 8453")
	assert.Contains(t, view, "✓ approving")
	assert.Contains(t, view, "▶ awaiting-approval")
	assert.Contains(t, view, "  entering")
	assert.Contains(t, view, "approval tx: 0x00000000")
	assert.Contains(t, view, "entry tx:    -")
}

func TestFailureOutcome(t *testing.T) {
	m := NewModel(SessionInfo{})
	m = step(t, m, StageMsg{Event: orchestrator.Event{Stage: orchestrator.StageChainChecking}})
	m = step(t, m, StageMsg{Event: orchestrator.Event{Stage: orchestrator.StageFailed, Err: errors.New("chain switch rejected")}})

	next, cmd := m.Update(OutcomeMsg{Err: errors.New("chain switch rejected")})
	require.NotNil(t, cmd)
	view := next.View()
	assert.Contains(t, view, "✗ chain-checking")
	assert.Contains(t, view, "failed: chain switch rejected")
}

func TestCompletedOutcome(t *testing.T) {
	m := NewModel(SessionInfo{})
	m = step(t, m, OutcomeMsg{Result: &orchestrator.Result{Timestamp: 1740850200, ReadableTime: "2025-03-01T17:30:00.000Z", FID: 1}})
	view := m.View()
	assert.Contains(t, view, "✓ persisting")
	assert.Contains(t, view, "completed: guess 1740850200")
	assert.NotContains(t, view, "q to quit")
}

func TestRenderGuesses(t *testing.T) {
	out := RenderGuesses(7, []models.GuessRecord{
		{Timestamp: 1740900000, ReadableTime: "2025-03-02T07:20:00.000Z", UserAddress: "0xAbC"},
		{Timestamp: 1740850200, ReadableTime: "2025-03-01T17:30:00.000Z", UserAddress: "0xAbC"},
	}, 80)
	assert.Contains(t, out, "guesses for fid 7 (2)")
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[4], "1740900000")
	assert.Contains(t, lines[5], "1740850200")

	empty := RenderGuesses(9, nil, 10)
	assert.Contains(t, empty, "no guesses yet")
}
