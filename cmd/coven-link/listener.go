// ABOUTME: Terminal listener that renders turn updates and answers agent queries
// ABOUTME: Queries are approved or rejected by policy since the CLI is not interactive

package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-link/internal/connect"
	"github.com/2389/coven-link/internal/interaction"
	"github.com/2389/coven-link/internal/wire"
)

// terminalListener writes the transcript of a turn to w.
type terminalListener struct {
	mu       sync.Mutex
	w        io.Writer
	approve  bool
	thinking bool
	text     int
	tokens   int64
}

func newTerminalListener(w io.Writer, approve bool) *terminalListener {
	return &terminalListener{w: w, approve: approve}
}

// SendUpdate implements interaction.Listener.
func (l *terminalListener) SendUpdate(_ context.Context, update wire.UpdateEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	switch e := update.(type) {
	case *wire.TextDelta:
		l.endThinking()
		l.text += len(e.Text)
		fmt.Fprint(l.w, e.Text)
	case *wire.ThinkingDelta:
		l.thinking = true
		gray.Fprint(l.w, e.Text)
	case *wire.ThinkingCompleted:
		l.endThinking()
	case *wire.ToolCallStarted:
		l.endThinking()
		yellow.Fprintf(l.w, "\n  ⚙ tool call %s\n", e.CallID)
	case *wire.ToolCallCompleted:
		green.Fprintf(l.w, "  ✓ tool call %s\n", e.CallID)
	case *wire.Summary:
		gray.Fprintf(l.w, "\n  summary: %s\n", e.Summary)
	case *wire.TokenDelta:
		l.tokens += e.Tokens
	case *wire.TurnEnded:
		l.endThinking()
		fmt.Fprintln(l.w)
		gray.Fprintf(l.w, "  turn ended (%d tokens)\n", l.tokens)
	}
	return nil
}

func (l *terminalListener) endThinking() {
	if l.thinking {
		fmt.Fprintln(l.w)
		l.thinking = false
	}
}

// Query implements interaction.Listener.
func (l *terminalListener) Query(_ context.Context, q interaction.Query) (interaction.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch q.Kind {
	case interaction.KindAskQuestion, interaction.KindCreatePlan:
		color.New(color.FgYellow).Fprintf(l.w, "\n  ? %s declined: no interactive session\n", q.Kind)
		return interaction.Reject("no interactive session"), nil
	}
	if l.approve {
		color.New(color.FgGreen).Fprintf(l.w, "\n  ✓ approved %s\n", q.Kind)
		return interaction.Approve(), nil
	}
	color.New(color.FgYellow).Fprintf(l.w, "\n  ✗ rejected %s (use --approve to allow)\n", q.Kind)
	return interaction.Reject("rejected by client policy"), nil
}

// connectionState prints reconnects so a stalled turn is visible.
func (l *terminalListener) connectionState(state connect.ConnectionState) {
	if state != connect.StateReconnecting {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	color.New(color.FgYellow).Fprintln(l.w, "\n  ↻ connection lost, reconnecting...")
}
