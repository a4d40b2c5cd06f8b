package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/exp/teatest/v2"
)

// TestModelWithTeatest verifies the board renders inside a running program.
func TestModelWithTeatest(t *testing.T) {
	f := newBoardFixture(t, seedTask{status: "todo", title: "Write launch notes"})
	m := NewModel(f.coord, f.feed, WithBoardTitle("Launch"), WithClock(f.clock.Now))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(140, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Write launch notes")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// TestModelWithTeatestKeyboardDrag verifies a grab, move, and drop through a running program.
func TestModelWithTeatestKeyboardDrag(t *testing.T) {
	f := newBoardFixture(t,
		seedTask{status: "todo", title: "Write launch notes"},
		seedTask{status: "done", title: "Kickoff"},
	)
	m := NewModel(
		f.coord,
		f.feed,
		WithBoardTitle("Launch"),
		WithClock(f.clock.Now),
		WithClipboard(func(string) error { return nil }),
	)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(140, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Write launch notes")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(keySpace)
	tm.Send(tea.KeyPressMsg{Code: 'l', Text: "l"})
	tm.Send(tea.KeyPressMsg{Code: 'l', Text: "l"})
	tm.Send(keyEnter)

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Done!")
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final, ok := tm.FinalModel(t).(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", tm.FinalModel(t))
	}
	if got := f.titles("done"); got != "Write launch notes,Kickoff" {
		t.Fatalf("done = %q, want the dropped task first", got)
	}
	if len(final.toasts) == 0 || final.toasts[len(final.toasts)-1].message != "Task moved to Done!" {
		t.Fatalf("toasts = %#v, want move toast", final.toasts)
	}
}
