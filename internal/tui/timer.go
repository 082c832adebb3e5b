package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/ongoing"
)

// timerModel mirrors the live session for display. Every write goes
// through the app's ongoing.Timer in a command; the snapshot is refreshed
// from the store afterwards.
type timerModel struct {
	app  *app.App
	snap ongoing.Snapshot
}

func newTimerModel(a *app.App) timerModel {
	return timerModel{app: a}
}

func (t timerModel) load() tea.Msg {
	snap, err := t.app.Snapshot(context.Background())
	if err != nil {
		return statusMsg{text: "Error: " + err.Error(), isError: true}
	}
	return snapshotMsg{snap: snap}
}

func (t timerModel) refresh() tea.Cmd { return t.load }

// then runs op and reloads the snapshot, or reports op's error.
func (t timerModel) then(action string, op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := op(context.Background()); err != nil {
			return errStatus(action, err)()
		}
		return t.load()
	}
}

func (t timerModel) start(aid string) tea.Cmd {
	return t.then("Start", func(ctx context.Context) error { return t.app.Timer.Start(ctx, aid) })
}

func (t timerModel) toggle() tea.Cmd {
	switch t.snap.State {
	case ongoing.Running:
		return t.then("Pause", t.app.Timer.Pause)
	case ongoing.Paused:
		return t.then("Resume", t.app.Timer.Resume)
	}
	return nil
}

func (t timerModel) reset() tea.Cmd {
	if t.snap.State == ongoing.Idle {
		return nil
	}
	return t.then("Reset", t.app.Timer.Reset)
}

func (t timerModel) setMemo(memo string) tea.Cmd {
	return t.then("Memo", func(ctx context.Context) error { return t.app.Timer.UpdateMemo(ctx, memo) })
}

func (t timerModel) finish() tea.Cmd {
	if t.snap.State == ongoing.Idle {
		return nil
	}
	return func() tea.Msg {
		rec, err := t.app.Timer.Finish(context.Background())
		if err != nil {
			return errStatus("Finish", err)()
		}
		return recordFinishedMsg{record: rec}
	}
}

// tick lets the timer auto-finish a stale pause, then reloads.
func (t timerModel) tick() tea.Cmd {
	return func() tea.Msg {
		finished, err := t.app.Timer.Tick(context.Background())
		if err != nil {
			return errStatus("Tick", err)()
		}
		if finished {
			return recordFinishedMsg{auto: true}
		}
		return t.load()
	}
}

func (t timerModel) running() bool { return t.snap.State != ongoing.Idle }
func (t timerModel) paused() bool  { return t.snap.State == ongoing.Paused }

func (t timerModel) currentElapsed() time.Duration {
	return t.snap.Elapsed
}
