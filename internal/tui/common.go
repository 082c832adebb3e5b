package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/sumtimer/internal/livequery"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewCategories
	viewReports
	viewFocus
)

var viewNames = []string{"Dashboard", "Categories", "Reports", "Focus"}

// --- Messages ---

type snapshotMsg struct {
	snap ongoing.Snapshot
}

type recordFinishedMsg struct {
	record *store.Record
	auto   bool
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// storeEventMsg reports a committed batch.
type storeEventMsg struct {
	event store.Event
}

type recentChangedMsg struct {
	changes []livequery.Change[store.Record]
	err     error
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatMillis(ms int64) string {
	return formatDuration(time.Duration(ms) * time.Millisecond)
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.1fh", d.Hours())
}

func errStatus(action string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s: %v", action, err), isError: true}
	}
}
