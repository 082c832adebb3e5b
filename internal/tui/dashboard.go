package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/livequery"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
)

const recentLimit = 5

type dashboardModel struct {
	app    *app.App
	timer  timerModel
	width  int
	height int

	agg        *store.Cache
	today      []categoryTotal
	activities []store.Activity
	recent     *livequery.Query[store.Record]
	records    []store.Record

	// Activity picker state
	picking      bool
	pickerCursor int

	formActive bool
	form       *huh.Form
	formMemo   *string
}

func newRecentQuery(a *app.App) *livequery.Query[store.Record] {
	return livequery.New(
		func(ctx context.Context) ([]store.Record, error) {
			return a.Repos.Records.List(ctx, store.RecordFilter{Limit: recentLimit})
		},
		func(r store.Record) string { return r.ID },
		func(x, y store.Record) bool {
			return x.AID == y.AID && x.Duration == y.Duration && x.Memo == y.Memo && x.Start().Equal(y.Start())
		},
		store.Records,
	)
}

// newDashboardModel takes the recent-records query already refreshed; later
// updates arrive as recentChangedMsg.
func newDashboardModel(a *app.App, recent *livequery.Query[store.Record]) dashboardModel {
	memo := ""
	return dashboardModel{
		app:      a,
		timer:    newTimerModel(a),
		recent:   recent,
		records:  recent.Items(),
		formMemo: &memo,
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return tea.Batch(d.loadData(), d.timer.refresh())
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) isPaused() bool  { return d.timer.paused() }
func (d dashboardModel) elapsed() time.Duration {
	return d.timer.currentElapsed()
}

type dashboardDataMsg struct {
	agg        *store.Cache
	today      []categoryTotal
	activities []store.Activity
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		agg, err := d.app.Cache.Get(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		day := d.app.Calendar().Day(d.app.Now())
		todays, err := d.app.Repos.Records.List(ctx, store.RecordFilter{From: &day.Start, To: &day.End})
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		acts, err := d.app.Repos.Activities.List(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		return dashboardDataMsg{
			agg:        agg,
			today:      summarize(todays, agg, day),
			activities: acts,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.agg = msg.agg
		d.today = msg.today
		d.activities = msg.activities
		return d, nil

	case recentChangedMsg:
		if msg.err != nil {
			return d, errStatus("Recent records", msg.err)
		}
		d.records = livequery.Apply(d.records, msg.changes)
		return d, nil

	case snapshotMsg:
		d.timer.snap = msg.snap
		return d, nil

	case tickMsg:
		return d, d.timer.tick()
	}

	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if len(d.activities) == 0 {
				return d, errStatus("Start", fmt.Errorf("no activities yet, press 2 to create one"))
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Finish):
			return d, d.timer.finish()

		case key.Matches(msg, keys.Pause):
			return d, d.timer.toggle()

		case key.Matches(msg, keys.Reset):
			return d, d.timer.reset()

		case key.Matches(msg, keys.Memo):
			if d.timer.running() {
				return d.showMemoForm()
			}
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.activities)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		if d.pickerCursor >= len(d.activities) {
			d.picking = false
			return d, nil
		}
		a := d.activities[d.pickerCursor]
		d.picking = false
		return d, d.timer.start(a.ID)
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) showMemoForm() (dashboardModel, tea.Cmd) {
	*d.formMemo = d.timer.snap.Memo
	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Memo").CharLimit(repo.MaxMemoLength).Value(d.formMemo),
		),
	).WithShowHelp(true).WithShowErrors(true)
	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			d.formActive = false
			d.form = nil
			return d, nil
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}
	if d.form.State == huh.StateCompleted {
		d.formActive = false
		return d, d.timer.setMemo(*d.formMemo)
	}
	return d, cmd
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.formActive && d.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Memo"), "", d.form.View())
		return activePanelStyle.Width(contentWidth).Render(content)
	}

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderActivityPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	snap := d.timer.snap
	if snap.State == ongoing.Idle {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("00:00:00"),
			mutedStyle.Render("■  IDLE"),
			mutedStyle.Render("Press s to start tracking"),
		)
		return panelStyle.Width(w).Render(content)
	}

	timeStr := formatDuration(snap.Elapsed)
	var timeDisplay, indicator string
	if snap.State == ongoing.Paused {
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		left := snap.MaxPause - snap.Paused
		if left < 0 {
			left = 0
		}
		indicator = warningStyle.Render(fmt.Sprintf("⏸  PAUSED %s  (finishes in %s)", formatDuration(snap.Paused), formatDuration(left)))
	} else {
		timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  RUNNING")
	}

	activityLine := colorDot(snap.CategoryColor) + " " + highlightStyle.Render(snap.ActivityName) +
		mutedStyle.Render(" / "+snap.CategoryName)
	lines := []string{timeDisplay, indicator, activityLine}
	if snap.Memo != "" {
		lines = append(lines, mutedStyle.Render(snap.Memo))
	}
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	header := fmt.Sprintf("%s  %s", title, highlightStyle.Render(formatDuration(total(d.today))))

	if len(d.today) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No records today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, t := range d.today {
		rows = append(rows, fmt.Sprintf("  %s %-20s %s  (%d records)",
			colorDot(t.Color), t.Label, formatDuration(t.Duration), t.Records))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Records")
	if len(d.records) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No records yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, r := range d.records {
		name, _, color := ongoing.Names(d.agg, r.AID)
		row := fmt.Sprintf("  %s %s  %-16s %s", colorDot(color), r.Start().Local().Format("01/02 15:04"), name, formatMillis(r.Duration))
		if n := len(r.Interval.Spans()); n > 1 {
			row += mutedStyle.Render(fmt.Sprintf("  %d frames", n))
		}
		if r.Memo != "" {
			row += mutedStyle.Render("  " + r.Memo)
		}
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderActivityPicker(w int) string {
	title := titleStyle.Render("Select Activity")

	var rows []string
	rows = append(rows, title)
	for i, a := range d.activities {
		_, category, color := ongoing.Names(d.agg, a.ID)
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s", cursor, colorDot(color), a.Label))+mutedStyle.Render("  "+category))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
