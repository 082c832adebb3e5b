package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/livequery"
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/portable"
	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

var exportFormats = []string{"JSON", "CSV"}

// App is the root Bubble Tea model.
type App struct {
	app    *app.App
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	exportDir     string

	dashboard  dashboardModel
	categories categoriesModel
	reports    reportsModel
	focus      focusModel

	help        help.Model
	status      string
	statusError bool
}

// NewApp builds the root model. The recent-records query is loaded before
// the first frame.
func NewApp(ctx context.Context, a *app.App) (App, error) {
	h := help.New()
	h.ShowAll = false

	recent := newRecentQuery(a)
	if _, err := recent.Refresh(ctx); err != nil {
		return App{}, fmt.Errorf("load recent records: %w", err)
	}

	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}

	return App{
		app:        a,
		activeView: viewDashboard,
		exportDir:  dir,
		dashboard:  newDashboardModel(a, recent),
		categories: newCategoriesModel(a),
		reports:    newReportsModel(a),
		focus:      newFocusModel(a),
		help:       h,
	}, nil
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.categories.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.focus.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form or picker), delegate first.
		if a.isCapturing() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewCategories
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewFocus
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		// Ticks always reach the dashboard timer, whatever view is active.
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		cmds = append(cmds, cmd)
		return a, tea.Batch(cmds...)

	case snapshotMsg, dashboardDataMsg, recentChangedMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case storeEventMsg:
		return a, a.onStoreEvent(msg.event)

	case statusMsg:
		a.status = msg.text
		a.statusError = msg.isError
		return a, nil

	case recordFinishedMsg:
		a.status = "Record saved"
		if msg.auto {
			a.status = "Paused too long; record saved"
		} else if msg.record == nil {
			a.status = "Nothing to finish"
		}
		a.statusError = false
		return a, tea.Batch(a.dashboard.timer.refresh(), a.dashboard.loadData())

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusError = false
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

// onStoreEvent reloads whatever the committed batch may have changed.
func (a App) onStoreEvent(e store.Event) tea.Cmd {
	var cmds []tea.Cmd
	if e.Has(store.Ongoings) || e.Has(store.Caches) {
		cmds = append(cmds, a.dashboard.timer.refresh())
	}
	if e.Has(store.Records) || e.Has(store.Caches) || e.Has(store.Activities) || e.Has(store.Categories) {
		cmds = append(cmds, a.dashboard.loadData())
		switch a.activeView {
		case viewCategories:
			cmds = append(cmds, a.categories.refresh())
		case viewReports:
			cmds = append(cmds, a.reports.refresh())
		}
	}
	if a.activeView == viewFocus && (e.Has(store.Settings) || e.Has(store.Categories) || e.Has(store.Ongoings)) {
		cmds = append(cmds, a.focus.refresh())
	}
	return tea.Batch(cmds...)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewCategories:
		a.categories, cmd = a.categories.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewFocus:
		a.focus, cmd = a.focus.update(msg)
	}
	return a, cmd
}

func (a App) isCapturing() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive || a.dashboard.picking
	case viewCategories:
		return a.categories.formActive
	case viewFocus:
		return a.focus.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewCategories:
		return a.categories.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewFocus:
		return a.focus.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewCategories:
		content = a.categories.view()
	case viewReports:
		content = a.reports.view()
	case viewFocus:
		content = a.focus.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("sumtimer")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	timerInfo := ""
	if a.dashboard.isRunning() {
		elapsed := a.dashboard.elapsed()
		timerInfo = successStyle.Render(" ● " + formatDuration(elapsed))
		if a.dashboard.isPaused() {
			timerInfo = warningStyle.Render(" ⏸ " + formatDuration(elapsed))
		}
		if a.app.Focus.InFocus() {
			timerInfo = accentStyle.Render(" focus") + timerInfo
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		d, err := portable.Export(context.Background(), a.app.Repos)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}

		dateStr := a.app.Now().Format("2006-01-02")
		ext := "json"
		if format == 1 {
			ext = "csv"
		}
		path := filepath.Join(a.exportDir, fmt.Sprintf("sumtimer-export-%s.%s", dateStr, ext))

		f, err := os.Create(path)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		defer f.Close()

		if format == 1 {
			err = portable.WriteCSV(f, d, a.app.Calendar().Location)
		} else {
			err = portable.Write(f, d)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("%s error: %v", exportFormats[format], err), isError: true}
		}
		if err := f.Close(); err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}

// Run drives the terminal UI until the user quits or ctx ends. Batches
// committed through a.Store reach the model as messages.
func Run(ctx context.Context, a *app.App) error {
	m, err := NewApp(ctx, a)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Subscribers run after commit on the writer's goroutine, never the
	// event loop, so a blocking Send keeps events in commit order.
	stopRecent := m.dashboard.recent.Watch(ctx, a.Store, func(changes []livequery.Change[store.Record], err error) {
		p.Send(recentChangedMsg{changes: changes, err: err})
	})
	defer stopRecent()
	stopEvents := a.Store.Subscribe(func(e store.Event) {
		p.Send(storeEventMsg{event: e})
	})
	defer stopEvents()

	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("run tui: %w", err)
	}
	if snap, err := a.Snapshot(context.Background()); err == nil && snap.State != ongoing.Idle {
		a.Log.Info("leaving timer running", zap.String("activity", snap.ActivityName), zap.String("state", snap.State.String()))
	}
	return nil
}
