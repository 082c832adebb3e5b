package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/store"
	"github.com/sadopc/sumtimer/internal/timeutil"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	app    *app.App
	width  int
	height int

	mode   reportMode
	offset int // weeks or 7-day blocks back from today (0 = current)

	days   []timeutil.Span
	perDay [][]categoryTotal
	totals []categoryTotal

	chart barchart.Model
}

func newReportsModel(a *app.App) reportsModel {
	return reportsModel{
		app:   a,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	days   []timeutil.Span
	perDay [][]categoryTotal
	totals []categoryTotal
}

// dayRange returns the seven logical days on screen. Daily mode ends with
// today; weekly mode is the calendar week.
func (r reportsModel) dayRange() []timeutil.Span {
	cal := r.app.Calendar()
	now := r.app.Now()
	if r.mode == reportWeekly {
		return cal.Days(now.AddDate(0, 0, -7*r.offset))
	}
	last := cal.StartOfDay(now).AddDate(0, 0, -7*r.offset)
	days := make([]timeutil.Span, 7)
	for i := range days {
		s := last.AddDate(0, 0, i-6)
		days[i] = timeutil.Span{Start: s, End: s.AddDate(0, 0, 1)}
	}
	return days
}

func (r reportsModel) refresh() tea.Cmd {
	days := r.dayRange()
	return func() tea.Msg {
		ctx := context.Background()
		window := timeutil.Span{Start: days[0].Start, End: days[len(days)-1].End}
		recs, err := r.app.Repos.Records.List(ctx, store.RecordFilter{From: &window.Start, To: &window.End})
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		agg, err := r.app.Cache.Get(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		perDay := make([][]categoryTotal, len(days))
		for i, d := range days {
			perDay[i] = summarize(recs, agg, d)
		}
		return reportsDataMsg{days: days, perDay: perDay, totals: summarize(recs, agg, window)}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.days = msg.days
		r.perDay = msg.perDay
		r.totals = msg.totals
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Mode):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for i, d := range r.days {
		var values []barchart.BarValue
		for _, t := range r.perDay[i] {
			values = append(values, barchart.BarValue{
				Name:  t.Label,
				Value: t.Duration.Hours(),
				Style: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}
		bars = append(bars, barchart.BarData{
			Label:  d.Start.Format("Mon 02"),
			Values: values,
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	dailyTab := inactiveTabStyle.Render("Daily")
	weeklyTab := inactiveTabStyle.Render("Weekly")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("Daily")
	} else {
		weeklyTab = activeTabStyle.Render("Weekly")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	var dateLabel string
	if len(r.days) > 0 {
		dateLabel = mutedStyle.Render(fmt.Sprintf("%s to %s",
			r.days[0].Start.Format("Jan 02"), r.days[len(r.days)-1].Start.Format("Jan 02, 2006")))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	nav := mutedStyle.Render("  ←/→: navigate  v: daily/weekly")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderLegend(), "", r.renderSummaryTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderSummaryTable(w int) string {
	if len(r.totals) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	sum := total(r.totals)
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-22s %10s %8s %7s", "Category", "Duration", "Records", "Share")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 50))))

	for _, t := range r.totals {
		share := 0.0
		if sum > 0 {
			share = 100 * float64(t.Duration) / float64(sum)
		}
		rows = append(rows, fmt.Sprintf("  %s %-20s %10s %8d %6.1f%%",
			colorDot(t.Color), t.Label, formatDuration(t.Duration), t.Records, share,
		))
	}
	rows = append(rows, fmt.Sprintf("  %-22s %10s", "Total", formatHours(sum)))

	return strings.Join(rows, "\n")
}

func (r reportsModel) renderLegend() string {
	var items []string
	for _, t := range r.totals {
		items = append(items, fmt.Sprintf("%s %s", colorDot(t.Color), t.Label))
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
