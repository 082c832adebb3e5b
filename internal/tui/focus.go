package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/focus"
	"github.com/sadopc/sumtimer/internal/store"
)

type focusModel struct {
	app    *app.App
	width  int
	height int

	rules      focus.Rules
	categories []store.Category
	inFocus    bool

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	enabled    *bool
	cids       *[]string
	urls       *string
	titles     *string
	redirectTo *string
}

func newFocusModel(a *app.App) focusModel {
	enabled, cids, urls, titles, redirect := false, []string{}, "", "", ""
	return focusModel{
		app:        a,
		enabled:    &enabled,
		cids:       &cids,
		urls:       &urls,
		titles:     &titles,
		redirectTo: &redirect,
	}
}

func (f *focusModel) setSize(w, h int) {
	f.width = w
	f.height = h
}

type focusDataMsg struct {
	rules      focus.Rules
	categories []store.Category
	inFocus    bool
}

func (f focusModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		rules, err := focus.LoadRules(ctx, f.app.Store, f.app.Log)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		cats, err := f.app.Repos.Categories.List(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		return focusDataMsg{rules: rules, categories: cats, inFocus: f.app.Focus.InFocus()}
	}
}

func (f focusModel) update(msg tea.Msg) (focusModel, tea.Cmd) {
	if f.formActive && f.form != nil {
		return f.updateForm(msg)
	}

	switch msg := msg.(type) {
	case focusDataMsg:
		f.rules = msg.rules
		f.categories = msg.categories
		f.inFocus = msg.inFocus
		return f, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return f.showForm()
		}
	}
	return f, nil
}

func (f focusModel) showForm() (focusModel, tea.Cmd) {
	*f.enabled = f.rules.Enabled
	*f.cids = append([]string{}, f.rules.Categories...)
	*f.urls = strings.Join(f.rules.URLPatterns, "\n")
	*f.titles = strings.Join(f.rules.TitlePatterns, "\n")
	*f.redirectTo = f.rules.RedirectURL

	opts := make([]huh.Option[string], len(f.categories))
	for i, c := range f.categories {
		opts[i] = huh.NewOption(c.Label, c.ID)
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title("Focus mode").Affirmative("On").Negative("Off").Value(f.enabled),
			huh.NewMultiSelect[string]().Title("Focus categories").Options(opts...).Value(f.cids),
		).Title("Focus"),
		huh.NewGroup(
			huh.NewText().Title("Blocked URL patterns (one per line)").Value(f.urls).Validate(validPatterns),
			huh.NewText().Title("Blocked title patterns (one per line)").Value(f.titles).Validate(validPatterns),
			huh.NewInput().Title("Redirect to").Placeholder(focus.DefaultRedirectURL).Value(f.redirectTo),
		).Title("Blocking"),
	).WithShowHelp(true).WithShowErrors(true)

	f.formActive = true
	return f, f.form.Init()
}

func validPatterns(s string) error {
	return focus.Rules{URLPatterns: splitLines(s)}.Validate()
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (f focusModel) updateForm(msg tea.Msg) (focusModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			f.formActive = false
			f.form = nil
			return f, nil
		}
	}

	form, cmd := f.form.Update(msg)
	if fm, ok := form.(*huh.Form); ok {
		f.form = fm
	}

	if f.form.State == huh.StateCompleted {
		f.formActive = false
		return f, f.save(focus.Rules{
			Enabled:       *f.enabled,
			Categories:    append([]string{}, *f.cids...),
			URLPatterns:   splitLines(*f.urls),
			TitlePatterns: splitLines(*f.titles),
			RedirectURL:   strings.TrimSpace(*f.redirectTo),
		})
	}

	return f, cmd
}

func (f focusModel) save(r focus.Rules) tea.Cmd {
	s := f.app.Store
	return func() tea.Msg {
		if err := focus.SaveRules(context.Background(), s, r); err != nil {
			return statusMsg{text: "Save: " + err.Error(), isError: true}
		}
		return statusMsg{text: "Focus rules saved"}
	}
}

func (f focusModel) view() string {
	w := f.width - 4

	if f.formActive && f.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Focus Mode"), "", f.form.View()),
		)
	}

	state := mutedStyle.Render("off")
	if f.rules.Enabled {
		state = highlightStyle.Render("armed")
	}
	if f.inFocus {
		state = successStyle.Render("● in focus")
	}

	names := make(map[string]store.Category, len(f.categories))
	for _, c := range f.categories {
		names[c.ID] = c
	}
	var cats []string
	for _, id := range f.rules.Categories {
		if c, ok := names[id]; ok {
			cats = append(cats, colorDot(c.Color)+" "+c.Label)
		}
	}

	redirect := f.rules.RedirectURL
	if redirect == "" {
		redirect = focus.DefaultRedirectURL
	}

	rows := []string{titleStyle.Render("Focus Mode"), ""}
	rows = append(rows, settingRow("State", state))
	rows = append(rows, settingRow("Categories", orNone(strings.Join(cats, "  "))))
	rows = append(rows, settingRow("URL patterns", orNone(strings.Join(f.rules.URLPatterns, ", "))))
	rows = append(rows, settingRow("Title patterns", orNone(strings.Join(f.rules.TitlePatterns, ", "))))
	rows = append(rows, settingRow("Redirect", highlightStyle.Render(redirect)))

	cfg := f.app.Config()
	rows = append(rows, "", titleStyle.Render("Configuration"), "")
	rows = append(rows, settingRow("Day starts", highlightStyle.Render(fmt.Sprintf("%02d:00", cfg.DayStartHour))))
	rows = append(rows, settingRow("Week starts", highlightStyle.Render(cfg.WeekStart.String())))
	rows = append(rows, settingRow("Max pause", highlightStyle.Render(cfg.MaxPauseDuration.String())))
	rows = append(rows, settingRow("Data", highlightStyle.Render(cfg.DataDir)))

	rows = append(rows, "", mutedStyle.Render("Press enter to edit focus rules"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func settingRow(label, value string) string {
	return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(18).Render(label), value)
}

func orNone(s string) string {
	if s == "" {
		return mutedStyle.Render("none")
	}
	return highlightStyle.Render(s)
}
