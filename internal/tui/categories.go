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
	"github.com/sadopc/sumtimer/internal/ongoing"
	"github.com/sadopc/sumtimer/internal/repo"
	"github.com/sadopc/sumtimer/internal/store"
)

type formKind int

const (
	formNone formKind = iota
	formNewCategory
	formEditCategory
	formNewActivity
	formEditActivity
)

// categoryRow is a category as listed, or the uncategorized bucket when ID
// is empty.
type categoryRow struct {
	ID       string
	Label    string
	Color    string
	Duration int64
}

type categoriesModel struct {
	app    *app.App
	width  int
	height int

	rows            []categoryRow
	activities      []store.Activity
	agg             *store.Cache
	cursor          int
	actCursor       int
	viewingActivity bool

	formActive bool
	form       *huh.Form
	formType   formKind

	// Form field pointers (survive value copies)
	formLabel    *string
	formColor    *string
	formCategory *string

	editingID string
}

func newCategoriesModel(a *app.App) categoriesModel {
	label, color, cid := "", repo.Palette[0], ""
	return categoriesModel{
		app:          a,
		formLabel:    &label,
		formColor:    &color,
		formCategory: &cid,
	}
}

func (c *categoriesModel) setSize(w, h int) {
	c.width = w
	c.height = h
}

type categoriesDataMsg struct {
	rows []categoryRow
	agg  *store.Cache
}

type activitiesDataMsg struct {
	activities []store.Activity
}

func (c categoriesModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		cats, err := c.app.Repos.Categories.List(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		agg, err := c.app.Cache.Get(ctx)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		rows := make([]categoryRow, 0, len(cats)+1)
		for _, cat := range cats {
			rows = append(rows, categoryRow{ID: cat.ID, Label: cat.Label, Color: cat.Color, Duration: agg.Categories[cat.ID].Duration})
		}
		var loose int64
		for _, a := range agg.Activities {
			if a.CID == "" {
				loose += a.Duration
			}
		}
		rows = append(rows, categoryRow{Label: ongoing.DefaultCategoryName, Color: ongoing.DefaultCategoryColor, Duration: loose})
		return categoriesDataMsg{rows: rows, agg: agg}
	}
}

func (c categoriesModel) refreshActivities() tea.Cmd {
	if c.cursor >= len(c.rows) {
		return nil
	}
	cid := c.rows[c.cursor].ID
	return func() tea.Msg {
		acts, err := c.app.Repos.Activities.ByCategory(context.Background(), cid)
		if err != nil {
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		return activitiesDataMsg{activities: acts}
	}
}

func (c categoriesModel) selected() (categoryRow, bool) {
	if c.cursor >= len(c.rows) {
		return categoryRow{}, false
	}
	return c.rows[c.cursor], true
}

func (c categoriesModel) update(msg tea.Msg) (categoriesModel, tea.Cmd) {
	if c.formActive && c.form != nil {
		return c.updateForm(msg)
	}

	switch msg := msg.(type) {
	case categoriesDataMsg:
		c.rows = msg.rows
		c.agg = msg.agg
		if c.cursor >= len(c.rows) {
			c.cursor = max(0, len(c.rows)-1)
		}
		if c.viewingActivity {
			return c, c.refreshActivities()
		}
		return c, nil

	case activitiesDataMsg:
		c.activities = msg.activities
		if c.actCursor >= len(c.activities) {
			c.actCursor = max(0, len(c.activities)-1)
		}
		return c, nil

	case tea.KeyMsg:
		if c.viewingActivity {
			return c.updateActivityView(msg)
		}
		return c.updateCategoryList(msg)
	}
	return c, nil
}

func (c categoriesModel) updateCategoryList(msg tea.KeyMsg) (categoriesModel, tea.Cmd) {
	row, ok := c.selected()
	switch {
	case key.Matches(msg, keys.Up):
		if c.cursor > 0 {
			c.cursor--
		}
	case key.Matches(msg, keys.Down):
		if c.cursor < len(c.rows)-1 {
			c.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if ok {
			c.viewingActivity = true
			c.actCursor = 0
			return c, c.refreshActivities()
		}
	case key.Matches(msg, keys.New):
		return c.showCategoryForm(nil)
	case key.Matches(msg, keys.Edit):
		if ok && row.ID != "" {
			return c.showCategoryForm(&row)
		}
	case key.Matches(msg, keys.Delete):
		if ok && row.ID != "" {
			return c, c.deleteCategory(row)
		}
	case key.Matches(msg, keys.MoveUp):
		if ok && row.ID != "" && c.cursor > 0 {
			c.cursor--
			return c, c.move(row.ID, true)
		}
	case key.Matches(msg, keys.MoveDown):
		// The uncategorized bucket always stays last.
		if ok && row.ID != "" && c.cursor < len(c.rows)-2 {
			c.cursor++
			return c, c.move(row.ID, false)
		}
	}
	return c, nil
}

func (c categoriesModel) updateActivityView(msg tea.KeyMsg) (categoriesModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		c.viewingActivity = false
		return c, nil
	case key.Matches(msg, keys.Up):
		if c.actCursor > 0 {
			c.actCursor--
		}
	case key.Matches(msg, keys.Down):
		if c.actCursor < len(c.activities)-1 {
			c.actCursor++
		}
	case key.Matches(msg, keys.New):
		return c.showActivityForm(nil)
	case key.Matches(msg, keys.Edit):
		if c.actCursor < len(c.activities) {
			a := c.activities[c.actCursor]
			return c.showActivityForm(&a)
		}
	case key.Matches(msg, keys.Delete):
		if c.actCursor < len(c.activities) {
			return c, c.deleteActivity(c.activities[c.actCursor])
		}
	}
	return c, nil
}

func (c categoriesModel) deleteCategory(row categoryRow) tea.Cmd {
	cats := c.app.Repos.Categories
	return func() tea.Msg {
		res, err := cats.Delete(context.Background(), row.ID)
		if err != nil {
			return statusMsg{text: "Delete: " + err.Error(), isError: true}
		}
		switch res {
		case repo.DeleteHasRecords:
			return statusMsg{text: fmt.Sprintf("%s still has records", row.Label), isError: true}
		case repo.DeleteInUse:
			return statusMsg{text: fmt.Sprintf("%s is being timed", row.Label), isError: true}
		}
		return statusMsg{text: "Deleted " + row.Label}
	}
}

func (c categoriesModel) deleteActivity(a store.Activity) tea.Cmd {
	acts := c.app.Repos.Activities
	return func() tea.Msg {
		res, err := acts.Delete(context.Background(), a.ID)
		if err != nil {
			return statusMsg{text: "Delete: " + err.Error(), isError: true}
		}
		switch res {
		case repo.DeleteHasRecords:
			return statusMsg{text: fmt.Sprintf("%s still has records", a.Label), isError: true}
		case repo.DeleteInUse:
			return statusMsg{text: fmt.Sprintf("%s is being timed", a.Label), isError: true}
		}
		return statusMsg{text: "Deleted " + a.Label}
	}
}

func (c categoriesModel) move(id string, up bool) tea.Cmd {
	cats := c.app.Repos.Categories
	return func() tea.Msg {
		op := cats.MoveDown
		if up {
			op = cats.MoveUp
		}
		if err := op(context.Background(), id); err != nil {
			return statusMsg{text: "Move: " + err.Error(), isError: true}
		}
		return statusMsg{text: "Moved"}
	}
}

func paletteOptions(current string) []huh.Option[string] {
	colors := repo.Palette
	found := false
	for _, col := range colors {
		if strings.EqualFold(col, current) {
			found = true
		}
	}
	if !found && current != "" {
		colors = append([]string{current}, colors...)
	}
	opts := make([]huh.Option[string], len(colors))
	for i, col := range colors {
		opts[i] = huh.NewOption(colorDot(col)+" "+col, col)
	}
	return opts
}

func (c categoriesModel) showCategoryForm(row *categoryRow) (categoriesModel, tea.Cmd) {
	*c.formLabel = ""
	*c.formColor = repo.Palette[0]
	c.formType = formNewCategory
	c.editingID = ""
	if row != nil {
		*c.formLabel = row.Label
		*c.formColor = row.Color
		c.formType = formEditCategory
		c.editingID = row.ID
	}

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Category Name").Value(c.formLabel).Validate(required),
			huh.NewSelect[string]().Title("Color").Options(paletteOptions(*c.formColor)...).Value(c.formColor),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func (c categoriesModel) showActivityForm(a *store.Activity) (categoriesModel, tea.Cmd) {
	*c.formLabel = ""
	*c.formCategory = ""
	if row, ok := c.selected(); ok {
		*c.formCategory = row.ID
	}
	c.formType = formNewActivity
	c.editingID = ""
	if a != nil {
		*c.formLabel = a.Label
		*c.formCategory = a.CID
		c.formType = formEditActivity
		c.editingID = a.ID
	}

	opts := make([]huh.Option[string], 0, len(c.rows))
	for _, r := range c.rows {
		opts = append(opts, huh.NewOption(colorDot(r.Color)+" "+r.Label, r.ID))
	}

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Activity Name").Value(c.formLabel).Validate(required),
			huh.NewSelect[string]().Title("Category").Options(opts...).Value(c.formCategory),
		),
	).WithShowHelp(true).WithShowErrors(true)

	c.formActive = true
	return c, c.form.Init()
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func (c categoriesModel) updateForm(msg tea.Msg) (categoriesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			c.formActive = false
			c.form = nil
			return c, nil
		}
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.formActive = false
		return c, c.submit(c.formType, c.editingID, strings.TrimSpace(*c.formLabel), *c.formColor, *c.formCategory)
	}
	return c, cmd
}

func (c categoriesModel) submit(kind formKind, id, label, color, cid string) tea.Cmd {
	r := c.app.Repos
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch kind {
		case formNewCategory:
			_, err = r.Categories.Add(ctx, label, color)
		case formEditCategory:
			err = r.Categories.Update(ctx, id, label, color)
		case formNewActivity:
			_, err = r.Activities.Add(ctx, label, cid)
		case formEditActivity:
			err = r.Activities.Update(ctx, id, label, cid)
		}
		if err != nil {
			return statusMsg{text: "Save: " + err.Error(), isError: true}
		}
		return statusMsg{text: "Saved " + label}
	}
}

func (c categoriesModel) view() string {
	if c.formActive && c.form != nil {
		var title string
		switch c.formType {
		case formNewCategory:
			title = "New Category"
		case formEditCategory:
			title = "Edit Category"
		case formNewActivity:
			title = "New Activity"
		case formEditActivity:
			title = "Edit Activity"
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", c.form.View())
		return panelStyle.Width(c.width - 4).Render(content)
	}

	if c.viewingActivity {
		return c.renderActivityView()
	}
	return c.renderCategoryList()
}

func (c categoriesModel) renderCategoryList() string {
	w := c.width - 4
	title := titleStyle.Render("Categories")

	if len(c.rows) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("Loading..."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %10s", "", "Name", "Total")))

	for i, r := range c.rows {
		cursor := "  "
		style := normalItemStyle
		if i == c.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		if r.ID == "" {
			style = mutedStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %-24s %10s", cursor, colorDot(r.Color), r.Label, formatMillis(r.Duration))))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  K/J: move  enter: activities"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (c categoriesModel) renderActivityView() string {
	w := c.width - 4
	row, _ := c.selected()
	title := titleStyle.Render(fmt.Sprintf("%s %s: Activities", colorDot(row.Color), row.Label))

	if len(c.activities) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No activities. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, a := range c.activities {
		cursor := "  "
		style := normalItemStyle
		if i == c.actCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		var stats string
		if c.agg != nil {
			ca := c.agg.Activities[a.ID]
			stats = mutedStyle.Render(fmt.Sprintf("  %s in %d records", formatMillis(ca.Duration), ca.Count))
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s", cursor, a.Label))+stats)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
