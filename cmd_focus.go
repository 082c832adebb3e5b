package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sadopc/sumtimer/internal/app"
	"github.com/sadopc/sumtimer/internal/focus"
	"github.com/spf13/cobra"
)

var (
	checkURL   string
	checkTitle string

	focusEnable     bool
	focusDisable    bool
	focusCategories []string
	focusURLs       []string
	focusTitles     []string
	focusRedirect   string
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Show or change focus-mode rules",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		r := a.Focus.Rules()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "enabled:    %t\n", r.Enabled)
		fmt.Fprintf(out, "in focus:   %t\n", a.Focus.InFocus())
		names, err := categoryLabels(ctx, a, r.Categories)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "categories: %s\n", strings.Join(names, ", "))
		fmt.Fprintf(out, "urls:       %s\n", strings.Join(r.URLPatterns, ", "))
		fmt.Fprintf(out, "titles:     %s\n", strings.Join(r.TitlePatterns, ", "))
		fmt.Fprintf(out, "redirect:   %s\n", r.RedirectURL)
		return nil
	}),
}

var focusCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Tell whether a tab would be blocked right now",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		d := a.Focus.Check(focus.Tab{URL: checkURL, Title: checkTitle})
		if !d.Block {
			fmt.Fprintln(cmd.OutOrStdout(), "allow")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "block: %s\nredirect: %s\n", d.Reason, d.RedirectURL)
		return nil
	}),
}

var focusSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change focus-mode rules",
	Long: `Updates only the rules named by flags. List flags replace the whole list;
pass an empty value (--url "") to clear one. Categories are ids or labels.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		r, err := focus.LoadRules(ctx, a.Store, a.Log)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		switch {
		case focusEnable && focusDisable:
			return fmt.Errorf("--enable and --disable are exclusive")
		case focusEnable:
			r.Enabled = true
		case focusDisable:
			r.Enabled = false
		}
		if flags.Changed("category") {
			if r.Categories, err = categoryIDs(ctx, a, nonEmpty(focusCategories)); err != nil {
				return err
			}
		}
		if flags.Changed("url") {
			r.URLPatterns = nonEmpty(focusURLs)
		}
		if flags.Changed("title") {
			r.TitlePatterns = nonEmpty(focusTitles)
		}
		if flags.Changed("redirect") {
			r.RedirectURL = focusRedirect
		}
		if err := focus.SaveRules(ctx, a.Store, r); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Focus rules saved.")
		return nil
	}),
}

func init() {
	focusCheckCmd.Flags().StringVar(&checkURL, "url", "", "Tab URL")
	focusCheckCmd.Flags().StringVar(&checkTitle, "title", "", "Tab title")

	focusSetCmd.Flags().BoolVar(&focusEnable, "enable", false, "Turn focus mode on")
	focusSetCmd.Flags().BoolVar(&focusDisable, "disable", false, "Turn focus mode off")
	focusSetCmd.Flags().StringSliceVar(&focusCategories, "category", nil, "Focus categories")
	focusSetCmd.Flags().StringArrayVar(&focusURLs, "url", nil, "Blocked URL pattern (repeatable)")
	focusSetCmd.Flags().StringArrayVar(&focusTitles, "title", nil, "Blocked title pattern (repeatable)")
	focusSetCmd.Flags().StringVar(&focusRedirect, "redirect", "", "URL blocked tabs are sent to")

	focusCmd.AddCommand(focusCheckCmd)
	focusCmd.AddCommand(focusSetCmd)
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// categoryIDs resolves each ref as a category id, then as a label.
func categoryIDs(ctx context.Context, a *app.App, refs []string) ([]string, error) {
	cats, err := a.Repos.Categories.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
outer:
	for _, ref := range refs {
		for _, c := range cats {
			if c.ID == ref || strings.EqualFold(c.Label, ref) {
				ids = append(ids, c.ID)
				continue outer
			}
		}
		return nil, fmt.Errorf("unknown category %q", ref)
	}
	return ids, nil
}

func categoryLabels(ctx context.Context, a *app.App, ids []string) ([]string, error) {
	cats, err := a.Repos.Categories.List(ctx)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(cats))
	for _, c := range cats {
		labels[c.ID] = c.Label
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if l, ok := labels[id]; ok {
			out = append(out, l)
		} else {
			out = append(out, id)
		}
	}
	return out, nil
}
