// Package focus blocks distracting pages while the user is timing an
// activity in one of their focus categories.
package focus

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

const DefaultRedirectURL = "about:blank"

const (
	keyEnabled       = "focus.enabled"
	keyCategories    = "focus.categories"
	keyURLPatterns   = "focus.url_patterns"
	keyTitlePatterns = "focus.title_patterns"
	keyRedirectURL   = "focus.redirect_url"
)

// Rules is the persisted focus-mode configuration. Patterns are regular
// expressions matched anywhere in the URL or title.
type Rules struct {
	Enabled       bool     `json:"enabled"`
	Categories    []string `json:"categories"`
	URLPatterns   []string `json:"urlPatterns"`
	TitlePatterns []string `json:"titlePatterns"`
	RedirectURL   string   `json:"redirectUrl"`
}

func (r Rules) redirect() string {
	if r.RedirectURL == "" {
		return DefaultRedirectURL
	}
	return r.RedirectURL
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Validate checks that every pattern compiles.
func (r Rules) Validate() error {
	if _, err := compile(r.URLPatterns); err != nil {
		return err
	}
	_, err := compile(r.TitlePatterns)
	return err
}

// LoadRules reads the rules from the settings collection. Missing keys
// yield a disabled, empty rule set; an unreadable enabled flag is logged
// and reads as disabled.
func LoadRules(ctx context.Context, s *store.Store, log *zap.Logger) (Rules, error) {
	var r Rules
	settings, err := s.GetSettings(ctx, "focus.")
	if err != nil {
		return r, fmt.Errorf("load focus rules: %w", err)
	}
	for _, kv := range settings {
		switch kv.Key {
		case keyEnabled:
			enabled, perr := strconv.ParseBool(kv.Value)
			if perr != nil {
				log.Warn("bad focus setting", zap.String("key", kv.Key), zap.String("value", kv.Value), zap.Error(perr))
			}
			r.Enabled = enabled
		case keyCategories:
			err = json.Unmarshal([]byte(kv.Value), &r.Categories)
		case keyURLPatterns:
			err = json.Unmarshal([]byte(kv.Value), &r.URLPatterns)
		case keyTitlePatterns:
			err = json.Unmarshal([]byte(kv.Value), &r.TitlePatterns)
		case keyRedirectURL:
			r.RedirectURL = kv.Value
		}
		if err != nil {
			return r, fmt.Errorf("load focus rules: %s: %w", kv.Key, err)
		}
	}
	return r, nil
}

// SaveRules validates and stores the rules in one batch.
func SaveRules(ctx context.Context, s *store.Store, r Rules) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("save focus rules: %w", err)
	}
	b := s.Batch()
	b.SetSetting(keyEnabled, strconv.FormatBool(r.Enabled))
	for key, list := range map[string][]string{
		keyCategories:    r.Categories,
		keyURLPatterns:   r.URLPatterns,
		keyTitlePatterns: r.TitlePatterns,
	} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("save focus rules: %w", err)
		}
		b.SetSetting(key, string(data))
	}
	b.SetSetting(keyRedirectURL, r.RedirectURL)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("save focus rules: %w", err)
	}
	return nil
}
