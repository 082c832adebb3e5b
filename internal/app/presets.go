package app

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

type Presets struct {
	Categories []struct {
		Key   string `yaml:"key"`
		Label string `yaml:"label"`
		Color string `yaml:"color"`
	} `yaml:"categories"`
	Activities []struct {
		Category string `yaml:"category"`
		Label    string `yaml:"label"`
	} `yaml:"activities"`
}

func LoadPresets() (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(presetsYAML, &p); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return &p, nil
}

// Bootstrap writes the preset categories and activities for an account that
// has neither. It reports whether anything was written.
func (a *App) Bootstrap(ctx context.Context) (bool, error) {
	cats, err := a.Repos.Categories.List(ctx)
	if err != nil {
		return false, err
	}
	acts, err := a.Repos.Activities.List(ctx)
	if err != nil {
		return false, err
	}
	if len(cats) > 0 || len(acts) > 0 {
		return false, nil
	}

	p, err := LoadPresets()
	if err != nil {
		return false, err
	}

	now := a.now()
	ids := make(map[string]string, len(p.Categories))
	b := a.Store.Batch()
	for i, c := range p.Categories {
		cat := store.Category{ID: store.NewID(), Label: c.Label, Color: c.Color, Order: float64(i + 1)}
		if err := a.Repos.Categories.AddInBatch(ctx, b, cat); err != nil {
			return false, err
		}
		ids[c.Key] = cat.ID
	}
	for _, pa := range p.Activities {
		cid, ok := ids[pa.Category]
		if !ok {
			return false, fmt.Errorf("preset activity %q: unknown category %q", pa.Label, pa.Category)
		}
		act := store.Activity{ID: store.NewID(), Label: pa.Label, CID: cid, Updated: now}
		if err := a.Repos.Activities.AddInBatch(ctx, b, act); err != nil {
			return false, err
		}
	}
	if err := b.Commit(ctx); err != nil {
		return false, fmt.Errorf("write presets: %w", err)
	}
	a.Log.Info("wrote presets", zap.String("uid", a.uid),
		zap.Int("categories", len(p.Categories)), zap.Int("activities", len(p.Activities)))
	return true, nil
}
