package focus

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/sadopc/sumtimer/internal/store"
	"go.uber.org/zap"
)

// Tab is a browser tab as reported by the extension.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Decision says whether a tab should be sent away, and where.
type Decision struct {
	Block       bool   `json:"block"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// TabController is the browser side of the bridge.
type TabController interface {
	ActiveTabs(ctx context.Context) ([]Tab, error)
	Redirect(ctx context.Context, tabID int, url string) error
}

// Bridge tracks the ongoing category and decides which tabs to block.
// Focus mode is on when the rules are enabled and the ongoing category is
// one of the focus categories.
type Bridge struct {
	tabs TabController
	log  *zap.Logger

	mu       sync.Mutex
	rules    Rules
	urls     []*regexp.Regexp
	titles   []*regexp.Regexp
	focusSet map[string]bool
	cid      string
	inFocus  bool
}

// NewBridge creates a bridge. tabs may be nil when nothing can be
// redirected actively; Check still works.
func NewBridge(tabs TabController, log *zap.Logger) *Bridge {
	return &Bridge{tabs: tabs, log: log.Named("focus"), focusSet: map[string]bool{}}
}

// SetRules swaps the rule set and enforces it if focus mode just began.
func (b *Bridge) SetRules(ctx context.Context, r Rules) error {
	urls, err := compile(r.URLPatterns)
	if err != nil {
		return err
	}
	titles, err := compile(r.TitlePatterns)
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(r.Categories))
	for _, c := range r.Categories {
		set[c] = true
	}

	b.mu.Lock()
	b.rules, b.urls, b.titles, b.focusSet = r, urls, titles, set
	entered := b.updateLocked()
	b.mu.Unlock()

	if entered {
		return b.enforce(ctx)
	}
	return nil
}

// SetOngoingCategory records the category being timed; "" means idle or
// uncategorized. Entering focus mode checks the open tabs right away.
func (b *Bridge) SetOngoingCategory(ctx context.Context, cid string) error {
	b.mu.Lock()
	b.cid = cid
	entered := b.updateLocked()
	b.mu.Unlock()

	if entered {
		return b.enforce(ctx)
	}
	return nil
}

// updateLocked recomputes the focus flag and reports a false-to-true edge.
func (b *Bridge) updateLocked() (entered bool) {
	was := b.inFocus
	b.inFocus = b.rules.Enabled && b.cid != "" && b.focusSet[b.cid]
	if was != b.inFocus {
		b.log.Info("focus mode changed", zap.Bool("on", b.inFocus), zap.String("cid", b.cid))
	}
	return !was && b.inFocus
}

func (b *Bridge) InFocus() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFocus
}

func (b *Bridge) Rules() Rules {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rules
}

// Check decides whether tab must be blocked now.
func (b *Bridge) Check(tab Tab) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFocus {
		return Decision{}
	}
	for _, re := range b.urls {
		if re.MatchString(tab.URL) {
			return Decision{Block: true, RedirectURL: b.rules.redirect(), Reason: "url matches " + re.String()}
		}
	}
	for _, re := range b.titles {
		if re.MatchString(tab.Title) {
			return Decision{Block: true, RedirectURL: b.rules.redirect(), Reason: "title matches " + re.String()}
		}
	}
	return Decision{}
}

// Enforce redirects every active tab that Check blocks and returns how
// many were redirected.
func (b *Bridge) Enforce(ctx context.Context) (int, error) {
	if b.tabs == nil {
		return 0, nil
	}
	tabs, err := b.tabs.ActiveTabs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tabs: %w", err)
	}
	var n int
	var errs []error
	for _, tab := range tabs {
		d := b.Check(tab)
		if !d.Block {
			continue
		}
		if err := b.tabs.Redirect(ctx, tab.ID, d.RedirectURL); err != nil {
			errs = append(errs, fmt.Errorf("redirect tab %d: %w", tab.ID, err))
			continue
		}
		b.log.Info("redirected tab", zap.Int("tab", tab.ID), zap.String("reason", d.Reason))
		n++
	}
	return n, errors.Join(errs...)
}

func (b *Bridge) enforce(ctx context.Context) error {
	_, err := b.Enforce(ctx)
	return err
}

// OngoingCategory resolves the category of the user's live session through
// its activity, falling back to the category stored on the session.
func OngoingCategory(ctx context.Context, s *store.Store, uid string) (string, error) {
	o, err := s.GetOngoing(ctx, uid)
	if err != nil || o == nil {
		return "", err
	}
	a, err := s.GetActivity(ctx, o.AID)
	if errors.Is(err, store.ErrNotFound) {
		return o.CID, nil
	}
	if err != nil {
		return "", err
	}
	return a.CID, nil
}

// Watch loads the rules and the ongoing category, then keeps both current
// as batches commit. The returned function stops watching.
func (b *Bridge) Watch(ctx context.Context, s *store.Store, uid string) (stop func(), err error) {
	if err := b.refresh(ctx, s, uid, true); err != nil {
		return nil, err
	}
	return s.Subscribe(func(e store.Event) {
		if !e.Has(store.Ongoings) && !e.Has(store.Activities) && !e.Has(store.Settings) {
			return
		}
		if err := b.refresh(ctx, s, uid, e.Has(store.Settings)); err != nil {
			b.log.Warn("refresh focus state", zap.Error(err))
		}
	}), nil
}

func (b *Bridge) refresh(ctx context.Context, s *store.Store, uid string, rules bool) error {
	if rules {
		r, err := LoadRules(ctx, s, b.log)
		if err != nil {
			return err
		}
		if err := b.SetRules(ctx, r); err != nil {
			return err
		}
	}
	cid, err := OngoingCategory(ctx, s, uid)
	if err != nil {
		return err
	}
	return b.SetOngoingCategory(ctx, cid)
}
