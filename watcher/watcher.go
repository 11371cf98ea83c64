// Package watcher periodically re-checks every active subscription's target
// course and fires a notification when a seat opens.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/coursewatch/catalog"
	"github.com/hazyhaar/coursewatch/notify"
	"github.com/hazyhaar/coursewatch/subs"
)

// Registry is the subscription store surface the watcher needs.
type Registry interface {
	ListAll(ctx context.Context) ([]*subs.Subscription, error)
	Delete(ctx context.Context, id string) error
}

// Scraper fetches a fresh single-subject listing. The cache is bypassed on
// purpose: enrollment counts are exactly the quantity being monitored.
type Scraper interface {
	FetchSubject(ctx context.Context, subject string) ([]byte, error)
}

// Notifier dispatches the seat-opened message.
type Notifier interface {
	SeatOpened(ctx context.Context, ev notify.Event) error
}

// Config configures the watcher.
type Config struct {
	// Interval between ticks. Default: 5 minutes.
	Interval time.Duration

	// MaxConcurrent bounds simultaneous browser sessions within a tick.
	// Each check spawns a Chrome process, so this caps host resource use
	// no matter how many subscriptions exist. Default: 2.
	MaxConcurrent int

	// ExpireUnmatched drops a subscription whose course has not appeared
	// in any scrape for this long since it was created. Zero keeps such
	// subscriptions forever.
	ExpireUnmatched time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Watcher drives the periodic enrollment checks.
type Watcher struct {
	cfg      Config
	registry Registry
	scraper  Scraper
	notifier Notifier
	now      func() time.Time
}

// New creates a Watcher. Call Run to start it.
func New(registry Registry, scraper Scraper, notifier Notifier, cfg Config) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg:      cfg,
		registry: registry,
		scraper:  scraper,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run ticks on the configured interval until ctx is cancelled. The first
// tick fires immediately. A tick that overruns is cancelled rather than
// allowed to pile into the next one.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.cfg.Logger.Info("watcher: started", "interval", w.cfg.Interval)
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("watcher: stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick checks every subscription once. Checks run concurrently up to
// MaxConcurrent; each is an isolated unit of failure.
func (w *Watcher) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, w.cfg.Interval)
	defer cancel()

	subscriptions, err := w.registry.ListAll(tickCtx)
	if err != nil {
		w.cfg.Logger.Error("watcher: list subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(w.cfg.MaxConcurrent)
	for _, sub := range subscriptions {
		g.Go(func() error {
			w.check(tickCtx, sub)
			return nil
		})
	}
	g.Wait()
}

// check re-scrapes one subscription's subject and acts on the outcome.
// Errors are logged and treated as "no opening this tick"; they never
// propagate to the tick loop.
func (w *Watcher) check(ctx context.Context, sub *subs.Subscription) {
	log := w.cfg.Logger

	html, err := w.scraper.FetchSubject(ctx, sub.CourseName)
	if err != nil {
		log.Warn("watcher: scrape failed", "subscription", sub.ID, "error", err)
		return
	}

	offerings, err := catalog.Extract(html)
	if err != nil {
		log.Warn("watcher: extract failed", "subscription", sub.ID, "error", err)
		return
	}

	matches := catalog.Filter(offerings, sub.CourseName, sub.CourseNum)
	if len(matches) == 0 {
		w.handleUnmatched(ctx, sub)
		return
	}

	for _, o := range matches {
		if !o.SeatOpen() {
			continue
		}
		w.notifyAndRemove(ctx, sub, o)
		return
	}
}

// handleUnmatched applies the expiry policy for a subscription whose course
// no longer appears in the listing. By default it is left in place — the
// course may be temporarily absent — unless ExpireUnmatched has elapsed.
func (w *Watcher) handleUnmatched(ctx context.Context, sub *subs.Subscription) {
	if w.cfg.ExpireUnmatched <= 0 {
		return
	}
	age := w.now().Sub(time.UnixMilli(sub.CreatedAt))
	if age < w.cfg.ExpireUnmatched {
		return
	}
	if err := w.registry.Delete(ctx, sub.ID); err != nil {
		w.cfg.Logger.Warn("watcher: expire unmatched", "subscription", sub.ID, "error", err)
		return
	}
	w.cfg.Logger.Info("watcher: expired unmatched subscription",
		"subscription", sub.ID, "age", age)
}

// notifyAndRemove completes a detected opening: the subscription is removed
// first, then the email is sent. A send failure is logged only and does not
// restore the subscription, so delivery is at most once.
func (w *Watcher) notifyAndRemove(ctx context.Context, sub *subs.Subscription, o catalog.Offering) {
	log := w.cfg.Logger

	if err := w.registry.Delete(ctx, sub.ID); err != nil {
		log.Error("watcher: remove subscription", "subscription", sub.ID, "error", err)
		return
	}

	ev := notify.Event{
		Email:      sub.Email,
		CourseName: sub.CourseName,
		CourseNum:  sub.CourseNum,
		Title:      o.Title,
		Enrolled:   *o.Enrolled,
		Limit:      *o.Limit,
	}
	if err := w.notifier.SeatOpened(ctx, ev); err != nil {
		log.Warn("watcher: notification failed", "subscription", sub.ID, "error", err)
		return
	}
	log.Info("watcher: seat opened, notified",
		"subscription", sub.ID, "course", sub.CourseName+" "+sub.CourseNum,
		"enrolled", ev.Enrolled, "limit", ev.Limit)
}
