// Package scrape drives a headless Chrome through the timetable's
// form-driven query UI and returns the rendered results page.
//
// The upstream site is session-stateful and exposes no query API: the only
// way to a results page is the exact sequence of UI interactions a human
// would perform. Every invocation gets its own browser process so no form
// state leaks between scrapes, and the process is torn down on every exit
// path.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Form selectors for the timetable query page. The site has no stable IDs;
// these track the input names observed in the live markup.
const (
	selSubjectControl = `input[name="subjectradio"]`
	selAllSubjects    = `input[name="subjectradio"][value="allsubjects"]`
	selSubjectList    = `select[name="subjareatext"]`
	selAllPeriods     = `input[name="periodradio"][value="allperiods"]`
	selSortOrder      = `input[name="sortorder"][value="dept"]`
	selSearch         = `input[type="submit"][name="searchbutton"]`
	selResultsTable   = `div.data-table table`
)

// Config configures the scrape client.
type Config struct {
	// Bin is the Chrome/Chromium executable path. Empty lets the rod
	// launcher locate one.
	Bin string

	// EntryURL is the timetable query page.
	EntryURL string

	// Term is the term code to select, e.g. "202609".
	Term string

	// StepTimeout bounds each individual UI interaction. Default: 45s.
	StepTimeout time.Duration

	// ResultsTimeout bounds the final wait for the results table, which
	// covers the server-side query. Default: 120s.
	ResultsTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.StepTimeout <= 0 {
		c.StepTimeout = 45 * time.Second
	}
	if c.ResultsTimeout <= 0 {
		c.ResultsTimeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NavigationError reports a scrape aborted because a required control did
// not appear within its timeout or navigation failed outright. The caller
// receives no HTML, never a truncated document.
type NavigationError struct {
	Step string
	URL  string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("scrape: step %q on %s: %v", e.Step, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Client performs timetable scrapes. Safe for concurrent use; each call
// owns an independent browser session.
type Client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// FetchCatalog runs the full query — current term, all subjects, all
// periods — and returns the rendered results document.
func (c *Client) FetchCatalog(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, "")
}

// FetchSubject runs the same query narrowed to one subject area. The
// watcher uses this for cache-bypassing single-course checks; the form
// cannot filter below subject granularity, so callers refine the parsed
// rows with catalog.Filter.
func (c *Client) FetchSubject(ctx context.Context, subject string) ([]byte, error) {
	if subject == "" {
		return nil, fmt.Errorf("scrape: subject is required")
	}
	return c.fetch(ctx, subject)
}

func (c *Client) fetch(ctx context.Context, subject string) ([]byte, error) {
	log := c.cfg.Logger
	start := time.Now()

	l := launcher.New().Headless(true).Context(ctx)
	if c.cfg.Bin != "" {
		l = l.Bin(c.cfg.Bin)
	}
	l = l.Set("disable-blink-features", "AutomationControlled")

	wsURL, err := l.Launch()
	if err != nil {
		return nil, &NavigationError{Step: "launch", URL: c.cfg.EntryURL, Err: err}
	}
	// Cleanup blocks until the Chrome process exits, so a forced Kill must
	// run first: a failed Connect or a Close that never reached Chrome
	// would otherwise park this call forever with the process still alive.
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, &NavigationError{Step: "connect", URL: c.cfg.EntryURL, Err: err}
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, &NavigationError{Step: "new page", URL: c.cfg.EntryURL, Err: err}
	}

	if err := c.step(page, "navigate", func() error {
		if err := page.Navigate(c.cfg.EntryURL); err != nil {
			return err
		}
		return page.WaitLoad()
	}); err != nil {
		return nil, err
	}

	// The interaction order matters: the site rebuilds parts of the form
	// after each selection and drops out-of-order submissions.
	if err := c.click(page, "open subject selector", selSubjectControl); err != nil {
		return nil, err
	}
	if err := c.click(page, "select term",
		fmt.Sprintf(`input[name="terms"][value=%q]`, c.cfg.Term)); err != nil {
		return nil, err
	}
	if subject == "" {
		if err := c.click(page, "select all subjects", selAllSubjects); err != nil {
			return nil, err
		}
	} else {
		if err := c.selectSubject(page, subject); err != nil {
			return nil, err
		}
	}
	if err := c.click(page, "select all periods", selAllPeriods); err != nil {
		return nil, err
	}
	if err := c.click(page, "select sort order", selSortOrder); err != nil {
		return nil, err
	}
	if err := c.click(page, "submit search", selSearch); err != nil {
		return nil, err
	}

	if err := c.step(page, "await results", func() error {
		_, err := page.Timeout(c.cfg.ResultsTimeout).Element(selResultsTable)
		return err
	}); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &NavigationError{Step: "capture", URL: c.cfg.EntryURL, Err: err}
	}

	log.Debug("scrape: captured results",
		"subject", subject, "bytes", len(html), "elapsed", time.Since(start))
	return []byte(html), nil
}

// click waits for the control to appear within the step timeout, then
// clicks it.
func (c *Client) click(page *rod.Page, name, selector string) error {
	return c.step(page, name, func() error {
		el, err := page.Timeout(c.cfg.StepTimeout).Element(selector)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

// selectSubject picks one subject area in the multi-select.
func (c *Client) selectSubject(page *rod.Page, subject string) error {
	return c.step(page, "select subject", func() error {
		el, err := page.Timeout(c.cfg.StepTimeout).Element(selSubjectList)
		if err != nil {
			return err
		}
		return el.Select([]string{subject}, true, rod.SelectorTypeText)
	})
}

func (c *Client) step(page *rod.Page, name string, fn func() error) error {
	if err := fn(); err != nil {
		c.cfg.Logger.Warn("scrape: step failed", "step", name, "error", err)
		return &NavigationError{Step: name, URL: c.cfg.EntryURL, Err: err}
	}
	return nil
}
