package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alvmarrod/pagedepth/internal/config"
	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// Request context keys
const (
	ctxDepth   = "pagedepth.depth"
	ctxStarted = "pagedepth.started"
	ctxLinks   = "pagedepth.links"
)

// Crawler drives a colly collector over a single site and reports every
// fetched page to the pipeline
type Crawler struct {
	cfg       *config.Config
	pipeline  *Pipeline
	collector *colly.Collector
	rootHost  string

	visitedMu sync.Mutex
	visited   map[string]bool

	stopped atomic.Bool
}

// NewCrawler creates a new crawler instance
func NewCrawler(cfg *config.Config, pipeline *Pipeline) (*Crawler, error) {
	host, err := ExtractHost(cfg.RootURL)
	if err != nil || host == "" {
		return nil, fmt.Errorf("invalid root URL %q: %v", cfg.RootURL, err)
	}

	c := &Crawler{
		cfg:      cfg,
		pipeline: pipeline,
		rootHost: host,
		visited:  make(map[string]bool),
	}

	if err := c.setupColly(); err != nil {
		return nil, err
	}
	return c, nil
}

// setupColly configures the Colly collector with callbacks
func (c *Crawler) setupColly() error {
	// Revisits and domains are checked in visit, colly's own checks would
	// also run on redirect hops
	c.collector = colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.UserAgent(c.cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
	)

	c.collector.SetRequestTimeout(time.Duration(c.cfg.RequestTimeoutMs) * time.Millisecond)

	if err := c.collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.ConcurrentWorkers,
		Delay:       time.Duration(c.cfg.RequestDelayMs) * time.Millisecond,
	}); err != nil {
		return fmt.Errorf("failed to set crawl limits: %w", err)
	}

	if !c.cfg.Cookies() {
		c.collector.DisableCookies()
	}

	// Every redirect hop is recorded as a page of its own
	c.collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	})

	c.collector.OnRequest(func(r *colly.Request) {
		if c.stopped.Load() {
			r.Abort()
			return
		}
		r.Ctx.Put(ctxStarted, time.Now())
	})

	// Collect links; they are filtered once the page is fully scraped
	c.collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		links, _ := e.Request.Ctx.GetAny(ctxLinks).([]string)
		e.Request.Ctx.Put(ctxLinks, append(links, link))
	})

	c.collector.OnScraped(c.handlePage)

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil {
			logrus.Errorf("OnError called with nil response: %v", err)
			return
		}
		c.handleError(r, err)
	})

	return nil
}

// Run crawls from the configured root until no pages remain or ctx is
// cancelled. The returned report is never nil.
func (c *Crawler) Run(ctx context.Context) (*memory.Report, error) {
	root, err := memory.NormalizeURL(c.cfg.RootURL)
	if err != nil {
		return c.pipeline.OnCrawlComplete(), fmt.Errorf("invalid root URL: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logrus.Warn("Crawl cancelled, waiting for in-flight requests")
			c.Stop()
		case <-done:
		}
	}()

	logrus.Infof("Starting crawl of %s with %d workers", root, c.cfg.ConcurrentWorkers)
	rootErr := c.visit(root, 0)

	c.collector.Wait()
	close(done)

	report := c.pipeline.OnCrawlComplete()
	if rootErr != nil {
		return report, fmt.Errorf("failed to schedule root %s: %w", root, rootErr)
	}
	return report, ctx.Err()
}

// Stop prevents any further requests. In-flight requests still complete
// and reach the pipeline.
func (c *Crawler) Stop() {
	c.stopped.Store(true)
}

// visit schedules link once per crawl
func (c *Crawler) visit(link string, depth int) error {
	if c.stopped.Load() {
		return nil
	}

	c.visitedMu.Lock()
	if c.visited[link] {
		c.visitedMu.Unlock()
		return nil
	}
	c.visited[link] = true
	c.visitedMu.Unlock()

	ctx := colly.NewContext()
	ctx.Put(ctxDepth, depth)

	if err := c.collector.Request(http.MethodGet, link, nil, ctx, nil); err != nil {
		logrus.Debugf("Visit of %s not scheduled: %v", link, err)
		return err
	}
	logrus.Debugf("Scheduled %s (depth=%d)", link, depth)
	return nil
}

// handlePage turns a completed response into a page event and schedules
// what it points to
func (c *Crawler) handlePage(r *colly.Response) {
	depth := depthOf(r.Ctx)
	page := &storage.Page{
		URL:            r.Request.URL.String(),
		StatusCode:     r.StatusCode,
		Depth:          depth,
		BodySize:       len(r.Body),
		ResponseTimeMs: elapsedMs(r.Ctx),
		FetchedAt:      time.Now(),
	}

	logrus.Infof("Fetched %s (depth=%d, status=%d)", page.URL, depth, page.StatusCode)

	if page.IsRedirect() {
		c.followRedirect(r, page)
		return
	}

	candidates, _ := r.Ctx.GetAny(ctxLinks).([]string)
	page.Links = c.pipeline.FilterLinks(page, candidates)
	c.pipeline.OnPageFetched(page)

	if c.cfg.MaxDepth > 0 && depth >= c.cfg.MaxDepth {
		return
	}
	for _, link := range page.Links {
		_ = c.visit(link, depth+1)
	}
}

// followRedirect records a redirect hop and schedules its target at the
// same depth
func (c *Crawler) followRedirect(r *colly.Response, page *storage.Page) {
	location := ""
	if r.Headers != nil {
		location = r.Headers.Get("Location")
	}
	if location != "" {
		page.RedirectTarget = r.Request.AbsoluteURL(location)
	}
	c.pipeline.OnPageFetched(page)

	if page.RedirectTarget == "" {
		logrus.Warnf("Redirect without Location header at %s", page.URL)
		return
	}

	target, err := memory.NormalizeURL(page.RedirectTarget)
	if err != nil {
		logrus.Warnf("Unusable redirect target %q from %s: %v", page.RedirectTarget, page.URL, err)
		return
	}
	if c.cfg.SameHost() {
		host, _ := ExtractHost(target)
		if !strings.EqualFold(host, c.rootHost) {
			logrus.Debugf("Not following off-site redirect %s -> %s", page.URL, target)
			return
		}
	}
	_ = c.visit(target, page.Depth)
}

// handleError records a failed fetch as a page with no status
func (c *Crawler) handleError(r *colly.Response, err error) {
	logrus.Errorf("Fetch failed for %s: %v (status: %d)", r.Request.URL, err, r.StatusCode)

	page := &storage.Page{
		URL:            r.Request.URL.String(),
		StatusCode:     r.StatusCode,
		Depth:          depthOf(r.Ctx),
		BodySize:       len(r.Body),
		ResponseTimeMs: elapsedMs(r.Ctx),
		FetchedAt:      time.Now(),
	}
	if err != nil {
		page.FetchError = err.Error()
	}
	c.pipeline.OnPageFetched(page)
}

func depthOf(ctx *colly.Context) int {
	if ctx == nil {
		return storage.Unreachable
	}
	if depth, ok := ctx.GetAny(ctxDepth).(int); ok {
		return depth
	}
	return storage.Unreachable
}

func elapsedMs(ctx *colly.Context) float64 {
	if ctx == nil {
		return 0
	}
	started, ok := ctx.GetAny(ctxStarted).(time.Time)
	if !ok {
		return 0
	}
	return float64(time.Since(started).Microseconds()) / 1000
}
