package crawler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/pagedepth/internal/config"
	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/metrics"
	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/sirupsen/logrus"
)

// Hooks are the crawl callbacks supplied by the reporting layer. Any of
// them may be nil.
type Hooks struct {
	// FocusCrawl narrows the links accepted on a page. It can only remove
	// links; anything it returns that the link filter rejected is dropped.
	FocusCrawl func(page *storage.Page, links []string) []string

	// OnEveryPage is called once per stored page, in storage order
	OnEveryPage func(page *storage.Page)

	// AfterCrawl receives the analysis report once the crawl is complete
	AfterCrawl func(report *memory.Report)
}

// Pipeline sits between the crawl engine and the page graph. Fetch events
// may arrive from many goroutines; they are queued and applied to the graph
// by a single writer goroutine.
type Pipeline struct {
	cfg     *config.Config
	crawlID string
	graph   *memory.Graph
	tracker *metrics.Tracker
	hooks   Hooks
	filter  *LinkFilter
	queue   *Queue

	seenMu sync.Mutex
	seen   map[string]bool

	writerDone   chan struct{}
	completeOnce sync.Once
	report       *memory.Report
	startedAt    time.Time
}

// NewPipeline creates a pipeline feeding graph and starts its writer.
// cfg must have been validated.
func NewPipeline(cfg *config.Config, crawlID string, graph *memory.Graph, tracker *metrics.Tracker, hooks Hooks) (*Pipeline, error) {
	filter, err := NewLinkFilter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build link filter: %w", err)
	}

	p := &Pipeline{
		cfg:        cfg,
		crawlID:    crawlID,
		graph:      graph,
		tracker:    tracker,
		hooks:      hooks,
		filter:     filter,
		queue:      NewQueue(),
		seen:       make(map[string]bool),
		writerDone: make(chan struct{}),
		startedAt:  time.Now(),
	}

	go p.writer()
	return p, nil
}

// Graph returns the page graph fed by the pipeline
func (p *Pipeline) Graph() *memory.Graph {
	return p.graph
}

// Pending returns the number of fetched pages waiting to be stored
func (p *Pipeline) Pending() int {
	return p.queue.Size()
}

// FilterLinks returns the candidates the crawl engine should schedule. It
// does not touch the graph.
func (p *Pipeline) FilterLinks(page *storage.Page, candidates []string) []string {
	accepted := p.filter.Filter(page, candidates)
	if p.hooks.FocusCrawl == nil || len(accepted) == 0 {
		return accepted
	}

	focused, ok := p.focus(page, accepted)
	if !ok {
		return accepted
	}

	allowed := make(map[string]bool, len(accepted))
	for _, link := range accepted {
		allowed[link] = true
	}

	var result []string
	for _, raw := range focused {
		link, err := memory.NormalizeURL(raw)
		if err != nil || !allowed[link] {
			continue
		}
		allowed[link] = false
		result = append(result, link)
	}
	return result
}

func (p *Pipeline) focus(page *storage.Page, links []string) (focused []string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Focus hook panicked on %s, keeping filtered links: %v", page.URL, r)
			ok = false
		}
	}()
	return p.hooks.FocusCrawl(page.Clone(), append([]string(nil), links...)), true
}

// OnPageFetched queues a fetched page for storage. It never blocks and
// never panics: malformed fields are replaced with defaults, pages without
// a usable URL are dropped, and repeated events for a URL are ignored.
func (p *Pipeline) OnPageFetched(page *storage.Page) {
	if page == nil {
		logrus.Warn("Dropping nil page event")
		p.dropped()
		return
	}

	rec := page.Clone()
	key, err := memory.NormalizeURL(rec.URL)
	if err != nil {
		logrus.Warnf("Dropping malformed page event %q: %v", rec.URL, err)
		p.dropped()
		return
	}
	rec.URL = key

	if fixed := memory.SanitizePage(rec); len(fixed) > 0 {
		logrus.Warnf("Malformed page %s: substituted defaults for %s", key, strings.Join(fixed, ", "))
	}

	p.seenMu.Lock()
	duplicate := p.seen[key]
	p.seen[key] = true
	p.seenMu.Unlock()

	if duplicate {
		logrus.Warnf("Duplicate page event for %s ignored", key)
		return
	}

	if !p.queue.Push(rec) {
		logrus.Warnf("Page %s arrived after crawl completion, ignored", key)
	}
}

// writer is the only goroutine that mutates the graph during the crawl
func (p *Pipeline) writer() {
	defer close(p.writerDone)

	for {
		page, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.store(page)
	}
}

func (p *Pipeline) store(page *storage.Page) {
	links := page.Links
	page.Links = nil

	edgesBefore := p.graph.EdgeCount()
	if err := p.graph.AddPage(page); err != nil {
		logrus.Warnf("Failed to store page %s: %v", page.URL, err)
		p.dropped()
		return
	}
	if err := p.graph.RecordLinks(page.URL, links); err != nil {
		logrus.Warnf("Failed to record links of %s: %v", page.URL, err)
	}
	page.Links = links

	if p.tracker != nil {
		p.tracker.RecordPage(page)
		p.tracker.AddLinksRecorded(p.graph.EdgeCount() - edgesBefore)
	}

	p.emit(page)
}

func (p *Pipeline) emit(page *storage.Page) {
	if p.hooks.OnEveryPage == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Page hook panicked on %s: %v", page.URL, r)
		}
	}()
	p.hooks.OnEveryPage(page)
}

func (p *Pipeline) dropped() {
	if p.tracker != nil {
		p.tracker.IncrementPagesDropped()
	}
}

// OnCrawlComplete drains pending pages, freezes the graph, runs the
// analysis and hands the report to the AfterCrawl hook. Only the first call
// does any work; later calls return the same report.
func (p *Pipeline) OnCrawlComplete() *memory.Report {
	p.completeOnce.Do(func() {
		p.queue.Stop()
		if !p.queue.IsEmpty() {
			logrus.Infof("Storing %d queued pages", p.queue.Size())
		}
		<-p.writerDone

		p.graph.Freeze()
		report := p.graph.Analyze(p.cfg.RootURL)
		report.CrawlID = p.crawlID
		report.StartedAt = p.startedAt
		report.EndedAt = time.Now()

		if report.Empty() {
			logrus.Warnf("Crawl of %s finished with no pages", p.cfg.RootURL)
		} else {
			logrus.Infof("Crawl of %s finished: %d pages, %d links, %d unreachable",
				p.cfg.RootURL, report.TotalPages, p.graph.EdgeCount(), len(report.Unreachable))
		}

		p.report = report
		p.afterCrawl(report)
	})
	return p.report
}

func (p *Pipeline) afterCrawl(report *memory.Report) {
	if p.hooks.AfterCrawl == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("After-crawl hook panicked: %v", r)
		}
	}()
	p.hooks.AfterCrawl(report)
}
