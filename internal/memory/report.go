package memory

import (
	"time"

	"github.com/alvmarrod/pagedepth/internal/storage"
)

// Report is the read-only result of the post-crawl analysis pass
type Report struct {
	CrawlID        string
	Root           string
	StartedAt      time.Time
	EndedAt        time.Time
	Classification Classification // before redirect collapsing
	NotFound       []Backlinks
	Redirected     []Backlinks
	ServerErrors   []Backlinks
	Collapse       CollapseResult
	Pages          []*storage.Page // after redirect collapsing, insertion order
	Histogram      []DepthCount
	Unreachable    []string
	TotalPages     int
}

// Empty reports whether the crawl produced no pages
func (r *Report) Empty() bool {
	return r.TotalPages == 0
}

// Duration returns the wall-clock crawl time
func (r *Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Analyze runs the batch analysis: classification and backlinks on the
// crawled pages, then shortest-path depths from root, redirect alias
// collapsing and the depth histogram of the collapsed page set.
func (g *Graph) Analyze(root string) *Report {
	r := &Report{Root: root}

	r.Classification = g.Classify()
	r.NotFound = g.BacklinksFor(r.Classification.NotFound)
	r.Redirected = g.BacklinksFor(r.Classification.Redirected)
	r.ServerErrors = g.BacklinksFor(r.Classification.ServerErrors)

	g.ShortestPaths(root)
	r.Collapse = g.CollapseRedirectAliases()

	r.Pages = g.Pages()
	r.Histogram = Histogram(r.Pages)
	r.Unreachable = g.UnreachableURLs()
	r.TotalPages = len(r.Pages)

	return r
}
