package report

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"sync"

	"github.com/alvmarrod/pagedepth/internal/config"
	"github.com/alvmarrod/pagedepth/internal/crawler"
	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Reporter prints one status line per crawled page and the post-crawl
// summary
type Reporter struct {
	w        io.Writer
	cfg      *config.Config
	root     string
	redirect lipgloss.Style
	failure  lipgloss.Style

	mu sync.Mutex
}

// New creates a reporter writing to w. Colours are only emitted when w is a
// terminal.
func New(w io.Writer, cfg *config.Config) *Reporter {
	root, err := memory.NormalizeURL(cfg.RootURL)
	if err != nil {
		root = cfg.RootURL
	}

	renderer := lipgloss.NewRenderer(w)
	return &Reporter{
		w:        w,
		cfg:      cfg,
		root:     root,
		redirect: renderer.NewStyle().Foreground(lipgloss.Color("4")),
		failure:  renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Hooks returns the crawl callbacks backed by this reporter
func (r *Reporter) Hooks() crawler.Hooks {
	return crawler.Hooks{
		FocusCrawl:  r.Focus,
		OnEveryPage: r.PrintPage,
		AfterCrawl:  r.PrintSummary,
	}
}

// Focus drops links matching the configured exclusion patterns
func (r *Reporter) Focus(page *storage.Page, links []string) []string {
	excludes := r.cfg.Excludes()
	if len(excludes) == 0 {
		return links
	}

	kept := make([]string, 0, len(links))
	for _, link := range links {
		if crawler.IsExcluded(link, excludes) {
			logrus.Debugf("Excluded %s (linked from %s)", link, page.URL)
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

// PrintPage writes the status line of a stored page
func (r *Reporter) PrintPage(page *storage.Page) {
	line := StatusLine(page, r.root)
	switch {
	case page.StatusCode >= 400:
		line = r.failure.Render(line)
	case page.StatusCode >= 300:
		line = r.redirect.Render(line)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, line)

	logrus.Debugf("%s: %s", page.URL, Throughput(page))
}

// StatusLine renders "<code>  <depth>  <secs>s <size> <path>" with the URL
// shown relative to root. A missing or invalid response time is shown as
// "-" instead of a number.
func StatusLine(page *storage.Page, root string) string {
	if page == nil {
		return "-"
	}

	secs := "-"
	if validMs(page.ResponseTimeMs) {
		secs = fmt.Sprintf("%4.2fs", page.ResponseTimeMs/1000)
	}

	path := page.URL
	if root != "" {
		path = strings.TrimPrefix(path, root)
	}

	return fmt.Sprintf("%d  %d  %s %10d %s", page.StatusCode, page.Depth, secs, page.BodySize, path)
}

// Throughput returns the transfer rate of a page, or "n/a" when it cannot
// be computed
func Throughput(page *storage.Page) string {
	if page == nil || !validMs(page.ResponseTimeMs) || page.ResponseTimeMs == 0 || page.BodySize < 0 {
		return "n/a"
	}

	rate := float64(page.BodySize) / (page.ResponseTimeMs / 1000)
	switch {
	case rate >= 1<<20:
		return fmt.Sprintf("%.2f MB/s", rate/(1<<20))
	case rate >= 1<<10:
		return fmt.Sprintf("%.2f KB/s", rate/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", rate)
	}
}

func validMs(ms float64) bool {
	return !math.IsNaN(ms) && !math.IsInf(ms, 0) && ms >= 0
}

// displayURL returns the path of u in relative mode, u otherwise
func displayURL(u string, relative bool) string {
	if !relative {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	if parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}
