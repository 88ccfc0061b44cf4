package memory

import (
	"fmt"
	"sync"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/sirupsen/logrus"
)

// Graph holds crawled pages and their links in memory.
//
// Pages live in an arena ordered by insertion; forward edges are kept in each
// page's Links and mirrored by a reverse index updated in the same critical
// section. Pages are never removed: redirect aliases are hidden by setting
// AliasOf instead.
type Graph struct {
	pages     []*storage.Page           // arena, insertion order
	index     map[string]int            // normalized URL -> arena index
	backlinks map[string][]string       // target URL -> linking URLs, first-recorded order
	edges     map[storage.Link]struct{} // forward edge set
	frozen    bool
	mu        sync.RWMutex
}

// New creates an empty page graph
func New() *Graph {
	return &Graph{
		index:     make(map[string]int),
		backlinks: make(map[string][]string),
		edges:     make(map[storage.Link]struct{}),
	}
}

// AddPage inserts a fetched page, or updates it in place if its URL is
// already stored. Links carried by the page are recorded as outbound edges.
// Fields that fail validation are replaced with defaults; only a page
// without a usable URL is rejected.
func (g *Graph) AddPage(p *storage.Page) error {
	if p == nil {
		return fmt.Errorf("%w: nil page", ErrMalformedPage)
	}

	key, err := NormalizeURL(p.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	rec := p.Clone()
	rec.URL = key
	for _, field := range SanitizePage(rec) {
		logrus.Debugf("Page %s: replaced invalid %s with default", key, field)
	}
	links := rec.Links
	rec.Links = nil
	rec.Aliases = nil
	rec.AliasOf = ""

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}

	if idx, exists := g.index[key]; exists {
		existing := g.pages[idx]
		if rec.IsRedirect() {
			g.dropOutboundLocked(existing)
		} else {
			rec.Links = existing.Links
		}
		rec.Aliases = existing.Aliases
		rec.AliasOf = existing.AliasOf
		g.pages[idx] = rec
	} else {
		g.index[key] = len(g.pages)
		g.pages = append(g.pages, rec)
	}

	g.recordLinksLocked(rec, links)
	return nil
}

// RecordLinks adds outbound edges from a stored page. Duplicate edges,
// self-links and unparseable targets are ignored, as are links from
// redirect pages.
func (g *Graph) RecordLinks(from string, to []string) error {
	key, err := NormalizeURL(from)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrFrozen
	}

	idx, exists := g.index[key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPageNotFound, key)
	}

	g.recordLinksLocked(g.pages[idx], to)
	return nil
}

// recordLinksLocked appends forward edges and their reverse entries
func (g *Graph) recordLinksLocked(src *storage.Page, targets []string) {
	if len(targets) == 0 {
		return
	}
	if src.IsRedirect() {
		logrus.Debugf("Ignoring %d links on redirect page %s", len(targets), src.URL)
		return
	}

	for _, raw := range targets {
		to, err := NormalizeURL(raw)
		if err != nil || to == src.URL {
			continue
		}
		g.addEdgeLocked(src, to)
	}
}

func (g *Graph) addEdgeLocked(src *storage.Page, to string) bool {
	edge := storage.Link{From: src.URL, To: to}
	if _, exists := g.edges[edge]; exists {
		return false
	}
	g.edges[edge] = struct{}{}
	src.Links = append(src.Links, to)
	g.backlinks[to] = append(g.backlinks[to], src.URL)
	return true
}

func (g *Graph) removeEdgeLocked(src *storage.Page, to string) {
	edge := storage.Link{From: src.URL, To: to}
	if _, exists := g.edges[edge]; !exists {
		return
	}
	delete(g.edges, edge)
	src.Links = removeString(src.Links, to)

	remaining := removeString(g.backlinks[to], src.URL)
	if len(remaining) == 0 {
		delete(g.backlinks, to)
	} else {
		g.backlinks[to] = remaining
	}
}

// dropOutboundLocked removes every forward edge of a page
func (g *Graph) dropOutboundLocked(src *storage.Page) {
	for _, to := range append([]string(nil), src.Links...) {
		g.removeEdgeLocked(src, to)
	}
}

// Get retrieves a copy of a page by URL, including collapsed aliases
func (g *Graph) Get(rawURL string) (*storage.Page, bool) {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if idx, exists := g.index[key]; exists {
		return g.pages[idx].Clone(), true
	}
	return nil, false
}

// Pages returns copies of all pages not collapsed into an alias target, in
// insertion order
func (g *Graph) Pages() []*storage.Page {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pages := make([]*storage.Page, 0, len(g.pages))
	for _, p := range g.pages {
		if p.AliasOf != "" {
			continue
		}
		pages = append(pages, p.Clone())
	}
	return pages
}

// Len returns the number of visible pages
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, p := range g.pages {
		if p.AliasOf == "" {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of recorded forward edges
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Freeze rejects further mutation through AddPage and RecordLinks. Batch
// analysis is still allowed.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether Freeze has been called
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// CheckConsistency rebuilds the reverse index from forward links and
// compares it with the maintained one
func (g *Graph) CheckConsistency() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rebuilt := make(map[storage.Link]struct{})
	for _, p := range g.pages {
		for _, to := range p.Links {
			edge := storage.Link{From: p.URL, To: to}
			if _, dup := rebuilt[edge]; dup {
				return fmt.Errorf("%w: duplicate link %s -> %s", ErrInconsistent, edge.From, edge.To)
			}
			rebuilt[edge] = struct{}{}
		}
	}

	if len(rebuilt) != len(g.edges) {
		return fmt.Errorf("%w: %d forward links, %d in edge set", ErrInconsistent, len(rebuilt), len(g.edges))
	}

	reverse := 0
	for to, sources := range g.backlinks {
		for _, from := range sources {
			if _, ok := rebuilt[storage.Link{From: from, To: to}]; !ok {
				return fmt.Errorf("%w: backlink %s <- %s has no forward link", ErrInconsistent, to, from)
			}
			reverse++
		}
	}
	if reverse != len(rebuilt) {
		return fmt.Errorf("%w: %d backlinks for %d forward links", ErrInconsistent, reverse, len(rebuilt))
	}

	return nil
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
