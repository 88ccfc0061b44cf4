package memory

import (
	"sort"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/sirupsen/logrus"
)

// Classification buckets visible page URLs by status band, in insertion order.
// Every page lands in exactly one bucket.
type Classification struct {
	Success      []string
	Redirected   []string
	NotFound     []string // 404 only
	ClientErrors []string // other 4xx
	ServerErrors []string
	Failed       []string // no usable status: transport errors, 1xx
}

// Backlinks lists the pages linking to a target
type Backlinks struct {
	Target  string
	Sources []string
}

// DepthCount is one row of the depth histogram
type DepthCount struct {
	Depth int
	Count int
}

// Classify buckets every visible page by status band
func (g *Graph) Classify() Classification {
	return ClassifyPages(g.Pages())
}

// ClassifyPages buckets pages by status band, keeping their order
func ClassifyPages(pages []*storage.Page) Classification {
	var c Classification
	for _, p := range pages {
		switch p.Band() {
		case storage.BandSuccess:
			c.Success = append(c.Success, p.URL)
		case storage.BandRedirect:
			c.Redirected = append(c.Redirected, p.URL)
		case storage.BandClientError:
			if p.IsNotFound() {
				c.NotFound = append(c.NotFound, p.URL)
			} else {
				c.ClientErrors = append(c.ClientErrors, p.URL)
			}
		case storage.BandServerError:
			c.ServerErrors = append(c.ServerErrors, p.URL)
		default:
			c.Failed = append(c.Failed, p.URL)
		}
	}
	return c
}

// BacklinksFor returns, for each target in order, the URLs linking to it in
// the order the links were first recorded. Targets nobody links to get an
// empty source list.
func (g *Graph) BacklinksFor(targets []string) []Backlinks {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Backlinks, 0, len(targets))
	for _, target := range targets {
		key, err := NormalizeURL(target)
		if err != nil {
			key = target
		}
		sources := append([]string{}, g.backlinks[key]...)
		result = append(result, Backlinks{Target: key, Sources: sources})
	}
	return result
}

// ShortestPaths recomputes every page depth as its breadth-first distance
// from root over recorded links. A redirect and the page it points to share
// the same depth. Pages with no path from root get storage.Unreachable.
func (g *Graph) ShortestPaths(root string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.pages {
		p.Depth = storage.Unreachable
	}
	if len(g.pages) == 0 {
		return
	}

	rootKey, err := NormalizeURL(root)
	if err != nil {
		logrus.Warnf("Invalid root %q, all pages unreachable: %v", root, err)
		return
	}
	rootIdx, exists := g.index[rootKey]
	if !exists {
		logrus.Warnf("Root %s was not crawled, all %d pages unreachable", rootKey, len(g.pages))
		return
	}

	visited := make([]bool, len(g.pages))
	queue := make([]int, 0, len(g.pages))
	queue = g.reachLocked(rootIdx, 0, visited, queue)

	for head := 0; head < len(queue); head++ {
		cur := g.pages[queue[head]]
		for _, to := range cur.Links {
			next, ok := g.index[to]
			if !ok {
				continue
			}
			queue = g.reachLocked(next, cur.Depth+1, visited, queue)
		}
	}
}

// reachLocked assigns depth to the page at idx and to every page along its
// redirect chain, enqueueing the first non-redirect page reached
func (g *Graph) reachLocked(idx, depth int, visited []bool, queue []int) []int {
	for !visited[idx] {
		visited[idx] = true
		p := g.pages[idx]
		p.Depth = depth

		if !p.IsRedirect() {
			return append(queue, idx)
		}

		next, ok := g.index[p.RedirectTarget]
		if !ok {
			return queue
		}
		idx = next
	}
	return queue
}

// DepthHistogram counts visible reachable pages per depth, ascending
func (g *Graph) DepthHistogram() []DepthCount {
	return Histogram(g.Pages())
}

// Histogram counts pages per depth in ascending depth order. Unreachable
// pages are left out.
func Histogram(pages []*storage.Page) []DepthCount {
	counts := make(map[int]int)
	for _, p := range pages {
		if p.Depth == storage.Unreachable {
			continue
		}
		counts[p.Depth]++
	}

	histogram := make([]DepthCount, 0, len(counts))
	for depth, count := range counts {
		histogram = append(histogram, DepthCount{Depth: depth, Count: count})
	}
	sort.Slice(histogram, func(i, j int) bool {
		return histogram[i].Depth < histogram[j].Depth
	})
	return histogram
}

// UnreachableURLs lists visible pages with no path from the root
func (g *Graph) UnreachableURLs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var urls []string
	for _, p := range g.pages {
		if p.AliasOf == "" && p.Depth == storage.Unreachable {
			urls = append(urls, p.URL)
		}
	}
	return urls
}
