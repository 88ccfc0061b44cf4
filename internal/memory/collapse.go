package memory

import (
	"strings"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/sirupsen/logrus"
)

// CollapseResult describes what CollapseRedirectAliases did
type CollapseResult struct {
	Collapsed map[string]string // alias URL -> final URL
	Cycles    [][]string        // redirect loops, left uncollapsed
	DeadEnds  []string          // redirects whose target was never stored
}

const (
	chainUnknown = -2 // resolution not computed yet
	chainOpen    = -1 // chain ends in a cycle or outside the graph
)

// CollapseRedirectAliases merges redirect chains into the non-redirect page
// they end at. Each redirect on a resolved chain is hidden behind AliasOf,
// links pointing at it are rewritten to the final page and its backlinks
// are attributed to the final page. Chains that loop or leave the graph are
// left untouched. Running it again is a no-op.
func (g *Graph) CollapseRedirectAliases() CollapseResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := CollapseResult{Collapsed: make(map[string]string)}

	n := len(g.pages)
	resolved := make([]int, n)
	for i := range resolved {
		resolved[i] = chainUnknown
	}
	walkMark := make([]int, n) // id of the walk that last visited each page

	for start, p := range g.pages {
		if !p.IsRedirect() || p.AliasOf != "" || resolved[start] != chainUnknown {
			continue
		}

		walkID := start + 1
		var path []int
		final := chainOpen
		cur := start

		for {
			if resolved[cur] != chainUnknown {
				final = resolved[cur]
				break
			}

			page := g.pages[cur]
			if page.AliasOf != "" {
				final = g.index[page.AliasOf]
				break
			}
			if !page.IsRedirect() {
				final = cur
				break
			}

			if walkMark[cur] == walkID {
				cycle := g.cycleFrom(path, cur)
				result.Cycles = append(result.Cycles, cycle)
				logrus.Warnf("Redirect cycle detected, leaving %d pages uncollapsed: %s",
					len(cycle), strings.Join(cycle, " -> "))
				break
			}
			walkMark[cur] = walkID
			path = append(path, cur)

			next, ok := g.index[page.RedirectTarget]
			if !ok {
				result.DeadEnds = append(result.DeadEnds, page.URL)
				break
			}
			cur = next
		}

		for _, idx := range path {
			resolved[idx] = final
		}
	}

	for idx, p := range g.pages {
		if !p.IsRedirect() || p.AliasOf != "" || resolved[idx] < 0 {
			continue
		}
		final := g.pages[resolved[idx]]
		g.mergeAliasLocked(p, final)
		result.Collapsed[p.URL] = final.URL
	}

	if len(result.Collapsed) > 0 {
		logrus.Debugf("Collapsed %d redirect aliases", len(result.Collapsed))
	}
	return result
}

// cycleFrom returns the URLs of the loop that starts at idx within path
func (g *Graph) cycleFrom(path []int, idx int) []string {
	var cycle []string
	for i, p := range path {
		if p == idx {
			for _, member := range path[i:] {
				cycle = append(cycle, g.pages[member].URL)
			}
			break
		}
	}
	return cycle
}

// mergeAliasLocked hides alias behind final and moves its inbound links
func (g *Graph) mergeAliasLocked(alias, final *storage.Page) {
	alias.AliasOf = final.URL
	final.Aliases = append(final.Aliases, alias.URL)

	sources := append([]string(nil), g.backlinks[alias.URL]...)
	for _, from := range sources {
		idx, ok := g.index[from]
		if !ok {
			continue
		}
		src := g.pages[idx]

		pos := indexOf(src.Links, alias.URL)
		g.removeEdgeLocked(src, alias.URL)
		if src.URL == final.URL {
			continue
		}
		if g.addEdgeLocked(src, final.URL) && pos >= 0 {
			// keep the rewritten link where the alias link used to be
			last := len(src.Links) - 1
			copy(src.Links[pos+1:], src.Links[pos:last])
			src.Links[pos] = final.URL
		}
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
