package memory

import (
	"fmt"
	"time"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Flush writes every page, collapsed aliases included, and every link to
// the SQLite snapshot under crawlID. Individual write failures are logged and
// returned together.
func (g *Graph) Flush(store *storage.Storage, crawlID string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	startTime := time.Now()
	logrus.Info("Starting flush to database...")

	var errs *multierror.Error
	pagesWritten := 0
	linksWritten := 0

	for pos, p := range g.pages {
		if err := store.UpsertPage(crawlID, pos, p); err != nil {
			logrus.Warnf("Failed to flush page %s: %v", p.URL, err)
			errs = multierror.Append(errs, err)
			continue
		}
		pagesWritten++
	}

	for _, p := range g.pages {
		for _, to := range p.Links {
			if err := store.UpsertLink(crawlID, linksWritten, p.URL, to); err != nil {
				logrus.Warnf("Failed to flush link %s -> %s: %v", p.URL, to, err)
				errs = multierror.Append(errs, err)
				continue
			}
			linksWritten++
		}
	}

	logrus.Infof("Flush complete: %d pages, %d links written in %v", pagesWritten, linksWritten, time.Since(startTime))

	return errs.ErrorOrNil()
}

// VerifySnapshot reloads crawlID from store and compares it with the graph:
// same pages in the same order with the same status, depth and alias, and
// the same set of links.
func (g *Graph) VerifySnapshot(store *storage.Storage, crawlID string) error {
	pages, err := store.LoadPages(crawlID)
	if err != nil {
		return err
	}
	links, err := store.LoadLinks(crawlID)
	if err != nil {
		return err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(pages) != len(g.pages) {
		return fmt.Errorf("%w: snapshot has %d pages, graph has %d", ErrInconsistent, len(pages), len(g.pages))
	}
	for i, saved := range pages {
		p := g.pages[i]
		if saved.URL != p.URL || saved.StatusCode != p.StatusCode || saved.Depth != p.Depth || saved.AliasOf != p.AliasOf {
			return fmt.Errorf("%w: snapshot page %d (%s) differs from %s", ErrInconsistent, i, saved.URL, p.URL)
		}
	}

	if len(links) != len(g.edges) {
		return fmt.Errorf("%w: snapshot has %d links, graph has %d", ErrInconsistent, len(links), len(g.edges))
	}
	for _, l := range links {
		if _, ok := g.edges[l]; !ok {
			return fmt.Errorf("%w: snapshot link %s -> %s not in graph", ErrInconsistent, l.From, l.To)
		}
	}

	return nil
}
