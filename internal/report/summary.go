package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/rodaine/table"
	"github.com/sirupsen/logrus"
)

const timeLayout = "2006-01-02 15:04:05 -0700"

// PrintSummary writes the post-crawl summary and, if configured, the URL
// list file
func (r *Reporter) PrintSummary(rep *memory.Report) {
	r.mu.Lock()
	r.writeSummary(rep)
	r.mu.Unlock()

	if r.cfg.OutputFile == "" {
		return
	}
	if err := WriteURLList(r.cfg.OutputFile, rep.Pages, r.cfg.Relative); err != nil {
		logrus.Errorf("Failed to write URL list: %v", err)
		return
	}
	logrus.Infof("Wrote %d URLs to %s", len(rep.Pages), r.cfg.OutputFile)
}

func (r *Reporter) writeSummary(rep *memory.Report) {
	w := r.w

	fmt.Fprintf(w, "Crawl results for %s\n\n", r.cfg.RootURL)
	fmt.Fprintf(w, "Crawl started at %s\n", rep.StartedAt.Format(timeLayout))
	fmt.Fprintf(w, "        ended at %s\n", rep.EndedAt.Format(timeLayout))
	fmt.Fprintf(w, "Crawl took %.2f minutes...\n", rep.Duration().Minutes())

	if rep.Empty() {
		fmt.Fprintln(w, "\nNo pages crawled")
		return
	}

	r.writeSection("404's", rep.NotFound)
	r.writeSection("301's", rep.Redirected)
	r.writeSection("Errors", rep.ServerErrors)

	fmt.Fprintf(w, "\nTotal pages: %d\n\n", rep.TotalPages)

	tbl := table.New("Depth", "Count").WithWriter(w)
	for _, row := range rep.Histogram {
		tbl.AddRow(row.Depth, row.Count)
	}
	tbl.Print()

	if n := len(rep.Unreachable); n > 0 {
		fmt.Fprintf(w, "\nUnreachable pages: %d\n", n)
		for _, u := range rep.Unreachable {
			fmt.Fprintf(w, "  %s\n", displayURL(u, r.cfg.Relative))
		}
	}
	if n := len(rep.Collapse.Cycles); n > 0 {
		fmt.Fprintf(w, "\nRedirect loops: %d\n", n)
	}
}

// writeSection prints each target followed by the pages linking to it. At
// most backlink_limit sources are listed; the rest are counted.
func (r *Reporter) writeSection(title string, entries []memory.Backlinks) {
	if len(entries) == 0 {
		return
	}

	w := r.w
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, entry := range entries {
		fmt.Fprintln(w, displayURL(entry.Target, r.cfg.Relative))

		shown := entry.Sources
		if limit := r.cfg.Backlinks(); len(shown) > limit {
			shown = shown[:limit]
		}
		for _, src := range shown {
			fmt.Fprintf(w, "  linked from %s\n", displayURL(src, r.cfg.Relative))
		}
		if rest := len(entry.Sources) - len(shown); rest > 0 {
			fmt.Fprintf(w, " ... (and %d more)\n", rest)
		}
	}
}

// WriteURLList writes one URL per line, or one path per line in relative
// mode
func WriteURLList(path string, pages []*storage.Page, relative bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create URL list: %w", err)
	}

	if err := writeURLs(f, pages, relative); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeURLs(w io.Writer, pages []*storage.Page, relative bool) error {
	buf := bufio.NewWriter(w)
	for _, p := range pages {
		if _, err := fmt.Fprintln(buf, displayURL(p.URL, relative)); err != nil {
			return fmt.Errorf("failed to write URL list: %w", err)
		}
	}
	return buf.Flush()
}
