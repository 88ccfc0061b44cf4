package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/pagedepth/internal/storage"
)

// Tracker holds and manages crawl metrics
type Tracker struct {
	mu         sync.Mutex
	data       storage.Metrics
	fetchCount int
}

// NewTracker creates a new metrics tracker for one crawl run
func NewTracker(crawlID, rootURL string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			CrawlID:     crawlID,
			RootURL:     rootURL,
			StartTime:   time.Now(),
			StatusBands: make(map[string]int),
		},
	}
}

// RecordPage accounts for one page stored in the graph
func (t *Tracker) RecordPage(p *storage.Page) {
	t.mu.Lock()
	defer t.mu.Unlock()

	band := p.Band()
	if band == storage.BandUnknown {
		t.data.PagesFailed++
	} else {
		t.data.PagesFetched++
	}
	t.data.StatusBands[band.String()]++
	t.data.BytesFetched += int64(p.BodySize)

	if p.ResponseTimeMs > 0 {
		t.data.TotalFetchTimeMs += p.ResponseTimeMs
		t.fetchCount++
	}
}

// IncrementPagesDropped counts fetch events that could not be stored
func (t *Tracker) IncrementPagesDropped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesDropped++
}

// AddLinksRecorded adds to the recorded links counter
func (t *Tracker) AddLinksRecorded(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LinksRecorded += n
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() storage.Metrics {
	snapshot := t.data
	snapshot.StatusBands = make(map[string]int, len(t.data.StatusBands))
	for band, n := range t.data.StatusBands {
		snapshot.StatusBands[band] = n
	}
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.data.TotalFetchTimeMs / float64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Pages: %d fetched, %d failed, %d dropped | Links: %d | Bytes: %d",
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.PagesDropped,
		t.data.LinksRecorded,
		t.data.BytesFetched,
	)
}
