package storage

import "time"

// Unreachable is the depth assigned to pages with no path from the crawl root
const Unreachable = -1

// StatusBand groups HTTP status codes by outcome
type StatusBand int

const (
	BandUnknown StatusBand = iota // fetch failed or status outside 100-599
	BandInformational
	BandSuccess
	BandRedirect
	BandClientError
	BandServerError
)

// String returns the report label of the band
func (b StatusBand) String() string {
	switch b {
	case BandInformational:
		return "informational"
	case BandSuccess:
		return "success"
	case BandRedirect:
		return "redirect"
	case BandClientError:
		return "client_error"
	case BandServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// BandOf classifies a raw status code. Codes outside 100-599 are unknown.
func BandOf(code int) StatusBand {
	switch {
	case code < 100 || code > 599:
		return BandUnknown
	case code >= 500:
		return BandServerError
	case code >= 400:
		return BandClientError
	case code >= 300:
		return BandRedirect
	case code >= 200:
		return BandSuccess
	default:
		return BandInformational
	}
}

// Page represents one fetched result in the crawl graph
type Page struct {
	URL            string
	StatusCode     int
	Depth          int
	BodySize       int
	ResponseTimeMs float64
	RedirectTarget string   // set only for 3xx responses
	Links          []string // accepted outbound links, first-recorded order
	Aliases        []string // redirect URLs collapsed into this page
	AliasOf        string   // final target when this page was collapsed
	FetchError     string
	FetchedAt      time.Time
}

// Band returns the status band of the page
func (p *Page) Band() StatusBand {
	return BandOf(p.StatusCode)
}

// IsRedirect reports whether the page is a 3xx response
func (p *Page) IsRedirect() bool {
	return p.Band() == BandRedirect
}

// IsNotFound reports whether the page is a 404
func (p *Page) IsNotFound() bool {
	return p.StatusCode == 404
}

// Clone returns a deep copy of the page
func (p *Page) Clone() *Page {
	c := *p
	c.Links = append([]string(nil), p.Links...)
	c.Aliases = append([]string(nil), p.Aliases...)
	return &c
}

// Link represents a directed edge between two pages
type Link struct {
	From string
	To   string
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	CrawlID           string         `json:"crawl_id"`
	RootURL           string         `json:"root_url"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	PagesFetched      int            `json:"pages_fetched"`
	PagesFailed       int            `json:"pages_failed"`
	PagesDropped      int            `json:"pages_dropped"`
	LinksRecorded     int            `json:"links_recorded"`
	BytesFetched      int64          `json:"bytes_fetched"`
	StatusBands       map[string]int `json:"status_bands"`
	TotalFetchTimeMs  float64        `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    float64        `json:"avg_fetch_time_ms"`
	TerminationReason string         `json:"termination_reason"`
}
