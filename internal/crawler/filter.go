package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/alvmarrod/pagedepth/internal/config"
	"github.com/alvmarrod/pagedepth/internal/memory"
	"github.com/alvmarrod/pagedepth/internal/storage"
)

// LinkFilter decides which links found on a page are scheduled for fetching.
// Site-specific exclusions are left to the FocusCrawl hook. It holds no
// mutable state, so the same page and candidates always produce the same
// result.
type LinkFilter struct {
	rootHost string
	sameHost bool
	maxLinks int
}

// NewLinkFilter builds a filter from a validated configuration
func NewLinkFilter(cfg *config.Config) (*LinkFilter, error) {
	host, err := ExtractHost(cfg.RootURL)
	if err != nil || host == "" {
		return nil, fmt.Errorf("invalid root URL %q: %v", cfg.RootURL, err)
	}

	return &LinkFilter{
		rootHost: host,
		sameHost: cfg.SameHost(),
		maxLinks: cfg.MaxLinksPerPage,
	}, nil
}

// ExtractHost extracts the lower-cased hostname from an absolute URL string
func ExtractHost(urlStr string) (string, error) {
	// Handle protocol-relative URLs
	if strings.HasPrefix(urlStr, "//") {
		urlStr = "https:" + urlStr
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// IsExcluded checks if a link matches any exclusion pattern
func IsExcluded(link string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(link) {
			return true
		}
	}
	return false
}

// Filter resolves candidates against the page URL and returns the accepted
// links, normalized and deduplicated in first-seen order. Redirect pages
// yield no links.
func (f *LinkFilter) Filter(page *storage.Page, candidates []string) []string {
	if page == nil || page.IsRedirect() {
		return nil
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil
	}
	self, _ := memory.NormalizeURL(page.URL)

	seen := make(map[string]bool)
	var accepted []string

	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)

		// Skip mailto:, javascript:, ftp: and friends
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}

		link, err := memory.NormalizeURL(resolved.String())
		if err != nil || link == self {
			continue
		}

		if f.sameHost && !strings.EqualFold(resolved.Hostname(), f.rootHost) {
			continue
		}

		if seen[link] {
			continue
		}
		seen[link] = true
		accepted = append(accepted, link)

		if f.maxLinks > 0 && len(accepted) >= f.maxLinks {
			break
		}
	}

	return accepted
}
