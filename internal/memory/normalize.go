package memory

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/alvmarrod/pagedepth/internal/storage"
)

// NormalizeURL returns the canonical key of an absolute URL: scheme and host
// lower-cased, default ports and fragment removed, empty path set to "/".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// SanitizePage replaces invalid numeric fields and unusable redirect targets
// with defaults. It returns the names of the fields it changed.
func SanitizePage(p *storage.Page) []string {
	var fixed []string

	if p.StatusCode < 0 || p.StatusCode > 999 {
		p.StatusCode = 0
		fixed = append(fixed, "status_code")
	}
	if p.BodySize < 0 {
		p.BodySize = 0
		fixed = append(fixed, "body_size")
	}
	if math.IsNaN(p.ResponseTimeMs) || math.IsInf(p.ResponseTimeMs, 0) || p.ResponseTimeMs < 0 {
		p.ResponseTimeMs = 0
		fixed = append(fixed, "response_time_ms")
	}
	if p.Depth < 0 && p.Depth != storage.Unreachable {
		p.Depth = storage.Unreachable
		fixed = append(fixed, "depth")
	}

	if p.IsRedirect() {
		if p.RedirectTarget != "" {
			target, err := NormalizeURL(p.RedirectTarget)
			if err != nil {
				p.RedirectTarget = ""
				fixed = append(fixed, "redirect_target")
			} else {
				p.RedirectTarget = target
			}
		}
		if len(p.Links) > 0 {
			p.Links = nil
			fixed = append(fixed, "links")
		}
	} else if p.RedirectTarget != "" {
		p.RedirectTarget = ""
		fixed = append(fixed, "redirect_target")
	}

	return fixed
}
