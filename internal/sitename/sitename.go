// Package sitename derives per-website storage names from a target URL.
//
// The external crawler names its databases after the site it is crawling.
// The harness must reproduce that derivation exactly, or the stats reader
// and progress monitor end up looking at the wrong files.
package sitename

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Derive returns the storage identifier for rawURL: the host, lower-cased,
// with any "www." prefix removed and "." / "-" mapped to "_". Path, query
// and port do not participate.
func Derive(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.ReplaceAll(host, ".", "_")
	host = strings.ReplaceAll(host, "-", "_")
	return host, nil
}

// CrawlDBPath returns the path of the crawler's frontier/metadata database
// for the given site under dataDir.
func CrawlDBPath(dataDir, site string) string {
	return filepath.Join(dataDir, site+"_crawl.db")
}

// PagesDBPath returns the path of the crawler's page-content database for
// the given site under dataDir.
func PagesDBPath(dataDir, site string) string {
	return filepath.Join(dataDir, site+"_pages.db")
}

// LogPath returns the per-configuration log file the crawler's combined
// output is captured into.
func LogPath(dataDir, label string) string {
	return filepath.Join(dataDir, label+"_crawl.log")
}
