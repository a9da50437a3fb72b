package storage

import (
	"net/url"
	"strings"
)

// HostSegment turns the host of rawURL into a filesystem-safe directory name.
// Ports are kept, with ":" replaced by "_".
func HostSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}

	host := strings.ToLower(parsed.Host)
	host = strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(host)
	host = strings.Trim(host, "._")
	if host == "" {
		return "unknown"
	}
	return host
}

// ShortID returns the first 8 chars of a CDP target ID.
func ShortID(targetID string) string {
	if len(targetID) >= 8 {
		return targetID[:8]
	}
	return targetID
}
