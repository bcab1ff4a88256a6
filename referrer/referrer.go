// Package referrer canonicalizes raw referrer URLs into stable traffic sources.
package referrer

import (
	"net/url"
	"strings"
)

// Referrer source types.
const (
	TypeDirect   = "direct"
	TypeSearch   = "search"
	TypeSocial   = "social"
	TypeVideo    = "video"
	TypeEmail    = "email"
	TypeNews     = "news"
	TypeAI       = "ai"
	TypeUnknown  = "unknown"
	DirectGroup  = "direct"
	DirectName   = "Direct"
)

// Info is the parsed form of a referrer URL.
type Info struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// GroupKey Returns the canonical grouping key for the referrer: the lowercased
// domain, or the direct sentinel when no domain could be resolved.
func (i Info) GroupKey() string {
	if i.Domain == "" {
		return DirectGroup
	}
	return strings.ToLower(i.Domain)
}

// directInfo is the sentinel for empty, unparseable and self referrals.
var directInfo = Info{Type: TypeDirect, Name: DirectName}

// Query parameters conventionally carrying a search term.
var searchParams = []string{"q", "query", "search"}

// Parse canonicalizes a raw referrer URL. siteHost, when non-empty, is the
// tracked site's own hostname; referrals from it or any of its subdomains are
// treated as direct.
func Parse(rawURL, siteHost string) Info {
	if rawURL == "" || rawURL == DirectName {
		return directInfo
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		// Bare hostnames like "google.com" arrive without a scheme.
		u, err = url.Parse("http://" + rawURL)
		if err != nil || u.Hostname() == "" {
			return directInfo
		}
	}

	host := strings.ToLower(u.Hostname())
	if isSelfReferral(host, siteHost) {
		return directInfo
	}

	if entry, domain, found := lookup(host); found {
		return Info{Type: entry.Type, Name: entry.Name, Domain: domain, URL: rawURL}
	}
	if hasSearchParam(u) {
		return Info{Type: TypeSearch, Name: host, Domain: host, URL: rawURL}
	}
	return Info{Type: TypeUnknown, Name: host, Domain: host, URL: rawURL}
}

func isSelfReferral(host, siteHost string) bool {
	if siteHost == "" {
		return false
	}
	siteHost = strings.ToLower(siteHost)
	return host == siteHost || strings.HasSuffix(host, "."+siteHost)
}

func hasSearchParam(u *url.URL) bool {
	query := u.Query()
	for _, param := range searchParams {
		if query.Get(param) != "" {
			return true
		}
	}
	return false
}
