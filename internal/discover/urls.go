package discover

import (
	"net/url"
	"sort"
	"strings"
)

// productPathMarkers identify URLs that very likely point at a product
// detail page across the supported platforms.
var productPathMarkers = []string{
	"/product/",
	"/products/",
	"/product-page/",
	"/p/",
	"/pd/",
	"/item/",
	"/items/",
	"/shop/",
}

// categoryPathMarkers identify listing pages worth crawling through.
var categoryPathMarkers = []string{
	"/shop",
	"/store",
	"/products",
	"/collections",
	"/category",
	"/categories",
	"/product-category",
	"/c/",
}

// categoryProbePaths are fetched directly off the root when the sitemap
// yields nothing. Ordered by how common they are across platforms.
var categoryProbePaths = []string{
	"/shop",
	"/store",
	"/products",
	"/collections/all",
	"/product-category",
	"/category",
}

// skipExtensions are asset URLs an <a href> sometimes points at.
var skipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
	".pdf", ".zip", ".css", ".js", ".ico", ".xml",
}

// NormalizeURL canonicalizes a link for dedupe: lowercased scheme and host,
// fragment dropped, query parameters sorted, trailing slash trimmed from
// non-root paths. Returns "" for anything unparseable or non-HTTP.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err == nil {
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var parts []string
			for _, k := range keys {
				vs := values[k]
				sort.Strings(vs)
				for _, v := range vs {
					parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
				}
			}
			u.RawQuery = strings.Join(parts, "&")
		}
	}
	return u.String()
}

// looksLikeProductURL reports whether a path matches the product detail
// conventions of the supported platforms. A bare ".html" suffix counts
// because Magento and many static sites use it for detail pages.
func looksLikeProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if hasSkippedExtension(path) {
		return false
	}
	for _, marker := range productPathMarkers {
		if idx := strings.Index(path, marker); idx >= 0 {
			// The marker must be followed by a slug, not end the path:
			// /products/ alone is a listing.
			if len(path) > idx+len(marker) {
				return true
			}
		}
	}
	return strings.HasSuffix(path, ".html")
}

func looksLikeCategoryURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if hasSkippedExtension(path) {
		return false
	}
	for _, marker := range categoryPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func hasSkippedExtension(path string) bool {
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(stripWWW(ua.Host), stripWWW(ub.Host))
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
