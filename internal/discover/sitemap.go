package discover

import (
	"context"
	"encoding/xml"
	"strings"
)

// sitemapPaths are tried in order off the site root. WordPress and Wix both
// expose an index at /sitemap.xml; WooCommerce additionally publishes a
// dedicated product sitemap.
var sitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/product-sitemap.xml",
	"/wp-sitemap.xml",
}

const maxChildSitemaps = 10

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// fromSitemaps walks the well-known sitemap locations and returns every
// same-host product URL found. A sitemap index is recursed one level deep,
// product-named children first.
func (d *Discoverer) fromSitemaps(ctx context.Context, root string) []string {
	for _, path := range sitemapPaths {
		if ctx.Err() != nil {
			return nil
		}
		urls := d.readSitemap(ctx, strings.TrimSuffix(root, "/")+path, root, true)
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func (d *Discoverer) readSitemap(ctx context.Context, sitemapURL, root string, recurse bool) []string {
	page, err := d.fetcher.FetchStatic(ctx, sitemapURL)
	if err != nil {
		return nil
	}
	body := []byte(page.HTML)

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 && recurse {
		return d.readSitemapIndex(ctx, index, root)
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil
	}
	var out []string
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || !sameHost(loc, root) {
			continue
		}
		if looksLikeProductURL(loc) {
			out = append(out, loc)
		}
	}
	return out
}

func (d *Discoverer) readSitemapIndex(ctx context.Context, index sitemapIndex, root string) []string {
	var children []string
	for _, sm := range index.Sitemaps {
		children = append(children, strings.TrimSpace(sm.Loc))
	}
	// Product sitemaps first so the link cap fills with detail pages
	// rather than blog posts.
	var ordered []string
	for _, loc := range children {
		if strings.Contains(strings.ToLower(loc), "product") {
			ordered = append(ordered, loc)
		}
	}
	for _, loc := range children {
		if !strings.Contains(strings.ToLower(loc), "product") {
			ordered = append(ordered, loc)
		}
	}

	var out []string
	for i, loc := range ordered {
		if i >= maxChildSitemaps || ctx.Err() != nil || len(out) >= d.maxLinks {
			break
		}
		out = append(out, d.readSitemap(ctx, loc, root, false)...)
	}
	return out
}
