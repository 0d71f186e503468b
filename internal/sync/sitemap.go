package sync

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/huyndo/tpcn-advisor/internal/common"
)

// productPathMarkers identify product detail pages among sitemap entries.
// Vietnamese storefronts mix localized and English slugs, so both are
// accepted.
var productPathMarkers = []string{"/product/", "/san-pham/", "/products/"}

// extractLocs pulls every <loc> value out of a sitemap document. Token
// scanning keeps namespace handling out of the way and covers both the
// urlset and sitemapindex layouts with one pass.
func extractLocs(data []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var (
		locs  []string
		inLoc bool
		text  strings.Builder
	)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "loc" {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "loc" {
				inLoc = false
				if loc := strings.TrimSpace(text.String()); loc != "" {
					locs = append(locs, loc)
				}
			}
		}
	}
	return locs, nil
}

func isProductURL(loc string) bool {
	for _, marker := range productPathMarkers {
		if strings.Contains(loc, marker) {
			return true
		}
	}
	return false
}

func joinURL(base, ref string) (string, error) {
	parsedBase, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	parsedRef, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return parsedBase.ResolveReference(parsedRef).String(), nil
}

// collectProductURLs tries every configured sitemap variant and gathers the
// product page URLs they expose. Unreachable or malformed sitemaps are
// skipped so one broken variant never sinks the run. The result is deduped
// and sorted for a stable crawl order.
func collectProductURLs(ctx context.Context, f *fetcher, cfg Config) []string {
	logger := common.Logger()
	seen := make(map[string]struct{})
	for _, path := range cfg.SitemapPaths {
		sitemapURL, err := joinURL(cfg.BaseURL, path)
		if err != nil {
			logger.Warn("sync: bad sitemap path", "path", path, "error", err)
			continue
		}
		body, err := f.get(ctx, sitemapURL)
		if err != nil {
			logger.Debug("sync: sitemap unavailable", "url", sitemapURL, "error", err)
			continue
		}
		locs, err := extractLocs(body)
		if err != nil {
			logger.Warn("sync: sitemap parse failed", "url", sitemapURL, "error", err)
			continue
		}
		for _, loc := range locs {
			if isProductURL(loc) {
				seen[loc] = struct{}{}
			}
		}
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
