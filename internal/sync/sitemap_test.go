package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://shop.example/san-pham/omega-3</loc></url>
  <url><loc>https://shop.example/san-pham/vitamin-c</loc></url>
  <url><loc>https://shop.example/tin-tuc/khuyen-mai</loc></url>
  <url><loc> https://shop.example/product/joint-plus </loc></url>
</urlset>`

func TestExtractLocs(t *testing.T) {
	locs, err := extractLocs([]byte(sampleSitemap))
	if err != nil {
		t.Fatalf("extractLocs: %v", err)
	}
	want := []string{
		"https://shop.example/san-pham/omega-3",
		"https://shop.example/san-pham/vitamin-c",
		"https://shop.example/tin-tuc/khuyen-mai",
		"https://shop.example/product/joint-plus",
	}
	if len(locs) != len(want) {
		t.Fatalf("got %d locs, want %d: %v", len(locs), len(want), locs)
	}
	for i, loc := range locs {
		if loc != want[i] {
			t.Errorf("loc[%d] = %q, want %q", i, loc, want[i])
		}
	}
}

func TestExtractLocsSitemapIndex(t *testing.T) {
	index := `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://shop.example/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://shop.example/sitemap-2.xml</loc></sitemap>
</sitemapindex>`
	locs, err := extractLocs([]byte(index))
	if err != nil {
		t.Fatalf("extractLocs: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locs, want 2", len(locs))
	}
}

func TestExtractLocsMalformed(t *testing.T) {
	if _, err := extractLocs([]byte("<urlset><loc>unclosed")); err == nil {
		t.Fatal("expected error for truncated xml")
	}
}

func TestIsProductURL(t *testing.T) {
	cases := map[string]bool{
		"https://shop.example/san-pham/omega-3":   true,
		"https://shop.example/product/joint":      true,
		"https://shop.example/products/42":        true,
		"https://shop.example/tin-tuc/khuyen-mai": false,
		"https://shop.example/":                   false,
	}
	for loc, want := range cases {
		if got := isProductURL(loc); got != want {
			t.Errorf("isProductURL(%q) = %v, want %v", loc, got, want)
		}
	}
}

func TestCollectProductURLsSkipsBrokenVariants(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/product-sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>https://shop.example/san-pham/b</loc></url>
  <url><loc>https://shop.example/san-pham/a</loc></url>
  <url><loc>https://shop.example/san-pham/a</loc></url>
  <url><loc>https://shop.example/blog/post</loc></url>
</urlset>`))
	})
	mux.HandleFunc("/sitemap_products.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not xml at all <"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := Config{BaseURL: server.URL}
	cfg.applyDefaults()
	cfg.RatePerSec = 1000

	urls := collectProductURLs(context.Background(), newFetcher(cfg), cfg)
	want := []string{
		"https://shop.example/san-pham/a",
		"https://shop.example/san-pham/b",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d: %v", len(urls), len(want), urls)
	}
	for i, u := range urls {
		if u != want[i] {
			t.Errorf("url[%d] = %q, want %q", i, u, want[i])
		}
	}
}

func TestJoinURL(t *testing.T) {
	got, err := joinURL("https://shop.example/base/", "sitemap.xml")
	if err != nil {
		t.Fatalf("joinURL: %v", err)
	}
	if got != "https://shop.example/base/sitemap.xml" {
		t.Fatalf("joinURL = %q", got)
	}
	abs, err := joinURL("https://shop.example", "https://other.example/sitemap.xml")
	if err != nil {
		t.Fatalf("joinURL absolute: %v", err)
	}
	if abs != "https://other.example/sitemap.xml" {
		t.Fatalf("joinURL absolute = %q", abs)
	}
}
