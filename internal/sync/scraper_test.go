package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
)

const omegaTemplate = `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"Omega 3 GW","sku":"GW-OMEGA-3","description":"%s","offers":{"price":"250000"}}
</script>
</head><body><ul class="benefits"><li>Hỗ trợ tim mạch</li></ul></body></html>`

// shopFixture is a fake storefront whose base URL and omega-3 description
// can change between runs.
type shopFixture struct {
	mu        sync.Mutex
	baseURL   string
	omegaDesc string
}

func (f *shopFixture) base() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseURL
}

func (f *shopFixture) setBase(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURL = u
}

func (f *shopFixture) desc() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.omegaDesc
}

func (f *shopFixture) setDesc(d string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omegaDesc = d
}

func newShopServer(t *testing.T) *shopFixture {
	t.Helper()
	fixture := &shopFixture{omegaDesc: "Dầu cá tinh khiết"}
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		base := fixture.base()
		fmt.Fprintf(w, `<urlset>
<url><loc>%s/san-pham/omega-3</loc></url>
<url><loc>%s/san-pham/vitamin-c</loc></url>
<url><loc>%s/san-pham/missing</loc></url>
<url><loc>%s/tin-tuc/blog</loc></url>
</urlset>`, base, base, base, base)
	})
	mux.HandleFunc("/san-pham/omega-3", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, omegaTemplate, fixture.desc())
	})
	mux.HandleFunc("/san-pham/vitamin-c", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, templatePage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	fixture.setBase(server.URL)
	return fixture
}

func testSyncConfig(baseURL, dataDir string) Config {
	return Config{
		BaseURL:      baseURL,
		DataDir:      dataDir,
		UserAgent:    "TestBot/1.0",
		Timeout:      5 * time.Second,
		Workers:      3,
		RatePerSec:   1000,
		SitemapPaths: []string{"sitemap.xml"},
	}
}

func decodeProductsFile(t *testing.T, path string) []catalog.Product {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return products
}

func TestScraperRunEndToEnd(t *testing.T) {
	fixture := newShopServer(t)
	dir := t.TempDir()
	state, err := OpenState(filepath.Join(dir, "sync.db"))
	if err != nil {
		t.Fatalf("OpenState: %v", err)
	}
	defer state.Close()

	scraper := NewScraper(testSyncConfig(fixture.base(), dir), WithState(state))
	ctx := context.Background()

	report, err := scraper.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.URLsFound != 3 {
		t.Errorf("URLsFound = %d, want 3 (blog page filtered out)", report.URLsFound)
	}
	if report.PagesParsed != 2 || report.PagesFailed != 1 {
		t.Errorf("parsed/failed = %d/%d, want 2/1", report.PagesParsed, report.PagesFailed)
	}
	if !report.Changed || report.Products != 2 {
		t.Errorf("changed=%v products=%d, want changed with 2 products", report.Changed, report.Products)
	}
	if report.BackupPath != "" {
		t.Errorf("BackupPath = %q, no backup expected on first write", report.BackupPath)
	}

	products := decodeProductsFile(t, report.OutputPath)
	if len(products) != 2 {
		t.Fatalf("products on disk = %d, want 2", len(products))
	}
	if products[0].SKU != "GW-OMEGA-3" || products[1].SKU != "GW-VITC-500" {
		t.Fatalf("product order = [%s, %s]", products[0].SKU, products[1].SKU)
	}
	if products[0].Description != "Dầu cá tinh khiết" || products[0].PriceText != "250000" {
		t.Errorf("omega record = %+v", products[0])
	}
	if products[1].Warnings != "Không dùng quá liều" {
		t.Errorf("vitamin record = %+v", products[1])
	}

	run, err := state.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if run.URLsFound != 3 || run.PagesParsed != 2 || run.PagesFailed != 1 || !run.Changed {
		t.Errorf("recorded run = %+v", run)
	}
	count, err := state.ProductCount(ctx)
	if err != nil {
		t.Fatalf("ProductCount: %v", err)
	}
	if count != 2 {
		t.Errorf("state products = %d, want 2", count)
	}

	// Second run against an unchanged storefront must not rewrite the file.
	report, err = scraper.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Changed {
		t.Error("second run reported a change for identical content")
	}
	if report.BackupPath != "" {
		t.Errorf("BackupPath = %q on unchanged run", report.BackupPath)
	}
	run, err = state.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun after second run: %v", err)
	}
	if run.Changed {
		t.Errorf("second recorded run = %+v, want unchanged", run)
	}

	// A content change must produce a rewrite plus a backup of the old file.
	fixture.setDesc("Công thức nâng cấp EPA cao")
	report, err = scraper.Run(ctx)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if !report.Changed {
		t.Fatal("third run missed the description change")
	}
	if report.BackupPath == "" {
		t.Fatal("no backup recorded for rewrite")
	}
	if _, err := os.Stat(report.BackupPath); err != nil {
		t.Fatalf("backup file: %v", err)
	}
	backup := decodeProductsFile(t, report.BackupPath)
	if backup[0].Description != "Dầu cá tinh khiết" {
		t.Errorf("backup holds %q, want previous description", backup[0].Description)
	}
	products = decodeProductsFile(t, report.OutputPath)
	if products[0].Description != "Công thức nâng cấp EPA cao" {
		t.Errorf("updated description = %q", products[0].Description)
	}
	if products[0].SKU != "GW-OMEGA-3" || products[1].SKU != "GW-VITC-500" {
		t.Errorf("order not preserved across update: [%s, %s]", products[0].SKU, products[1].SKU)
	}
}

func TestScraperDryRunWritesNothing(t *testing.T) {
	fixture := newShopServer(t)
	dir := t.TempDir()
	state, err := OpenState(filepath.Join(dir, "sync.db"))
	if err != nil {
		t.Fatalf("OpenState: %v", err)
	}
	defer state.Close()

	cfg := testSyncConfig(fixture.base(), dir)
	cfg.DryRun = true
	scraper := NewScraper(cfg, WithState(state))

	report, err := scraper.Run(context.Background())
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !report.Changed || report.Products != 2 {
		t.Fatalf("report = %+v, dry run should still detect the change", report)
	}
	if _, err := os.Stat(report.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("products file written during dry run: %v", err)
	}
	if _, err := state.LastRun(context.Background()); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("state recorded during dry run: %v", err)
	}
}

func TestScraperRequiresBaseURL(t *testing.T) {
	scraper := NewScraper(testSyncConfig("", t.TempDir()))
	if _, err := scraper.Run(context.Background()); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestScraperCanceledContext(t *testing.T) {
	fixture := newShopServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scraper := NewScraper(testSyncConfig(fixture.base(), t.TempDir()))
	if _, err := scraper.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMergeProducts(t *testing.T) {
	existing := []catalog.Product{
		{SKU: "A", Name: "A v1"},
		{SKU: "B", Name: "B v1"},
	}
	scraped := []catalog.Product{
		{SKU: "B", Name: "B v2"},
		{SKU: "C", Name: "C v1"},
	}
	merged := mergeProducts(existing, scraped)
	if len(merged) != 3 {
		t.Fatalf("merged = %d entries, want 3", len(merged))
	}
	if merged[0].SKU != "A" || merged[1].SKU != "B" || merged[2].SKU != "C" {
		t.Fatalf("order = [%s, %s, %s], file order then appends", merged[0].SKU, merged[1].SKU, merged[2].SKU)
	}
	if merged[1].Name != "B v2" {
		t.Fatalf("merged[1] = %+v, scraped version must win", merged[1])
	}
}

func TestMergeProductsCollapsesDuplicates(t *testing.T) {
	existing := []catalog.Product{
		{SKU: "A", Name: "first"},
		{SKU: "A", Name: "second"},
	}
	merged := mergeProducts(existing, nil)
	if len(merged) != 1 {
		t.Fatalf("merged = %d entries, want 1", len(merged))
	}
	if merged[0].Name != "second" {
		t.Fatalf("merged[0] = %+v, later duplicate must win", merged[0])
	}
}

func TestReadProductsFileTolerant(t *testing.T) {
	if got := readProductsFile(filepath.Join(t.TempDir(), "absent.json")); got != nil {
		t.Fatalf("missing file = %v, want nil", got)
	}
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := readProductsFile(path); got != nil {
		t.Fatalf("corrupt file = %v, want nil", got)
	}
}

func TestWriteProductsFileKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	original := []byte(`[{"sku":"OLD","name":"cũ"}]`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}
	backup, err := writeProductsFile(path, []catalog.Product{{SKU: "NEW", Name: "mới"}})
	if err != nil {
		t.Fatalf("writeProductsFile: %v", err)
	}
	if backup == "" {
		t.Fatal("no backup path returned")
	}
	saved, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(saved) != string(original) {
		t.Fatalf("backup = %s, want original bytes", saved)
	}
	products := decodeProductsFile(t, path)
	if len(products) != 1 || products[0].SKU != "NEW" {
		t.Fatalf("rewritten file = %+v", products)
	}
}
