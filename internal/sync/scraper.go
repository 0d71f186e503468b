// Package sync crawls a storefront's sitemaps, scrapes its product pages,
// and maintains the local products.json the advisor indexes. Runs are
// idempotent: output is rewritten only when the merged catalog actually
// changed, with the previous file kept as a timestamped backup.
package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/resilience"
)

// Report summarizes one sync run.
type Report struct {
	URLsFound   int
	PagesParsed int
	PagesFailed int
	Products    int
	Changed     bool
	OutputPath  string
	BackupPath  string
	Duration    time.Duration
}

type Scraper struct {
	cfg     Config
	fetcher *fetcher
	state   *StateStore
	metrics *telemetry.Metrics
}

type Option func(*Scraper)

// WithState attaches the run/product audit store.
func WithState(store *StateStore) Option {
	return func(s *Scraper) {
		s.state = store
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = metrics
	}
}

// WithExecutor replaces the fetch retry policy, mainly for tests.
func WithExecutor(exec *resilience.Executor) Option {
	return func(s *Scraper) {
		if exec != nil {
			s.fetcher.exec = exec
		}
	}
}

func NewScraper(cfg Config, opts ...Option) *Scraper {
	s := &Scraper{cfg: cfg, fetcher: newFetcher(cfg)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run walks the configured sitemaps, scrapes every product page through the
// worker pool, merges the results into the existing products file, and
// writes it back when the content hash moved.
func (s *Scraper) Run(ctx context.Context) (Report, error) {
	logger := common.Logger()
	started := time.Now()
	report := Report{OutputPath: filepath.Join(s.cfg.DataDir, "products.json")}
	if strings.TrimSpace(s.cfg.BaseURL) == "" {
		return report, errors.New("sync: base url not configured")
	}

	urls := collectProductURLs(ctx, s.fetcher, s.cfg)
	report.URLsFound = len(urls)
	if len(urls) == 0 {
		logger.Warn("sync: no product urls in sitemaps", "base", s.cfg.BaseURL)
		report.Duration = time.Since(started)
		return report, ctx.Err()
	}
	logger.Info("sync: crawling product pages", "urls", len(urls), "workers", s.cfg.Workers)

	scraped := s.scrapePages(ctx, urls, &report)
	if err := ctx.Err(); err != nil {
		report.Duration = time.Since(started)
		return report, err
	}
	if len(scraped) == 0 {
		logger.Warn("sync: no products scraped", "failed", report.PagesFailed)
		report.Duration = time.Since(started)
		return report, nil
	}

	existing := readProductsFile(report.OutputPath)
	merged := mergeProducts(existing, scraped)
	report.Products = len(merged)
	mergedHash := hashJSON(merged)
	report.Changed = mergedHash != hashJSON(existing)

	switch {
	case !report.Changed:
		logger.Info("sync: catalog unchanged", "products", len(merged))
	case s.cfg.DryRun:
		logger.Info("sync: dry run, skipping write", "products", len(merged))
	default:
		backup, err := writeProductsFile(report.OutputPath, merged)
		if err != nil {
			report.Duration = time.Since(started)
			return report, err
		}
		report.BackupPath = backup
		logger.Info("sync: catalog updated",
			"path", report.OutputPath, "products", len(merged), "backup", backup)
	}

	if s.state != nil && !s.cfg.DryRun {
		s.recordState(ctx, scraped, report, started, mergedHash)
	}
	report.Duration = time.Since(started)
	return report, nil
}

func (s *Scraper) scrapePages(ctx context.Context, urls []string, report *Report) []catalog.Product {
	logger := common.Logger()
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		logger.Error("sync: worker pool", "error", err)
		return nil
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		pages  = make([]catalog.Product, len(urls))
		parsed = make([]bool, len(urls))
	)
	for i, pageURL := range urls {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			product, err := s.scrapePage(ctx, pageURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.PagesFailed++
				s.metrics.RecordSyncPage("failed")
				if !errors.Is(err, context.Canceled) {
					logger.Warn("sync: page skipped", "url", pageURL, "error", err)
				}
				return
			}
			pages[i] = product
			parsed[i] = true
			report.PagesParsed++
			s.metrics.RecordSyncPage("parsed")
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	scraped := make([]catalog.Product, 0, len(urls))
	for i := range pages {
		if parsed[i] {
			scraped = append(scraped, pages[i])
		}
	}
	return scraped
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string) (catalog.Product, error) {
	body, err := s.fetcher.get(ctx, pageURL)
	if err != nil {
		return catalog.Product{}, err
	}
	s.metrics.RecordSyncPage("fetched")
	return parseProductPage(pageURL, body)
}

func (s *Scraper) recordState(ctx context.Context, scraped []catalog.Product, report Report, started time.Time, outputHash string) {
	logger := common.Logger()
	if err := s.state.UpsertProducts(ctx, scraped); err != nil {
		logger.Warn("sync: state upsert failed", "error", err)
	}
	run := RunRecord{
		StartedAt:     started.UTC(),
		FinishedAt:    time.Now().UTC(),
		URLsFound:     report.URLsFound,
		PagesParsed:   report.PagesParsed,
		PagesFailed:   report.PagesFailed,
		ProductsTotal: report.Products,
		Changed:       report.Changed,
		OutputHash:    outputHash,
	}
	if err := s.state.RecordRun(ctx, run); err != nil {
		logger.Warn("sync: state run record failed", "error", err)
	}
}

// readProductsFile loads the current products file; a missing or corrupt
// file is treated as an empty catalog so the sync can rebuild it.
func readProductsFile(path string) []catalog.Product {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		common.Logger().Warn("sync: existing products unreadable, rebuilding", "path", path, "error", err)
		return nil
	}
	return products
}

// mergeProducts folds freshly scraped products into the existing file
// contents. Known SKUs are updated in place and new SKUs appended, so an
// unchanged storefront yields an identical file and no rewrite.
func mergeProducts(existing, scraped []catalog.Product) []catalog.Product {
	merged := make([]catalog.Product, 0, len(existing)+len(scraped))
	at := make(map[string]int, len(existing)+len(scraped))
	for _, p := range existing {
		if i, ok := at[p.SKU]; ok {
			merged[i] = p
			continue
		}
		at[p.SKU] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range scraped {
		if i, ok := at[p.SKU]; ok {
			merged[i] = p
			continue
		}
		at[p.SKU] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

// writeProductsFile replaces the products file atomically, keeping the
// previous bytes as a timestamped backup alongside it.
func writeProductsFile(path string, merged []catalog.Product) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	backup := ""
	if raw, err := os.ReadFile(path); err == nil {
		backup = filepath.Join(dir, fmt.Sprintf("products.%s.bak.json", time.Now().Format("200601021504")))
		if err := os.WriteFile(backup, raw, 0o644); err != nil {
			return "", fmt.Errorf("write backup: %w", err)
		}
	}
	data, err := encodeProducts(merged)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".products-*.json")
	if err != nil {
		return "", fmt.Errorf("stage products: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage products: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage products: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("stage products: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("replace products: %w", err)
	}
	return backup, nil
}

// encodeProducts renders the catalog with two-space indentation and
// unescaped Vietnamese text, the same shape maintainers hand-edit.
func encodeProducts(products []catalog.Product) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hashJSON(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
