package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/resilience"
)

const (
	productsFile = "products.json"
	combosFile   = "combos.json"
	symptomsFile = "symptoms.json"
)

// SourceLoader assembles a Catalog from the configured sources: products
// from the remote feed when one is configured, combos and symptoms from the
// local data directory. Every failure is resolved internally by falling
// back to the local files, so Load never reports an error.
type SourceLoader struct {
	cfg     Config
	client  *http.Client
	exec    *resilience.Executor
	metrics *telemetry.Metrics
}

type LoaderOption func(*SourceLoader)

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *SourceLoader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithExecutor replaces the default resilience executor.
func WithExecutor(exec *resilience.Executor) LoaderOption {
	return func(l *SourceLoader) {
		if exec != nil {
			l.exec = exec
		}
	}
}

// WithMetrics attaches fetch outcome counters.
func WithMetrics(metrics *telemetry.Metrics) LoaderOption {
	return func(l *SourceLoader) {
		l.metrics = metrics
	}
}

func NewSourceLoader(cfg Config, opts ...LoaderOption) *SourceLoader {
	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	loader := &SourceLoader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		exec:   resilience.NewExecutor(resilience.DefaultConfig()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(loader)
		}
	}
	return loader
}

// Load builds a catalog snapshot from the configured sources.
func (l *SourceLoader) Load(ctx context.Context) Catalog {
	cat := Catalog{
		Products: l.loadProducts(ctx),
		Combos:   readJSONList[Combo](filepath.Join(l.cfg.DataDir, combosFile)),
		Symptoms: readJSONList[Symptom](filepath.Join(l.cfg.DataDir, symptomsFile)),
	}
	common.Logger().Info("catalog: loaded",
		"products", len(cat.Products),
		"combos", len(cat.Combos),
		"symptoms", len(cat.Symptoms),
	)
	return cat
}

func (l *SourceLoader) loadProducts(ctx context.Context) []Product {
	localPath := filepath.Join(l.cfg.DataDir, productsFile)
	if !l.cfg.remoteConfigured() {
		l.metrics.RecordLoaderFetch("local", "ok")
		return readJSONList[Product](localPath)
	}
	products, err := l.fetchRemoteProducts(ctx)
	if err != nil {
		common.Logger().Warn("catalog: remote products fetch failed, using local fallback",
			"url", l.cfg.ProductsURL, "error", err)
		l.metrics.RecordLoaderFetch("remote", "fallback")
		return readJSONList[Product](localPath)
	}
	l.metrics.RecordLoaderFetch("remote", "ok")
	return products
}

func (l *SourceLoader) fetchRemoteProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := l.exec.Execute(ctx, "catalog.fetch_products", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.ProductsURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", l.cfg.UserAgent)
		resp, err := l.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch products: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusMultipleChoices {
			io.Copy(io.Discard, resp.Body)
			return &statusError{Code: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read products payload: %w", err)
		}
		decoded, err := decodeProductsPayload(body)
		if err != nil {
			return err
		}
		products = decoded
		return nil
	}, fetchClassifier)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// decodeProductsPayload accepts either a bare JSON array of products or an
// object wrapping the array under "items".
func decodeProductsPayload(data []byte) ([]Product, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty products payload")
	}
	if trimmed[0] == '[' {
		var items []Product
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse products payload: %w", err)
		}
		return items, nil
	}
	var wrapper struct {
		Items []Product `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("parse products payload: %w", err)
	}
	return wrapper.Items, nil
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// fetchClassifier retries transport failures and server errors; client
// errors and malformed payloads fail immediately.
func fetchClassifier(err error) resilience.ErrorClassification {
	var status *statusError
	if errors.As(err, &status) {
		return resilience.ErrorClassification{
			Retryable:     status.Code >= http.StatusInternalServerError,
			RecordFailure: true,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// readJSONList reads a JSON array file; a missing or unreadable file yields
// an empty slice so a thin local cache never blocks startup.
func readJSONList[T any](path string) []T {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			common.Logger().Warn("catalog: local file unreadable", "path", path, "error", err)
		}
		return nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		common.Logger().Warn("catalog: local file malformed", "path", path, "error", err)
		return nil
	}
	return items
}
