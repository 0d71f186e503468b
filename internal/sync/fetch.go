package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/huyndo/tpcn-advisor/internal/resilience"
)

// fetcher downloads storefront pages with a shared politeness budget: a
// token-bucket limiter paces every request, including retries, so the
// worker pool can fan out without hammering the shop.
type fetcher struct {
	cfg     Config
	client  *http.Client
	exec    *resilience.Executor
	limiter *rate.Limiter
}

func newFetcher(cfg Config) *fetcher {
	return &fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		exec:    resilience.NewExecutor(resilience.DefaultConfig()),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

func (f *fetcher) get(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	err := f.exec.Execute(ctx, "sync.fetch", func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusMultipleChoices {
			io.Copy(io.Discard, resp.Body)
			return &statusError{Code: resp.StatusCode}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s: %w", pageURL, err)
		}
		body = data
		return nil
	}, pageClassifier)
	if err != nil {
		return nil, err
	}
	return body, nil
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// pageClassifier retries transport failures and server errors; a 404 on a
// sitemap variant or a gone product page fails immediately.
func pageClassifier(err error) resilience.ErrorClassification {
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
