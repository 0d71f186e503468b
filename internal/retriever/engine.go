package retriever

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/huyndo/tpcn-advisor/internal/catalog"
	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/corpus"
)

// DefaultTopK is the result budget used when a caller does not specify one.
const DefaultTopK = 5

// Loader produces a fresh catalog. Implementations resolve their own
// sourcing problems (remote fetch, local fallback) before returning; the
// engine never retries and never sees a partial catalog.
type Loader interface {
	Load(ctx context.Context) catalog.Catalog
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context) catalog.Catalog

func (f LoaderFunc) Load(ctx context.Context) catalog.Catalog {
	return f(ctx)
}

// Match is one ranked retrieval hit.
type Match struct {
	Score float64           `json:"score"`
	Kind  corpus.EntityKind `json:"type"`
	ID    string            `json:"id"`
}

// ReloadStats reports the outcome of a rebuild.
type ReloadStats struct {
	OK     bool           `json:"ok"`
	Counts catalog.Counts `json:"counts"`
}

// snapshot is one immutable (catalog, corpus, index) triple. Readers grab
// the current snapshot once and operate on it without further locking.
type snapshot struct {
	catalog catalog.Catalog
	corpus  corpus.Corpus
	index   *tfidfIndex
}

// Engine owns the live snapshot and serves searches and lookups against it.
// Reload builds a complete replacement off to the side and publishes it by
// swapping a single pointer, so readers always observe a consistent triple.
type Engine struct {
	loader  Loader
	metrics *telemetry.Metrics

	mu   sync.RWMutex
	snap *snapshot

	// reloadMu serializes rebuilds; overlapping admin triggers queue up
	// instead of racing to publish.
	reloadMu sync.Mutex
}

type Option func(*Engine)

// WithMetrics attaches search and reload instrumentation.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// New returns an engine with no snapshot yet; call Reload to build the
// first one. Before that, searches return nothing and lookups miss.
func New(loader Loader, opts ...Option) *Engine {
	e := &Engine{loader: loader}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) snapshot() *snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.snapshot() != nil
}

// Search ranks corpus documents against the query by cosine similarity.
// Results are capped at topk (clamped to at least 1), ordered by descending
// score with exact ties broken by original corpus position. A blank query,
// an unbuilt engine or an empty catalog all yield no results.
func (e *Engine) Search(query string, topk int) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	snap := e.snapshot()
	if snap == nil || snap.corpus.Fallback {
		return nil
	}
	if topk < 1 {
		topk = 1
	}
	sims := snap.index.score(corpus.NormalizeText(query))
	matches := make([]Match, 0, len(sims))
	for i, sim := range sims {
		if sim <= 0 {
			continue
		}
		ref := snap.corpus.Refs[i]
		matches = append(matches, Match{Score: sim, Kind: ref.Kind, ID: ref.ID})
	}
	// Stable sort over ascending positions: equal scores keep the
	// earlier-loaded document first.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topk {
		matches = matches[:topk]
	}
	e.metrics.RecordSearch(len(matches))
	return matches
}

// Product looks up a product by SKU in the current snapshot.
func (e *Engine) Product(sku string) (*catalog.Product, bool) {
	snap := e.snapshot()
	if snap == nil {
		return nil, false
	}
	return snap.catalog.Product(sku)
}

// Combo looks up a combo by ID in the current snapshot.
func (e *Engine) Combo(id string) (*catalog.Combo, bool) {
	snap := e.snapshot()
	if snap == nil {
		return nil, false
	}
	return snap.catalog.Combo(id)
}

// Symptom looks up a symptom by ID in the current snapshot.
func (e *Engine) Symptom(id string) (*catalog.Symptom, bool) {
	snap := e.snapshot()
	if snap == nil {
		return nil, false
	}
	return snap.catalog.Symptom(id)
}

// Reload loads a fresh catalog, rebuilds corpus and index, and atomically
// publishes the new snapshot. In-flight readers keep the old snapshot until
// the swap; none of the rebuild work happens under the read lock. The only
// error path is context cancellation.
func (e *Engine) Reload(ctx context.Context) (ReloadStats, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if err := ctx.Err(); err != nil {
		return ReloadStats{}, err
	}

	ctx, done := telemetry.StartSpan(ctx, "engine.reload")
	start := time.Now()

	cat := e.loader.Load(ctx)
	corp := corpus.Build(cat)
	idx := buildIndex(corp.Docs)
	next := &snapshot{catalog: cat, corpus: corp, index: idx}

	e.mu.Lock()
	e.snap = next
	e.mu.Unlock()

	docs := len(corp.Refs)
	e.metrics.RecordReload("ok", time.Since(start), docs)
	done("docs", docs)
	common.Logger().Info("engine: snapshot published",
		"products", len(cat.Products),
		"combos", len(cat.Combos),
		"symptoms", len(cat.Symptoms),
		"docs", docs,
	)
	return ReloadStats{OK: true, Counts: cat.Counts()}, nil
}
