package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/graphstore"
	"github.com/codemem/codemem-mcp/internal/tracker"
	"github.com/codemem/codemem-mcp/internal/vectorstore"
	"github.com/codemem/codemem-mcp/pkg/types"
)

const (
	// DefaultLimit applies when a request leaves Limit unset
	DefaultLimit = 10
	// MaxExpandDepth bounds relationship expansion
	MaxExpandDepth = 3
	// bothSourcesBonus rewards an element found by both stores
	bothSourcesBonus = 0.1
	// importanceFactor caps how much importance can move a score:
	// score * (1 + importanceFactor*importance)
	importanceFactor = 0.25
	// defaultMinScore filters weak vector matches
	defaultMinScore = 0.2

	cacheSize       = 1000
	defaultCacheTTL = 5 * time.Minute
)

// Request describes one search call
type Request struct {
	Context     string
	Query       string
	Limit       int
	MinScore    float64  // Vector similarity floor, defaults to 0.2
	ExpandDepth int      // 0 disables relationship expansion; bounded 1-3
	Strategy    Strategy // Empty selects automatically
	UseCache    bool
	CacheTTL    time.Duration
}

// Orchestrator answers search queries over both stores plus the tracker.
// It is state-free per call apart from the query cache.
type Orchestrator struct {
	embedder embedder.Embedder
	vectors  vectorstore.Store
	graph    graphstore.Store
	tracker  *tracker.Tracker
	logger   *slog.Logger

	defaultLimit int
	minScore     float64
	cacheTTL     time.Duration

	cacheMu sync.Mutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

type cacheEntry struct {
	response  *types.SearchResponse
	expiresAt time.Time
}

// Config contains orchestrator construction options. Zero values fall back
// to the package defaults.
type Config struct {
	DefaultLimit int           // Result count when a request leaves Limit unset
	MinScore     float64       // Vector similarity floor
	CacheTTL     time.Duration // Query cache entry lifetime
	Logger       *slog.Logger
}

// New creates an orchestrator over the given stores
func New(emb embedder.Embedder, vectors vectorstore.Store, graph graphstore.Store, trk *tracker.Tracker, cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = DefaultLimit
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Orchestrator{
		embedder:     emb,
		vectors:      vectors,
		graph:        graph,
		tracker:      trk,
		logger:       logger,
		defaultLimit: limit,
		minScore:     minScore,
		cacheTTL:     ttl,
		cache:        cache,
	}
}

// Search runs the full pipeline: strategy selection, fan-out, fusion,
// importance rerank, and optional relationship expansion. If one store is
// unavailable the response degrades to the other and is flagged partial.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*types.SearchResponse, error) {
	if err := o.validate(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := o.cachedResponse(req); cached != nil {
			return cached, nil
		}
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = classify(req.Query)
	}

	fused, partial, err := o.fanOut(ctx, req, strategy)
	if err != nil {
		return nil, err
	}

	results := o.rerank(req.Context, fused)
	hasMore := len(results) > req.Limit
	if hasMore {
		results = results[:req.Limit]
	}

	if req.ExpandDepth > 0 {
		o.expand(ctx, req.Context, req.ExpandDepth, results)
	}

	for i := range results {
		results[i].Rank = i + 1
	}

	response := &types.SearchResponse{
		OpResult: types.OpResult{Success: true},
		Results:  results,
		HasMore:  hasMore,
		Partial:  partial,
		Strategy: string(strategy),
	}
	if req.UseCache {
		o.storeResponse(req, response)
	}
	return response, nil
}

func (o *Orchestrator) validate(req *Request) error {
	if req.Context == "" {
		return types.ErrContextRequired
	}
	if strings.TrimSpace(req.Query) == "" {
		return types.ErrQueryRequired
	}
	if req.Limit < 0 {
		return types.ErrInvalidLimit
	}
	if req.Limit == 0 {
		req.Limit = o.defaultLimit
	}
	if req.ExpandDepth < 0 || req.ExpandDepth > MaxExpandDepth {
		return types.ErrInvalidDepth
	}
	if req.MinScore <= 0 {
		req.MinScore = o.minScore
	}
	return nil
}

// fused is one element's combined evidence from both sources
type fused struct {
	id         string
	semantic   float64
	structural float64
	node       *graphstore.Node
	payload    map[string]any
}

type sourceResult struct {
	entries []*fused
	err     error
}

// fanOut issues the per-strategy store queries concurrently, one goroutine
// per source, and merges the outcomes keyed by element ID.
func (o *Orchestrator) fanOut(ctx context.Context, req Request, strategy Strategy) (map[string]*fused, bool, error) {
	semChan := make(chan sourceResult, 1)
	structChan := make(chan sourceResult, 1)

	wantSem := strategy == StrategySemantic || strategy == StrategyHybrid
	wantStruct := strategy == StrategyStructural || strategy == StrategyHybrid

	if wantSem {
		go func() {
			entries, err := o.semanticQuery(ctx, req)
			semChan <- sourceResult{entries: entries, err: err}
		}()
	}
	if wantStruct {
		go func() {
			entries, err := o.structuralQuery(ctx, req)
			structChan <- sourceResult{entries: entries, err: err}
		}()
	}

	var semRes, structRes sourceResult
	if wantSem {
		select {
		case semRes = <-semChan:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if wantStruct {
		select {
		case structRes = <-structChan:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	partial := false
	if wantSem && semRes.err != nil {
		if !wantStruct || structRes.err != nil {
			return nil, false, fmt.Errorf("search failed: %w", semRes.err)
		}
		o.logger.Warn("semantic source degraded", "error", semRes.err)
		partial = true
		semRes.entries = nil
	}
	if wantStruct && structRes.err != nil {
		if !wantSem || semRes.err != nil {
			return nil, false, fmt.Errorf("search failed: %w", structRes.err)
		}
		o.logger.Warn("structural source degraded", "error", structRes.err)
		partial = true
		structRes.entries = nil
	}

	merged := make(map[string]*fused)
	for _, e := range semRes.entries {
		merged[e.id] = e
	}
	for _, e := range structRes.entries {
		if existing, ok := merged[e.id]; ok {
			existing.structural = e.structural
			existing.node = e.node
		} else {
			merged[e.id] = e
		}
	}
	return merged, partial, nil
}

// semanticQuery embeds the query and scans every kind collection
func (o *Orchestrator) semanticQuery(ctx context.Context, req Request) ([]*fused, error) {
	emb, err := o.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var entries []*fused
	for _, collection := range vectorstore.AllCollections(req.Context) {
		points, err := o.vectors.Query(ctx, collection, emb.Vector, req.Limit*2, req.MinScore)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		for _, p := range points {
			entries = append(entries, &fused{
				id:       p.ID,
				semantic: clamp01(p.Score),
				payload:  p.Payload,
			})
		}
	}
	return entries, nil
}

// structuralQuery runs graph full-text search, normalizing scores to [0,1]
// against the best hit
func (o *Orchestrator) structuralQuery(ctx context.Context, req Request) ([]*fused, error) {
	hits, err := o.graph.FullTextSearch(ctx, req.Context, req.Query, req.Limit*2)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	best := hits[0].Score
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}

	entries := make([]*fused, 0, len(hits))
	for _, h := range hits {
		score := 1.0
		if best > 0 {
			score = h.Score / best
		}
		entries = append(entries, &fused{
			id:         h.Node.ID,
			structural: clamp01(score),
			node:       h.Node,
		})
	}
	return entries, nil
}

// rerank fuses per-source scores, applies the importance boost, and sorts.
// Fusion rule: max of the two normalized scores plus a fixed bonus when
// both sources agree, clipped to 1. The boost is multiplicative and capped
// so importance can never outrank relevance arbitrarily.
func (o *Orchestrator) rerank(contextName string, merged map[string]*fused) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(merged))
	for _, e := range merged {
		base := e.semantic
		if e.structural > base {
			base = e.structural
		}
		if e.semantic > 0 && e.structural > 0 {
			base += bothSourcesBonus
		}
		base = clamp01(base)

		r := o.project(e)
		importance := o.tracker.Importance(contextName, r.Name)
		boost := 1 + importanceFactor*importance
		r.Score = base * boost
		r.SemanticScore = e.semantic
		r.StructuralScore = e.structural
		r.ImportanceBoost = boost - 1
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	return results
}

// project builds the content fields of a result from whichever source
// supplied the element
func (o *Orchestrator) project(e *fused) types.SearchResult {
	r := types.SearchResult{ID: e.id}
	if e.node != nil {
		r.Name = e.node.Name
		r.Kind = e.node.Kind
		r.FilePath = e.node.FilePath
		r.Line = e.node.Line
		r.Snippet = snippet(e.node.Content)
		if e.node.Kind == types.KindPattern {
			r.MatchedPattern = e.node.Name
		}
	} else if e.payload != nil {
		r.Name, _ = e.payload["name"].(string)
		if kind, ok := e.payload["kind"].(string); ok {
			r.Kind = types.MemoryKind(kind)
		}
		r.FilePath, _ = e.payload["file_path"].(string)
		switch line := e.payload["line"].(type) {
		case int:
			r.Line = line
		case float64:
			r.Line = int(line)
		}
		if sig, ok := e.payload["signature"].(string); ok && sig != "" {
			r.Snippet = sig
		} else if purpose, ok := e.payload["purpose"].(string); ok {
			r.Snippet = purpose
		}
	}
	if e.semantic > 0 {
		r.Sources = append(r.Sources, "semantic")
	}
	if e.structural > 0 {
		r.Sources = append(r.Sources, "structural")
	}
	return r
}

// expand attaches graph neighbors to each result. Failures degrade to an
// unexpanded result; fusion is never re-run.
func (o *Orchestrator) expand(ctx context.Context, contextName string, depth int, results []types.SearchResult) {
	for i := range results {
		if results[i].Name == "" {
			continue
		}
		related, err := o.graph.Neighbors(ctx, contextName, results[i].Name, depth)
		if err != nil {
			o.logger.Warn("relationship expansion failed", "element", results[i].Name, "error", err)
			continue
		}
		results[i].Related = related
	}
}

func (o *Orchestrator) cacheKey(req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%f|%d|%s",
		req.Context, req.Query, req.Limit, req.MinScore, req.ExpandDepth, req.Strategy)))
}

func (o *Orchestrator) cachedResponse(req Request) *types.SearchResponse {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	entry, ok := o.cache.Get(o.cacheKey(req))
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		o.cache.Remove(o.cacheKey(req))
		return nil
	}
	return entry.response
}

func (o *Orchestrator) storeResponse(req Request, resp *types.SearchResponse) {
	ttl := req.CacheTTL
	if ttl <= 0 {
		ttl = o.cacheTTL
	}
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	o.cache.Add(o.cacheKey(req), &cacheEntry{response: resp, expiresAt: time.Now().Add(ttl)})
}

// snippet trims node content to a display-sized excerpt
func snippet(content string) string {
	const maxLen = 240
	content = strings.TrimSpace(content)
	if len(content) <= maxLen {
		return content
	}
	if idx := strings.LastIndexByte(content[:maxLen], '\n'); idx > 0 {
		return content[:idx]
	}
	return content[:maxLen]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
