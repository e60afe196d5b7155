package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/graphstore"
	"github.com/codemem/codemem-mcp/internal/tracker"
	"github.com/codemem/codemem-mcp/internal/vectorstore"
	"github.com/codemem/codemem-mcp/pkg/types"
)

type fixture struct {
	orch    *Orchestrator
	emb     embedder.Embedder
	vectors *vectorstore.MemStore
	graph   *graphstore.SQLiteStore
	tracker *tracker.Tracker
}

func setup(t *testing.T) *fixture {
	t.Helper()
	graph, err := graphstore.NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	f := &fixture{
		emb:     embedder.NewLocalProvider(embedder.NewCache(128)),
		vectors: vectorstore.NewMemStore(),
		graph:   graph,
		tracker: tracker.New(),
	}
	f.orch = New(f.emb, f.vectors, f.graph, f.tracker, nil)
	return f
}

// seedVector stores a point whose vector matches the given text exactly
func (f *fixture) seedVector(t *testing.T, contextName string, kind types.MemoryKind, name, text string) string {
	t.Helper()
	emb, err := f.emb.Embed(context.Background(), text)
	require.NoError(t, err)
	id := types.DeriveMemoryID(contextName, "src/"+name+".go", kind, name)
	collection := vectorstore.CollectionName(contextName, kind)
	err = f.vectors.Upsert(context.Background(), collection, []vectorstore.Point{{
		ID:     id,
		Vector: emb.Vector,
		Payload: map[string]any{
			"name":      name,
			"kind":      string(kind),
			"file_path": "src/" + name + ".go",
			"line":      1,
			"signature": "func " + name + "()",
		},
	}})
	require.NoError(t, err)
	return id
}

func (f *fixture) seedNode(t *testing.T, contextName string, kind types.MemoryKind, name, content string) string {
	t.Helper()
	id := types.DeriveMemoryID(contextName, "src/"+name+".go", kind, name)
	err := f.graph.UpsertNode(context.Background(), &graphstore.Node{
		ID:       id,
		Context:  contextName,
		Name:     name,
		Kind:     kind,
		FilePath: "src/" + name + ".go",
		Line:     1,
		Content:  content,
	})
	require.NoError(t, err)
	return id
}

func TestSearchValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.orch.Search(ctx, Request{Query: "x"})
	assert.ErrorIs(t, err, types.ErrContextRequired)
	_, err = f.orch.Search(ctx, Request{Context: "proj", Query: "  "})
	assert.ErrorIs(t, err, types.ErrQueryRequired)
	_, err = f.orch.Search(ctx, Request{Context: "proj", Query: "x", Limit: -1})
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
	_, err = f.orch.Search(ctx, Request{Context: "proj", Query: "x", ExpandDepth: 4})
	assert.ErrorIs(t, err, types.ErrInvalidDepth)
}

func TestSemanticSearch(t *testing.T) {
	f := setup(t)
	f.seedVector(t, "proj", types.KindFunction, "ValidateEmail", "validate an email address")
	f.seedVector(t, "proj", types.KindFunction, "ParseConfig", "parse yaml configuration")

	resp, err := f.orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "validate an email address",
		Strategy: StrategySemantic,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "ValidateEmail", resp.Results[0].Name)
	assert.InDelta(t, 1.0, resp.Results[0].SemanticScore, 1e-6)
	assert.Equal(t, []string{"semantic"}, resp.Results[0].Sources)
	assert.Equal(t, string(StrategySemantic), resp.Strategy)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestStructuralSearch(t *testing.T) {
	f := setup(t)
	f.seedNode(t, "proj", types.KindClass, "OrderService", "type OrderService struct{} // handles order placement")
	f.seedNode(t, "proj", types.KindClass, "UserStore", "type UserStore struct{} // persists users")

	resp, err := f.orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "OrderService",
		Strategy: StrategyStructural,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "OrderService", resp.Results[0].Name)
	assert.Greater(t, resp.Results[0].StructuralScore, 0.0)
	assert.Zero(t, resp.Results[0].SemanticScore)
	assert.False(t, resp.Partial)
}

func TestHybridFusionBonus(t *testing.T) {
	f := setup(t)
	// Same element in both stores
	f.seedVector(t, "proj", types.KindFunction, "RetryRequest", "retry failed http request")
	f.seedNode(t, "proj", types.KindFunction, "RetryRequest", "func RetryRequest() // retry failed http request")
	// Graph-only element
	f.seedNode(t, "proj", types.KindFunction, "RetryBudget", "func RetryBudget() // retry accounting")

	resp, err := f.orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "retry failed http request",
		Strategy: StrategyHybrid,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "RetryRequest", top.Name)
	assert.ElementsMatch(t, []string{"semantic", "structural"}, top.Sources)
	// One entry per element, never a duplicate
	names := make(map[string]int)
	for _, r := range resp.Results {
		names[r.Name]++
	}
	assert.Equal(t, 1, names["RetryRequest"])
}

func TestImportanceRerank(t *testing.T) {
	f := setup(t)
	f.seedNode(t, "proj", types.KindClass, "AuthService", "payment processing flow")
	f.seedNode(t, "proj", types.KindClass, "BillService", "payment processing flow")

	for i := 0; i < 20; i++ {
		require.NoError(t, f.tracker.Record("proj", "BillService", tracker.SignalAccess))
	}
	f.tracker.Recalculate("proj")

	resp, err := f.orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "payment processing",
		Strategy: StrategyStructural,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "BillService", resp.Results[0].Name)
	assert.Greater(t, resp.Results[0].ImportanceBoost, 0.0)
	assert.LessOrEqual(t, resp.Results[0].ImportanceBoost, importanceFactor)
}

func TestLimitAndHasMore(t *testing.T) {
	f := setup(t)
	names := []string{"AlphaWidget", "BetaWidget", "GammaWidget", "DeltaWidget"}
	for _, n := range names {
		f.seedNode(t, "proj", types.KindClass, n, "widget rendering engine")
	}

	resp, err := f.orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "widget rendering",
		Strategy: StrategyStructural,
		Limit:    2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.True(t, resp.HasMore)
}

func TestConfiguredDefaultLimit(t *testing.T) {
	f := setup(t)
	orch := New(f.emb, f.vectors, f.graph, f.tracker, &Config{DefaultLimit: 2})
	names := []string{"AlphaWidget", "BetaWidget", "GammaWidget", "DeltaWidget"}
	for _, n := range names {
		f.seedNode(t, "proj", types.KindClass, n, "widget rendering engine")
	}

	// Leaving Limit unset applies the configured default, not the package one
	resp, err := orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "widget rendering",
		Strategy: StrategyStructural,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.True(t, resp.HasMore)
}

func TestRelationshipExpansion(t *testing.T) {
	f := setup(t)
	f.seedNode(t, "proj", types.KindClass, "OrderService", "type OrderService struct{}")
	f.seedNode(t, "proj", types.KindClass, "OrderRepo", "type OrderRepo struct{}")
	require.NoError(t, f.graph.UpsertEdge(context.Background(), &graphstore.Edge{
		Context: "proj", From: "OrderService", To: "OrderRepo", Kind: types.RelReferences,
	}))

	resp, err := f.orch.Search(context.Background(), Request{
		Context:     "proj",
		Query:       "OrderService",
		Strategy:    StrategyStructural,
		ExpandDepth: 1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	var found bool
	for _, rel := range resp.Results[0].Related {
		if rel.Name == "OrderRepo" {
			found = true
		}
	}
	assert.True(t, found)
}

// failingVectors simulates an unreachable vector store
type failingVectors struct{}

func (failingVectors) Upsert(context.Context, string, []vectorstore.Point) error {
	return vectorstore.ErrUnavailable
}

func (failingVectors) Query(context.Context, string, []float32, int, float64) ([]vectorstore.ScoredPoint, error) {
	return nil, vectorstore.ErrUnavailable
}

func (failingVectors) Delete(context.Context, string, []string) error {
	return vectorstore.ErrUnavailable
}

func (failingVectors) Close() error { return nil }

func TestHybridDegradesToPartial(t *testing.T) {
	f := setup(t)
	f.seedNode(t, "proj", types.KindClass, "CacheLayer", "lru cache layer")

	orch := New(f.emb, failingVectors{}, f.graph, f.tracker, nil)
	resp, err := orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "cache layer",
		Strategy: StrategyHybrid,
	})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "CacheLayer", resp.Results[0].Name)
}

func TestSemanticOnlyFailureErrors(t *testing.T) {
	f := setup(t)
	orch := New(f.emb, failingVectors{}, f.graph, f.tracker, nil)
	_, err := orch.Search(context.Background(), Request{
		Context:  "proj",
		Query:    "anything",
		Strategy: StrategySemantic,
	})
	assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
}

func TestQueryCache(t *testing.T) {
	f := setup(t)
	f.seedNode(t, "proj", types.KindClass, "CacheLayer", "lru cache layer")

	req := Request{Context: "proj", Query: "CacheLayer", Strategy: StrategyStructural, UseCache: true}
	first, err := f.orch.Search(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	// New data after caching must not surface for the same request
	f.seedNode(t, "proj", types.KindClass, "CacheLayerTwo", "another CacheLayer variant")
	second, err := f.orch.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, len(first.Results), len(second.Results))
}
