package graphstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/codemem-mcp/pkg/types"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testNode(contextName, name, path string, kind types.MemoryKind) *Node {
	return &Node{
		ID:       types.DeriveMemoryID(contextName, path, kind, name),
		Context:  contextName,
		Name:     name,
		Kind:     kind,
		FilePath: path,
		Content:  "type " + name + " struct{}",
	}
}

func TestUpsertNode_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	node := testNode("ctx", "AuthService", "internal/auth/service.go", types.KindClass)
	require.NoError(t, store.UpsertNode(ctx, node))
	require.NoError(t, store.UpsertNode(ctx, node))

	stats, err := store.Stats(ctx, "ctx")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Nodes)

	got, err := store.GetNode(ctx, "ctx", "AuthService")
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
	assert.Equal(t, types.KindClass, got.Kind)
}

func TestGetNode_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetNode(context.Background(), "ctx", "Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertNode_RequiresContext(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpsertNode(context.Background(), &Node{ID: "x", Name: "X"})
	assert.ErrorIs(t, err, types.ErrContextRequired)
}

func TestNodes_PartitionedByContext(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, testNode("ws-a", "Service", "a.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("ws-b", "Service", "b.go", types.KindClass)))

	got, err := store.GetNode(ctx, "ws-a", "Service")
	require.NoError(t, err)
	assert.Equal(t, "a.go", got.FilePath)

	_, err = store.GetNode(ctx, "ws-c", "Service")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFullTextSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	auth := testNode("ctx", "AuthService", "auth.go", types.KindClass)
	auth.Purpose = "handles user authentication and sessions"
	require.NoError(t, store.UpsertNode(ctx, auth))

	other := testNode("ctx", "Renderer", "render.go", types.KindClass)
	other.Purpose = "draws frames"
	require.NoError(t, store.UpsertNode(ctx, other))

	results, err := store.FullTextSearch(ctx, "ctx", "authentication", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AuthService", results[0].Node.Name)
	assert.Greater(t, results[0].Score, 0.0)

	// Other contexts never match
	results, err = store.FullTextSearch(ctx, "elsewhere", "authentication", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFullTextSearch_HostileQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Thing", "t.go", types.KindClass)))

	// Match syntax and quotes must not break the query
	for _, q := range []string{`"unbalanced`, `a AND OR NOT b`, `col:value*`, "   "} {
		_, err := store.FullTextSearch(ctx, "ctx", q, 5)
		assert.NoError(t, err, "query %q", q)
	}
}

func TestEdges_TraverseAndNeighbors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	edges := []Edge{
		{Context: "ctx", From: "A", To: "B", Kind: types.RelCalls, FilePath: "a.go"},
		{Context: "ctx", From: "B", To: "C", Kind: types.RelCalls, FilePath: "b.go"},
		{Context: "ctx", From: "C", To: "D", Kind: types.RelImports, FilePath: "c.go"},
	}
	for i := range edges {
		require.NoError(t, store.UpsertEdge(ctx, &edges[i]))
	}

	// Depth 1: direct dependency only
	deps, err := store.TraverseDependencies(ctx, "ctx", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, deps)

	// Depth 3: the whole chain
	deps, err = store.TraverseDependencies(ctx, "ctx", "A", 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C", "D"}, deps)

	// Neighbors sees both directions
	related, err := store.Neighbors(ctx, "ctx", "B", 1)
	require.NoError(t, err)
	names := make([]string, len(related))
	for i, r := range related {
		names[i] = r.Name
	}
	assert.ElementsMatch(t, []string{"A", "C"}, names)
	for _, r := range related {
		assert.Equal(t, 1, r.Depth)
	}
}

func TestUpsertEdge_DuplicatesCollapse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	edge := Edge{Context: "ctx", From: "A", To: "B", Kind: types.RelCalls}
	require.NoError(t, store.UpsertEdge(ctx, &edge))
	require.NoError(t, store.UpsertEdge(ctx, &edge))

	stats, err := store.Stats(ctx, "ctx")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Edges)
}

func TestFindCycles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, e := range []Edge{
		{Context: "ctx", From: "A", To: "B", Kind: types.RelImports},
		{Context: "ctx", From: "B", To: "C", Kind: types.RelImports},
		{Context: "ctx", From: "C", To: "A", Kind: types.RelImports},
		{Context: "ctx", From: "C", To: "D", Kind: types.RelImports},
	} {
		require.NoError(t, store.UpsertEdge(ctx, &e))
	}

	cycles, err := store.FindCycles(ctx, "ctx")
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, cycles[0])

	// Acyclic context reports none
	cycles, err = store.FindCycles(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestDelete_ScopedToPrefixAndContext(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Gone", "src/old/gone.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Kept", "src/new/kept.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("other", "Untouched", "src/old/other.go", types.KindClass)))
	require.NoError(t, store.UpsertEdge(ctx, &Edge{Context: "ctx", From: "Gone", To: "Kept", Kind: types.RelCalls, FilePath: "src/old/gone.go"}))

	deleted, err := store.Delete(ctx, "ctx", NodeFilter{PathPrefix: "src/old/"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Sibling and cross-context nodes survive
	_, err = store.GetNode(ctx, "ctx", "Kept")
	assert.NoError(t, err)
	_, err = store.GetNode(ctx, "other", "Untouched")
	assert.NoError(t, err)
	_, err = store.GetNode(ctx, "ctx", "Gone")
	assert.ErrorIs(t, err, ErrNotFound)

	// Incident edge is gone too
	stats, err := store.Stats(ctx, "ctx")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Edges)
}

func TestListByPathPrefix_DirectoryBoundary(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Keep", "proj/inner/keep.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Extra", "proj/inner_extra/extra.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Exact", "proj/inner", types.KindFile)))

	nodes, err := store.ListByPathPrefix(ctx, "ctx", "proj/inner")
	require.NoError(t, err)

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	// The sibling directory sharing the leading characters is excluded
	assert.ElementsMatch(t, []string{"Keep", "Exact"}, names)

	// A trailing separator on the prefix selects the same set
	nodes, err = store.ListByPathPrefix(ctx, "ctx", "proj/inner/")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestDelete_PrefixStopsAtDirectoryBoundary(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Gone", "proj/inner/gone.go", types.KindClass)))
	require.NoError(t, store.UpsertNode(ctx, testNode("ctx", "Extra", "proj/inner_extra/extra.go", types.KindClass)))

	deleted, err := store.Delete(ctx, "ctx", NodeFilter{PathPrefix: "proj/inner"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetNode(ctx, "ctx", "Extra")
	assert.NoError(t, err)
	_, err = store.GetNode(ctx, "ctx", "Gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RejectsEmptyFilter(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Delete(context.Background(), "ctx", NodeFilter{})
	assert.ErrorIs(t, err, ErrEmptyFilter)
}

func TestFindCyclesPure(t *testing.T) {
	adj := map[string][]string{
		"x": {"y"},
		"y": {"x"},
		"z": {"x"},
	}
	cycles := findCycles(adj)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"x", "y"}, cycles[0])
}
