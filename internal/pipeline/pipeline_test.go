package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/graphstore"
	"github.com/codemem/codemem-mcp/internal/vectorstore"
	"github.com/codemem/codemem-mcp/pkg/types"
)

func setupPipeline(t *testing.T) (*Pipeline, graphstore.Store) {
	t.Helper()
	graph, err := graphstore.NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	emb := embedder.NewLocalProvider(embedder.NewCache(128))
	p, err := New(emb, vectorstore.NewMemStore(), graph, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, graph
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const serviceSource = `package app

// OrderService handles orders.
type OrderService struct{}

// Place places an order.
func (s *OrderService) Place(id string) error { return nil }

func Helper() int { return 42 }
`

func TestIndexFile(t *testing.T) {
	p, graph := setupPipeline(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "service.go", serviceSource)

	result, err := p.IndexFile(context.Background(), "proj", path)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Classes)
	assert.Equal(t, 2, result.Methods)
	assert.Equal(t, 1, result.Patterns)
	assert.Greater(t, result.Relationships, 0)

	node, err := graph.GetNode(context.Background(), "proj", "OrderService")
	require.NoError(t, err)
	assert.Equal(t, types.KindClass, node.Kind)
	assert.Equal(t, path, node.FilePath)
}

func TestIndexFileValidation(t *testing.T) {
	p, _ := setupPipeline(t)
	_, err := p.IndexFile(context.Background(), "", "x.go")
	assert.ErrorIs(t, err, types.ErrContextRequired)
	_, err = p.IndexFile(context.Background(), "proj", "")
	assert.ErrorIs(t, err, types.ErrPathRequired)
}

func TestIndexFileIdempotent(t *testing.T) {
	p, graph := setupPipeline(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "service.go", serviceSource)

	_, err := p.IndexFile(context.Background(), "proj", path)
	require.NoError(t, err)
	first, err := graph.Stats(context.Background(), "proj")
	require.NoError(t, err)

	_, err = p.IndexFile(context.Background(), "proj", path)
	require.NoError(t, err)
	second, err := graph.Stats(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestIndexDirectory(t *testing.T) {
	p, _ := setupPipeline(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package app\n\nfunc A() {}\n")
	writeFile(t, dir, "sub/b.go", "package sub\n\nfunc B() {}\n")
	writeFile(t, dir, "notes.txt", "not code")

	var seen []string
	result, err := p.IndexDirectory(context.Background(), "proj", dir, true, func(f string) {
		seen = append(seen, f)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Len(t, seen, 2)
}

func TestIndexDirectoryNonRecursive(t *testing.T) {
	p, _ := setupPipeline(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package app\n\nfunc A() {}\n")
	writeFile(t, dir, "sub/b.go", "package sub\n\nfunc B() {}\n")

	result, err := p.IndexDirectory(context.Background(), "proj", dir, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
}

func TestIndexDirectoryContinuesPastErrors(t *testing.T) {
	p, graph := setupPipeline(t)
	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "package app\n\nfunc Broken( {\n")
	writeFile(t, dir, "good.go", "package app\n\nfunc Good() {}\n")

	result, err := p.IndexDirectory(context.Background(), "proj", dir, true, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Errors)

	_, err = graph.GetNode(context.Background(), "proj", "Good")
	assert.NoError(t, err)
}

func TestIndexDirectoryCancellation(t *testing.T) {
	p, _ := setupPipeline(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package app\n\nfunc A() {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.IndexDirectory(ctx, "proj", dir, true, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReindexRemovesStale(t *testing.T) {
	p, graph := setupPipeline(t)
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.go", "package app\n\nfunc Keep() {}\n")
	gone := writeFile(t, dir, "gone.go", "package app\n\nfunc Gone() {}\n")

	_, err := p.IndexDirectory(context.Background(), "proj", dir, true, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	result, err := p.Reindex(context.Background(), "proj", dir, true, nil)
	require.NoError(t, err)
	assert.Greater(t, result.StaleRemoved, 0)

	_, err = graph.GetNode(context.Background(), "proj", "Gone")
	assert.ErrorIs(t, err, graphstore.ErrNotFound)
	node, err := graph.GetNode(context.Background(), "proj", "Keep")
	require.NoError(t, err)
	assert.Equal(t, keep, node.FilePath)
}

func TestReindexScopedToPrefix(t *testing.T) {
	p, graph := setupPipeline(t)
	root := t.TempDir()
	inner := filepath.Join(root, "inner")
	writeFile(t, root, "outside.go", "package app\n\nfunc Outside() {}\n")
	gone := writeFile(t, root, "inner/gone.go", "package inner\n\nfunc Gone() {}\n")

	_, err := p.IndexDirectory(context.Background(), "proj", root, true, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	// Deleting a file outside the reindexed subtree must not be noticed
	_, err = p.Reindex(context.Background(), "proj", inner, true, nil)
	require.NoError(t, err)

	_, err = graph.GetNode(context.Background(), "proj", "Outside")
	assert.NoError(t, err)
	_, err = graph.GetNode(context.Background(), "proj", "Gone")
	assert.ErrorIs(t, err, graphstore.ErrNotFound)
}

func TestReindexIgnoresSiblingSharingPrefix(t *testing.T) {
	p, graph := setupPipeline(t)
	root := t.TempDir()
	inner := filepath.Join(root, "inner")
	writeFile(t, root, "inner/keep.go", "package inner\n\nfunc Keep() {}\n")
	extra := writeFile(t, root, "inner_extra/extra.go", "package extra\n\nfunc Extra() {}\n")

	_, err := p.IndexDirectory(context.Background(), "proj", root, true, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(extra))

	// inner_extra shares inner's leading characters but is a different
	// directory; reindexing inner must not touch its records
	_, err = p.Reindex(context.Background(), "proj", inner, true, nil)
	require.NoError(t, err)

	_, err = graph.GetNode(context.Background(), "proj", "Extra")
	assert.NoError(t, err)
	_, err = graph.GetNode(context.Background(), "proj", "Keep")
	assert.NoError(t, err)
}
