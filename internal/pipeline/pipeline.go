package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/extractor"
	"github.com/codemem/codemem-mcp/internal/graphstore"
	"github.com/codemem/codemem-mcp/internal/vectorstore"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// Pipeline transforms source files into code memories and commits them to
// the vector and graph stores. Writes for one file complete before the next
// file starts, so a reader never sees a node without its embedding for
// longer than one file's processing window.
type Pipeline struct {
	extractors  []extractor.Extractor
	embedder    embedder.Embedder
	vectors     vectorstore.Store
	collections *vectorstore.CollectionManager
	graph       graphstore.Store
	pool        *ants.Pool
	logger      *slog.Logger
}

// Config contains pipeline construction options
type Config struct {
	EmbedWorkers int // Concurrent embedding calls per file (default: NumCPU)
	Logger       *slog.Logger
}

// New creates a pipeline over the given stores. Extractors are tried in
// order; the first one whose Supports matches handles the file.
func New(emb embedder.Embedder, vectors vectorstore.Store, graph graphstore.Store, cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	workers := cfg.EmbedWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embed pool: %w", err)
	}

	return &Pipeline{
		extractors:  []extractor.Extractor{extractor.NewGoExtractor()},
		embedder:    emb,
		vectors:     vectors,
		collections: vectorstore.NewCollectionManager(vectors),
		graph:       graph,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Close releases the embedding worker pool
func (p *Pipeline) Close() error {
	p.pool.Release()
	return nil
}

// IndexFile parses one file and commits its memories to both stores.
// Parse errors are accumulated in the result, not returned.
func (p *Pipeline) IndexFile(ctx context.Context, contextName, filePath string) (*types.IndexResult, error) {
	if contextName == "" {
		return nil, types.ErrContextRequired
	}
	if filePath == "" {
		return nil, types.ErrPathRequired
	}

	result := &types.IndexResult{OpResult: types.OpResult{Success: true}}
	if err := p.indexOne(ctx, contextName, filePath, result); err != nil {
		return nil, err
	}
	result.FilesProcessed = 1
	return result, nil
}

// IndexDirectory enumerates eligible files under path and indexes each.
// One file's failure is recorded and the walk continues. The progress
// callback fires once per file, after its writes complete.
func (p *Pipeline) IndexDirectory(ctx context.Context, contextName, path string, recursive bool, progress func(filePath string)) (*types.IndexResult, error) {
	if contextName == "" {
		return nil, types.ErrContextRequired
	}
	if path == "" {
		return nil, types.ErrPathRequired
	}

	files, err := p.discoverFiles(path, recursive)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	result := &types.IndexResult{OpResult: types.OpResult{Success: true}}
	for _, filePath := range files {
		// Cancellation checkpoint at each file boundary
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := p.indexOne(ctx, contextName, filePath, result); err != nil {
			result.Warn(fmt.Sprintf("%s: %v", filePath, err))
			p.logger.Warn("file indexing failed", "file", filePath, "error", err)
		} else {
			result.FilesProcessed++
		}
		if progress != nil {
			progress(filePath)
		}
	}
	return result, nil
}

// Reindex recomputes the file set under path and re-indexes it. With
// removeStale, records whose source file disappeared are deleted, but only
// ever within the given context and path prefix.
func (p *Pipeline) Reindex(ctx context.Context, contextName, path string, removeStale bool, progress func(filePath string)) (*types.IndexResult, error) {
	if contextName == "" {
		return nil, types.ErrContextRequired
	}
	if path == "" {
		return nil, types.ErrPathRequired
	}

	// Snapshot known files before re-indexing so deletions are scoped to
	// what the store already tracks under this prefix
	var known []*graphstore.Node
	if removeStale {
		nodes, err := p.graph.ListByPathPrefix(ctx, contextName, path)
		if err != nil {
			return nil, fmt.Errorf("list indexed files: %w", err)
		}
		known = nodes
	}

	result, err := p.IndexDirectory(ctx, contextName, path, true, progress)
	if err != nil {
		return result, err
	}

	if removeStale {
		removed, err := p.removeStale(ctx, contextName, known)
		if err != nil {
			result.Warn(fmt.Sprintf("stale removal: %v", err))
		}
		result.StaleRemoved = removed
	}
	return result, nil
}

// indexOne runs the full parse-embed-store sequence for a single file
func (p *Pipeline) indexOne(ctx context.Context, contextName, filePath string, result *types.IndexResult) error {
	ext := p.extractorFor(filePath)
	if ext == nil {
		return fmt.Errorf("%s: %w", filePath, extractor.ErrUnsupportedFile)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	extraction, err := ext.Extract(ctx, contextName, filePath, content)
	if err != nil {
		return err
	}
	for _, msg := range extraction.Errors {
		result.Warn(msg)
	}

	if err := p.embedMemories(ctx, extraction.Memories, result); err != nil {
		return err
	}
	if err := p.storeMemories(ctx, contextName, extraction.Memories); err != nil {
		return err
	}
	if err := p.storeRelationships(ctx, extraction.Relationships); err != nil {
		return err
	}

	for _, mem := range extraction.Memories {
		switch mem.Kind {
		case types.KindClass:
			result.Classes++
		case types.KindMethod, types.KindFunction:
			result.Methods++
		case types.KindPattern:
			result.Patterns++
		}
	}
	result.Relationships += len(extraction.Relationships)
	return nil
}

// embedMemories fills in each memory's vector, fanning embedding calls out
// over the worker pool. A failed embedding is a warning; the memory still
// lands in the graph store without a vector.
func (p *Pipeline) embedMemories(ctx context.Context, memories []*types.CodeMemory, result *types.IndexResult) error {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, mem := range memories {
		mem := mem
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			emb, err := p.embedder.Embed(ctx, mem.EmbeddingText())
			if err != nil {
				mu.Lock()
				result.Warn(fmt.Sprintf("embed %s: %v", mem.Name, err))
				mu.Unlock()
				return
			}
			mem.Vector = emb.Vector
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("submit embed task: %w", err)
		}
	}
	wg.Wait()
	return nil
}

// storeMemories upserts vectors grouped by kind collection, then the
// corresponding graph nodes
func (p *Pipeline) storeMemories(ctx context.Context, contextName string, memories []*types.CodeMemory) error {
	byKind := make(map[types.MemoryKind][]vectorstore.Point)
	for _, mem := range memories {
		if len(mem.Vector) == 0 {
			continue
		}
		byKind[mem.Kind] = append(byKind[mem.Kind], vectorstore.Point{
			ID:     mem.ID,
			Vector: mem.Vector,
			Payload: map[string]any{
				"name":      mem.Name,
				"kind":      string(mem.Kind),
				"file_path": mem.FilePath,
				"line":      mem.Line,
				"signature": mem.Signature,
				"purpose":   mem.Purpose,
			},
		})
	}

	for kind, points := range byKind {
		collection, err := p.collections.Ensure(contextName, kind)
		if err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
		if err := p.vectors.Upsert(ctx, collection, points); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}

	for _, mem := range memories {
		node := &graphstore.Node{
			ID:        mem.ID,
			Context:   mem.Context,
			Name:      mem.Name,
			Kind:      mem.Kind,
			FilePath:  mem.FilePath,
			Line:      mem.Line,
			Content:   mem.Content,
			Signature: mem.Signature,
			Purpose:   mem.Purpose,
		}
		if err := p.graph.UpsertNode(ctx, node); err != nil {
			return fmt.Errorf("upsert node %s: %w", mem.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) storeRelationships(ctx context.Context, rels []*types.Relationship) error {
	for _, rel := range rels {
		edge := &graphstore.Edge{
			Context:  rel.Context,
			From:     rel.From,
			To:       rel.To,
			Kind:     rel.Kind,
			FilePath: rel.FilePath,
		}
		if err := p.graph.UpsertEdge(ctx, edge); err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", rel.From, rel.To, err)
		}
	}
	return nil
}

// removeStale deletes records for known files that no longer exist on disk
func (p *Pipeline) removeStale(ctx context.Context, contextName string, known []*graphstore.Node) (int, error) {
	goneFiles := make(map[string]bool)
	for _, node := range known {
		if node.FilePath == "" || goneFiles[node.FilePath] {
			continue
		}
		if _, err := os.Stat(node.FilePath); os.IsNotExist(err) {
			goneFiles[node.FilePath] = true
		}
	}
	if len(goneFiles) == 0 {
		return 0, nil
	}

	// Vector points first, grouped by kind collection
	byKind := make(map[types.MemoryKind][]string)
	for _, node := range known {
		if goneFiles[node.FilePath] {
			byKind[node.Kind] = append(byKind[node.Kind], node.ID)
		}
	}
	for kind, ids := range byKind {
		collection := vectorstore.CollectionName(contextName, kind)
		if err := p.vectors.Delete(ctx, collection, ids); err != nil {
			return 0, fmt.Errorf("delete vectors: %w", err)
		}
	}

	removed := 0
	for filePath := range goneFiles {
		n, err := p.graph.Delete(ctx, contextName, graphstore.NodeFilter{FilePath: filePath})
		if err != nil {
			return removed, fmt.Errorf("delete nodes for %s: %w", filePath, err)
		}
		removed += n
		p.logger.Info("removed stale file records", "file", filePath, "nodes", n)
	}
	return removed, nil
}

// extractorFor routes a file to the first extractor that supports it
func (p *Pipeline) extractorFor(filePath string) extractor.Extractor {
	for _, ext := range p.extractors {
		if ext.Supports(filePath) {
			return ext
		}
	}
	return nil
}

// discoverFiles enumerates eligible files in lexical order
func (p *Pipeline) discoverFiles(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if !recursive || strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if p.extractorFor(path) != nil {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
