package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codemem/codemem-mcp/internal/config"
	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/graphstore"
	"github.com/codemem/codemem-mcp/internal/pipeline"
	"github.com/codemem/codemem-mcp/internal/scheduler"
	"github.com/codemem/codemem-mcp/internal/search"
	"github.com/codemem/codemem-mcp/internal/tracker"
	"github.com/codemem/codemem-mcp/internal/vectorstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "codemem-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	search    *search.Orchestrator
	tracker   *tracker.Tracker
	graph     graphstore.Store
	vectors   vectorstore.Store
	embedder  embedder.Embedder
	logger    *slog.Logger
}

// NewServer wires up all components from configuration
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Single embedder instance shared by pipeline and orchestrator
	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.OllamaURL,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	var vectors vectorstore.Store
	switch cfg.Vector.Backend {
	case config.VectorBackendQdrant:
		vectors = vectorstore.NewQdrantStore(cfg.Vector.URL, emb.Dimension())
	default:
		vectors = vectorstore.NewMemStore()
	}

	dbPath, err := cfg.GraphDBPath()
	if err != nil {
		return nil, err
	}
	graph, err := graphstore.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize graph store: %w", err)
	}

	trk := tracker.New(tracker.WithWeights(cfg.Tracker.Weights))

	pipe, err := pipeline.New(emb, vectors, graph, &pipeline.Config{
		EmbedWorkers: cfg.Pipeline.EmbedWorkers,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}

	sched := scheduler.New(pipe, scheduler.NewMemoryJobStore(), logger)
	orch := search.New(emb, vectors, graph, trk, &search.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MinScore:     cfg.Search.MinScore,
		CacheTTL:     cfg.Search.CacheTTL,
		Logger:       logger,
	})

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		pipeline:  pipe,
		scheduler: sched,
		search:    orch,
		tracker:   trk,
		graph:     graph,
		vectors:   vectors,
		embedder:  emb,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.close()
	return server.ServeStdio(s.mcp)
}

func (s *Server) close() {
	_ = s.scheduler.Close()
	_ = s.pipeline.Close()
	_ = s.graph.Close()
	_ = s.vectors.Close()
	_ = s.embedder.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(reindexTool(), s.handleReindex)
	s.mcp.AddTool(enqueueIndexJobTool(), s.handleEnqueueIndexJob)
	s.mcp.AddTool(getJobStatusTool(), s.handleGetJobStatus)
	s.mcp.AddTool(cancelJobTool(), s.handleCancelJob)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(recordSignalTool(), s.handleRecordSignal)
	s.mcp.AddTool(recordCoEditTool(), s.handleRecordCoEdit)
	s.mcp.AddTool(recalculateImportanceTool(), s.handleRecalculateImportance)
	s.mcp.AddTool(getCoEditsTool(), s.handleGetCoEdits)
	s.mcp.AddTool(getClustersTool(), s.handleGetClusters)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
