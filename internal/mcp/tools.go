package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codemem/codemem-mcp/internal/scheduler"
	"github.com/codemem/codemem-mcp/internal/search"
	"github.com/codemem/codemem-mcp/internal/tracker"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeJobNotFound   = -32001 // Unknown job identifier
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.IndexFile(ctx, contextName, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(indexResultResponse(result))), nil
}

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	recursive := getBoolDefault(args, "recursive", true)

	result, err := s.pipeline.IndexDirectory(ctx, contextName, path, recursive, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(indexResultResponse(result))), nil
}

// handleReindex handles the reindex tool invocation
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	removeStale := getBoolDefault(args, "remove_stale", true)

	result, err := s.pipeline.Reindex(ctx, contextName, path, removeStale, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "reindex failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(indexResultResponse(result))), nil
}

// handleEnqueueIndexJob handles the enqueue_index_job tool invocation
func (s *Server) handleEnqueueIndexJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	kind := scheduler.JobKind(getStringDefault(args, "kind", string(scheduler.KindIndexDirectory)))
	if kind != scheduler.KindIndexDirectory && kind != scheduler.KindReindex {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid job kind", map[string]interface{}{
			"param":   "kind",
			"value":   string(kind),
			"allowed": []string{string(scheduler.KindIndexDirectory), string(scheduler.KindReindex)},
		})
	}

	detail, err := s.scheduler.Enqueue(scheduler.Request{
		Context:     contextName,
		Kind:        kind,
		Path:        path,
		Recursive:   getBoolDefault(args, "recursive", true),
		RemoveStale: getBoolDefault(args, "remove_stale", true),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "enqueue failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(jobResponse(detail))), nil
}

// handleGetJobStatus handles the get_job_status tool invocation
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}

	if jobID := getStringDefault(args, "job_id", ""); jobID != "" {
		detail, err := s.scheduler.GetStatus(jobID)
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return nil, newMCPError(ErrorCodeJobNotFound, "job not found", map[string]interface{}{
				"job_id": jobID,
			})
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "status lookup failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return mcp.NewToolResultText(formatJSON(jobResponse(detail))), nil
	}

	details, err := s.scheduler.ListStatus(contextName)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "status lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	jobs := make([]map[string]interface{}, 0, len(details))
	for _, d := range details {
		jobs = append(jobs, jobResponse(d))
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
		"jobs":    jobs,
	})), nil
}

// handleCancelJob handles the cancel_job tool invocation
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	jobID, err := requireString(args, "job_id")
	if err != nil {
		return nil, err
	}

	cancelled, err := s.scheduler.Cancel(jobID)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		return nil, newMCPError(ErrorCodeJobNotFound, "job not found", map[string]interface{}{
			"job_id": jobID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "cancel failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success":   true,
		"cancelled": cancelled,
	})), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	query, err := requireString(args, "query")
	if err != nil {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Zero defers to the configured default limit
	limit := getIntDefault(args, "limit", 0)
	if limit != 0 && (limit < 1 || limit > 100) {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	strategy := search.Strategy(getStringDefault(args, "strategy", ""))
	switch strategy {
	case "", search.StrategySemantic, search.StrategyStructural, search.StrategyHybrid:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
			"param":   "strategy",
			"value":   string(strategy),
			"allowed": []string{"semantic", "structural", "hybrid"},
		})
	}

	resp, err := s.search.Search(ctx, search.Request{
		Context:     contextName,
		Query:       query,
		Limit:       limit,
		Strategy:    strategy,
		ExpandDepth: getIntDefault(args, "expand_depth", 0),
		MinScore:    getFloatDefault(args, "min_score", 0),
		UseCache:    true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(searchResponse(resp))), nil
}

// handleRecordSignal handles the record_signal tool invocation
func (s *Server) handleRecordSignal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	element, err := requireString(args, "element")
	if err != nil {
		return nil, err
	}
	sig, err := requireString(args, "signal")
	if err != nil {
		return nil, err
	}

	if err := s.tracker.Record(contextName, element, tracker.Signal(sig)); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "record signal failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
		"element": element,
		"signal":  sig,
	})), nil
}

// handleRecordCoEdit handles the record_coedit tool invocation
func (s *Server) handleRecordCoEdit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	fileA, err := requireString(args, "file_a")
	if err != nil {
		return nil, err
	}
	fileB, err := requireString(args, "file_b")
	if err != nil {
		return nil, err
	}
	sessionID, err := requireString(args, "session_id")
	if err != nil {
		return nil, err
	}

	if err := s.tracker.RecordCoEdit(contextName, fileA, fileB, sessionID); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "record co-edit failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
	})), nil
}

// handleRecalculateImportance handles the recalculate_importance tool invocation
func (s *Server) handleRecalculateImportance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}

	count := s.tracker.Recalculate(contextName)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success":      true,
		"recalculated": count,
	})), nil
}

// handleGetCoEdits handles the get_coedits tool invocation
func (s *Server) handleGetCoEdits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}
	file, err := requireString(args, "file")
	if err != nil {
		return nil, err
	}

	stats := s.tracker.CoEdits(contextName, file)
	pairs := make([]map[string]interface{}, 0, len(stats))
	for _, st := range stats {
		other := st.FileB
		if other == file {
			other = st.FileA
		}
		pairs = append(pairs, map[string]interface{}{
			"file":     other,
			"count":    st.Count,
			"strength": st.Strength,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success":  true,
		"file":     file,
		"co_edits": pairs,
	})), nil
}

// handleGetClusters handles the get_clusters tool invocation
func (s *Server) handleGetClusters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}

	clusters := s.tracker.Clusters(contextName)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success":  true,
		"clusters": clusters,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, contextName, err := requireContext(request)
	if err != nil {
		return nil, err
	}

	stats, err := s.graph.Stats(ctx, contextName)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "status lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"success": true,
		"context": contextName,
		"statistics": map[string]interface{}{
			"nodes": stats.Nodes,
			"edges": stats.Edges,
		},
		"embedding": map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"dimension": s.embedder.Dimension(),
		},
	})), nil
}

// Response shaping helpers

func indexResultResponse(result *types.IndexResult) map[string]interface{} {
	resp := map[string]interface{}{
		"success":         result.Success,
		"files_processed": result.FilesProcessed,
		"classes":         result.Classes,
		"methods":         result.Methods,
		"patterns":        result.Patterns,
		"relationships":   result.Relationships,
	}
	if result.StaleRemoved > 0 {
		resp["stale_removed"] = result.StaleRemoved
	}
	if len(result.Errors) > 0 {
		resp["errors"] = result.Errors
	}
	return resp
}

func jobResponse(detail *scheduler.JobDetail) map[string]interface{} {
	resp := map[string]interface{}{
		"success":         true,
		"job_id":          detail.ID,
		"status":          string(detail.Status),
		"kind":            string(detail.Kind),
		"path":            detail.Path,
		"queue_position":  detail.QueuePosition,
		"files_processed": detail.FilesProcessed,
		"enqueued_at":     detail.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if len(detail.Errors) > 0 {
		resp["errors"] = detail.Errors
	}
	return resp
}

func searchResponse(resp *types.SearchResponse) map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":      r.Rank,
			"score":     r.Score,
			"kind":      string(r.Kind),
			"name":      r.Name,
			"file_path": r.FilePath,
			"line":      r.Line,
			"snippet":   r.Snippet,
			"sources":   r.Sources,
		}
		if r.MatchedPattern != "" {
			entry["matched_pattern"] = r.MatchedPattern
		}
		if len(r.Related) > 0 {
			related := make([]map[string]interface{}, 0, len(r.Related))
			for _, rel := range r.Related {
				related = append(related, map[string]interface{}{
					"name":  rel.Name,
					"kind":  string(rel.Kind),
					"depth": rel.Depth,
				})
			}
			entry["related"] = related
		}
		results = append(results, entry)
	}
	return map[string]interface{}{
		"success":  true,
		"results":  results,
		"has_more": resp.HasMore,
		"partial":  resp.Partial,
		"strategy": resp.Strategy,
	}
}

// Parameter extraction helpers

func requireContext(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	contextName, ok := args["context"].(string)
	if !ok || contextName == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "context parameter is required", map[string]interface{}{
			"param":  "context",
			"reason": "missing or empty",
		})
	}
	return args, contextName, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
