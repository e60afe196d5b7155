package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// contextProperty is the workspace namespace every tool requires
func contextProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Workspace context name that scopes all stored data",
	}
}

func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Index a single source file into the semantic and structural stores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source file",
				},
			},
			Required: []string{"context", "path"},
		},
	}
}

func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Index every supported source file in a directory, synchronously",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Descend into subdirectories",
					"default":     true,
				},
			},
			Required: []string{"context", "path"},
		},
	}
}

func reindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex",
		Description: "Re-index a directory tree, optionally removing records whose source files disappeared",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory",
				},
				"remove_stale": map[string]interface{}{
					"type":        "boolean",
					"description": "Delete records for files no longer present under path",
					"default":     true,
				},
			},
			Required: []string{"context", "path"},
		},
	}
}

func enqueueIndexJobTool() mcp.Tool {
	return mcp.Tool{
		Name:        "enqueue_index_job",
		Description: "Queue a background indexing job; exactly one job runs at a time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Job kind",
					"enum":        []string{"index_directory", "reindex"},
					"default":     "index_directory",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Descend into subdirectories (index_directory only)",
					"default":     true,
				},
				"remove_stale": map[string]interface{}{
					"type":        "boolean",
					"description": "Remove stale records (reindex only)",
					"default":     true,
				},
			},
			Required: []string{"context", "path"},
		},
	}
}

func getJobStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_job_status",
		Description: "Get one job's detail, or all jobs for a context ordered running, queued, then finished",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job identifier; omit to list all jobs for the context",
				},
			},
			Required: []string{"context"},
		},
	}
}

func cancelJobTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_job",
		Description: "Request cancellation of a queued or running job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job identifier",
				},
			},
			Required: []string{"context", "job_id"},
		},
	}
}

func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed code with natural language or structural queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language, identifier, or relationship phrase)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy; omit for automatic selection",
					"enum":        []string{"semantic", "structural", "hybrid"},
				},
				"expand_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Attach graph neighbors up to this depth (0 disables)",
					"default":     0,
					"minimum":     0,
					"maximum":     3,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum vector similarity threshold (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"context", "query"},
		},
	}
}

func recordSignalTool() mcp.Tool {
	return mcp.Tool{
		Name:        "record_signal",
		Description: "Record a usage signal for an element to feed importance ranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"element": map[string]interface{}{
					"type":        "string",
					"description": "Element name the signal applies to",
				},
				"signal": map[string]interface{}{
					"type":        "string",
					"description": "Signal kind",
					"enum":        []string{"access", "edit", "discussion", "search_appearance", "selection"},
				},
			},
			Required: []string{"context", "element", "signal"},
		},
	}
}

func recordCoEditTool() mcp.Tool {
	return mcp.Tool{
		Name:        "record_coedit",
		Description: "Record that two files were edited together in one session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"file_a": map[string]interface{}{
					"type":        "string",
					"description": "First file path",
				},
				"file_b": map[string]interface{}{
					"type":        "string",
					"description": "Second file path",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Editing session identifier",
				},
			},
			Required: []string{"context", "file_a", "file_b", "session_id"},
		},
	}
}

func recalculateImportanceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recalculate_importance",
		Description: "Recompute recency, frequency, and composite importance for every tracked element",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
			},
			Required: []string{"context"},
		},
	}
}

func getCoEditsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_coedits",
		Description: "List files co-edited with the given file, with saturating strength scores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path to look up",
				},
			},
			Required: []string{"context", "file"},
		},
	}
}

func getClustersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_clusters",
		Description: "Derive file clusters from the co-edit graph (minimum 3 members)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
			},
			Required: []string{"context"},
		},
	}
}

func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics for a context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"context": contextProperty(),
			},
			Required: []string{"context"},
		},
	}
}
