// Package types provides shared type definitions for the codemem MCP server.
//
// This package defines the domain contracts used across components: code
// memories, relationships, search results, and the structured operation
// results every tool returns.
//
// # Core Types
//
// CodeMemory represents one indexed unit (file, class, method, pattern) with
// its content, location, and optional semantic enrichment:
//
//	mem := &types.CodeMemory{
//	    Context:  "workspace-a",
//	    Kind:     types.KindMethod,
//	    Name:     "AuthService.Login",
//	    FilePath: "internal/auth/service.go",
//	}
//	mem.ID = types.DeriveMemoryID(mem.Context, mem.FilePath, mem.Kind, mem.Name)
//
// Identity is derived from context+path+kind+name, so re-indexing an
// unchanged file is idempotent at the store level.
//
// Relationship is a typed directed edge between two named elements, always
// scoped to one context; edges never cross contexts.
//
// # Embedding Text
//
// CodeMemory.EmbeddingText renders a bounded representation for the
// embedder. The semantic header (kind, name, signature, purpose, tags) is
// kept whole; an oversized code body is truncated with a head+tail split so
// both the beginning and end of the snippet stay visible.
//
// # Operation Results
//
// OpResult carries a success flag plus an accumulated error list, letting
// callers distinguish "succeeded with warnings" from "failed outright".
package types
