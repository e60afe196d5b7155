package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/codemem/codemem-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested node doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the backing database cannot be reached
	ErrUnavailable = errors.New("graph store unavailable")
	// ErrEmptyFilter guards Delete against wiping a whole context by accident
	ErrEmptyFilter = errors.New("delete filter must set at least one predicate")
)

// Node is one structural element in the graph, always scoped to a context
type Node struct {
	ID        string
	Context   string
	Name      string
	Kind      types.MemoryKind
	FilePath  string
	Line      int
	Content   string
	Signature string
	Purpose   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edge is a typed directed relationship between two named elements
type Edge struct {
	Context  string
	From     string
	To       string
	Kind     types.RelationKind
	FilePath string
}

// ScoredNode is a full-text search hit with its match score
type ScoredNode struct {
	Node  *Node
	Score float64
}

// NodeFilter selects nodes for deletion. At least one predicate must be set;
// all set predicates are ANDed together within the given context.
type NodeFilter struct {
	FilePath   string // Exact source file match
	PathPrefix string // File path prefix (reindex stale removal)
	Name       string // Exact element name
}

// Stats summarizes one context's graph contents
type Stats struct {
	Nodes int
	Edges int
}

// Store defines the structural store contract. All operations are
// partitioned by workspace context; no call can read or delete across
// contexts.
type Store interface {
	// UpsertNode inserts or replaces a node keyed by its derived ID
	UpsertNode(ctx context.Context, node *Node) error

	// UpsertEdge inserts a directed edge; duplicate edges are collapsed
	UpsertEdge(ctx context.Context, edge *Edge) error

	// GetNode fetches one node by element name
	GetNode(ctx context.Context, contextName, name string) (*Node, error)

	// ListByPathPrefix returns every node whose file path starts with prefix
	ListByPathPrefix(ctx context.Context, contextName, prefix string) ([]*Node, error)

	// FullTextSearch matches nodes by name, signature, purpose, and content
	FullTextSearch(ctx context.Context, contextName, query string, limit int) ([]ScoredNode, error)

	// Neighbors returns edges touching the named element, out to maxDepth hops
	Neighbors(ctx context.Context, contextName, name string, maxDepth int) ([]types.RelatedElement, error)

	// TraverseDependencies walks outgoing edges breadth-first up to maxDepth
	TraverseDependencies(ctx context.Context, contextName, name string, maxDepth int) ([]string, error)

	// FindCycles reports dependency cycles within one context
	FindCycles(ctx context.Context, contextName string) ([][]string, error)

	// Delete removes nodes matching the filter plus their incident edges.
	// Only ever touches the given context.
	Delete(ctx context.Context, contextName string, filter NodeFilter) (int, error)

	// Stats reports node and edge counts for a context
	Stats(ctx context.Context, contextName string) (*Stats, error)

	// Close closes the underlying database
	Close() error
}
