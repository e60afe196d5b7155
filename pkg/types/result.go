package types

// SearchResult is a CodeMemory projection with relevance information
type SearchResult struct {
	// Identification
	ID   string
	Rank int // Position in result set (1-based)

	// Scoring
	Score           float64 // Fused relevance after importance rerank
	SemanticScore   float64 // Raw vector-store similarity, 0 if absent
	StructuralScore float64 // Raw graph-store score, 0 if absent
	ImportanceBoost float64 // Fraction of Score contributed by importance

	// Content
	Kind     MemoryKind
	Name     string
	FilePath string
	Line     int
	Snippet  string

	// Expansion
	Related []RelatedElement

	// Metadata
	MatchedPattern string // Set when a graph pattern query produced the hit
	Sources        []string
}

// RelatedElement is an immediate graph neighbor attached during relationship
// expansion
type RelatedElement struct {
	Name  string
	Kind  RelationKind
	Depth int
}

// OpResult is the structured outcome every tool-facing operation returns.
// Success with a non-empty Errors list means "succeeded with warnings".
type OpResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// Warn records a non-fatal error without flipping the success flag
func (r *OpResult) Warn(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Fail marks the result failed and records the cause
func (r *OpResult) Fail(msg string) {
	r.Success = false
	r.Errors = append(r.Errors, msg)
}

// IndexResult reports counts from indexing one file or directory
type IndexResult struct {
	OpResult
	FilesProcessed int `json:"files_processed"`
	Classes        int `json:"classes"`
	Methods        int `json:"methods"`
	Patterns       int `json:"patterns"`
	Relationships  int `json:"relationships"`
	StaleRemoved   int `json:"stale_removed"`
}

// SearchResponse is the orchestrator's reply for one query
type SearchResponse struct {
	OpResult
	Results  []SearchResult `json:"results"`
	HasMore  bool           `json:"has_more"`
	Partial  bool           `json:"partial"` // One store degraded
	Strategy string         `json:"strategy"`
}
