package types

import "fmt"

// RelationKind represents the typed edge between two code elements
type RelationKind string

const (
	RelInherits   RelationKind = "inherits"
	RelImplements RelationKind = "implements"
	RelCalls      RelationKind = "calls"
	RelImports    RelationKind = "imports"
	RelContains   RelationKind = "contains"
	RelReferences RelationKind = "references"
)

// Valid checks if the relation kind is known
func (k RelationKind) Valid() bool {
	switch k {
	case RelInherits, RelImplements, RelCalls, RelImports, RelContains, RelReferences:
		return true
	default:
		return false
	}
}

// Relationship is a directed edge between two named elements, always scoped
// to a single context.
type Relationship struct {
	Context  string
	From     string
	To       string
	Kind     RelationKind
	FilePath string // Source file the edge was extracted from
}

// Validate checks required fields of a relationship
func (r *Relationship) Validate() error {
	if r.Context == "" {
		return ErrContextRequired
	}
	if r.From == "" || r.To == "" {
		return ErrRelationEndpoints
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid relation kind: %q", r.Kind)
	}
	return nil
}
