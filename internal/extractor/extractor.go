package extractor

import (
	"context"
	"errors"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Common errors
var (
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Extraction is the result of parsing one source file. Parse errors are
// accumulated, never fatal; a file with syntax errors still yields whatever
// structure could be recovered.
type Extraction struct {
	Memories      []*types.CodeMemory
	Relationships []*types.Relationship
	Errors        []string
}

// PatternCount reports how many pattern memories were extracted
func (e *Extraction) PatternCount() int {
	n := 0
	for _, m := range e.Memories {
		if m.Kind == types.KindPattern {
			n++
		}
	}
	return n
}

// Extractor turns a source file into structural facts and embeddable units
type Extractor interface {
	// Extract parses content and returns memories, relationships, and
	// accumulated parse errors scoped to contextName
	Extract(ctx context.Context, contextName, filePath string, content []byte) (*Extraction, error)

	// Supports reports whether this extractor understands the file
	Supports(filePath string) bool
}
