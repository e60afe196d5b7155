package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MemoryKind represents the category of an indexed code unit
type MemoryKind string

const (
	KindFile     MemoryKind = "file"
	KindClass    MemoryKind = "class"
	KindMethod   MemoryKind = "method"
	KindFunction MemoryKind = "function"
	KindPattern  MemoryKind = "pattern"
	KindModule   MemoryKind = "module"
)

// AllMemoryKinds lists every valid kind, used for per-kind collection naming
var AllMemoryKinds = []MemoryKind{
	KindFile, KindClass, KindMethod, KindFunction, KindPattern, KindModule,
}

// Valid checks if the kind is a known memory kind
func (k MemoryKind) Valid() bool {
	switch k {
	case KindFile, KindClass, KindMethod, KindFunction, KindPattern, KindModule:
		return true
	default:
		return false
	}
}

const (
	// EmbeddingTextBudget is the maximum character length of the text
	// representation sent to the embedder
	EmbeddingTextBudget = 2048

	// bodyHeadRatio controls the head/tail split when the code body must be
	// truncated to fit the budget
	bodyHeadRatio = 0.6
)

// CodeMemory represents one indexed unit: a file, class, method, or pattern
// with its content, location, and semantic enrichment fields
type CodeMemory struct {
	// Identification
	ID      string
	Context string
	Kind    MemoryKind
	Name    string

	// Content
	Content  string
	FilePath string
	Line     int
	Metadata map[string]string

	// Semantic enrichment (optional)
	Signature    string
	Purpose      string
	Tags         []string
	Dependencies []string

	// Embedding vector, populated by the pipeline before upsert
	Vector []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeriveMemoryID computes the deterministic identity of a memory from its
// context, file path, kind, and name. Re-indexing an unchanged file therefore
// produces the same IDs and upserts are idempotent.
func DeriveMemoryID(context, filePath string, kind MemoryKind, name string) string {
	h := sha256.Sum256([]byte(context + "\x00" + filePath + "\x00" + string(kind) + "\x00" + name))
	return hex.EncodeToString(h[:])
}

// EmbeddingText builds the bounded text representation used for embedding.
// The semantic header (kind, name, signature, purpose, tags) is never
// truncated; only the trailing code body is, keeping the head and tail of the
// snippet visible.
func (m *CodeMemory) EmbeddingText() string {
	var header strings.Builder
	header.WriteString(string(m.Kind))
	header.WriteString(" ")
	header.WriteString(m.Name)
	header.WriteString("\n")
	if m.Signature != "" {
		header.WriteString("signature: ")
		header.WriteString(m.Signature)
		header.WriteString("\n")
	}
	if m.Purpose != "" {
		header.WriteString("purpose: ")
		header.WriteString(m.Purpose)
		header.WriteString("\n")
	}
	if len(m.Tags) > 0 {
		header.WriteString("tags: ")
		header.WriteString(strings.Join(m.Tags, ", "))
		header.WriteString("\n")
	}

	budget := EmbeddingTextBudget - header.Len()
	if budget <= 0 {
		// Header alone exceeds the budget only with pathological inputs;
		// keep it whole regardless
		return header.String()
	}

	body := m.Content
	if len(body) <= budget {
		return header.String() + body
	}

	return header.String() + truncateHeadTail(body, budget)
}

// truncateHeadTail keeps the first 60% and last 40% of the character budget,
// joined by an ellipsis marker. Cut points back off to rune boundaries so
// multi-byte characters are never split.
func truncateHeadTail(body string, budget int) string {
	const marker = "\n...\n"
	usable := budget - len(marker)
	if usable <= 0 {
		return body[:runeFloor(body, budget)]
	}

	headLen := int(float64(usable) * bodyHeadRatio)
	tailLen := usable - headLen

	head := body[:runeFloor(body, headLen)]
	tail := body[runeCeil(body, len(body)-tailLen):]
	return head + marker + tail
}

// runeFloor returns the largest index <= i that starts a rune
func runeFloor(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil returns the smallest index >= i that starts a rune
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// Validate checks required fields of a code memory
func (m *CodeMemory) Validate() error {
	if m.Context == "" {
		return ErrContextRequired
	}
	if m.Name == "" {
		return errors.New("memory name is required")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("invalid memory kind: %q", m.Kind)
	}
	if m.FilePath == "" {
		return errors.New("memory file path is required")
	}
	return nil
}
