package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/codemem-mcp/pkg/types"
)

const sampleSource = `package sample

import (
	"fmt"
	"strings"
)

// UserService manages user accounts.
type UserService struct {
	BaseService
	store map[string]string
}

// Login authenticates a user by name.
func (s *UserService) Login(name string, password string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("name required")
	}
	return strings.EqualFold(s.store[name], password), nil
}

// Greeter says hello.
type Greeter interface {
	Greet(name string) string
}

func Hello(name string) string {
	return "hello " + name
}
`

func findMemory(mems []*types.CodeMemory, kind types.MemoryKind, name string) *types.CodeMemory {
	for _, m := range mems {
		if m.Kind == kind && m.Name == name {
			return m
		}
	}
	return nil
}

func hasRelationship(rels []*types.Relationship, from, to string, kind types.RelationKind) bool {
	for _, r := range rels {
		if r.From == from && r.To == to && r.Kind == kind {
			return true
		}
	}
	return false
}

func TestGoExtractorSupports(t *testing.T) {
	g := NewGoExtractor()
	assert.True(t, g.Supports("internal/server/server.go"))
	assert.False(t, g.Supports("README.md"))
	assert.False(t, g.Supports("script.py"))
}

func TestGoExtractorUnsupportedFile(t *testing.T) {
	g := NewGoExtractor()
	_, err := g.Extract(context.Background(), "proj", "notes.txt", []byte("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestGoExtractorMemories(t *testing.T) {
	g := NewGoExtractor()
	ext, err := g.Extract(context.Background(), "proj", "sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.Empty(t, ext.Errors)

	file := findMemory(ext.Memories, types.KindFile, "sample.go")
	require.NotNil(t, file)
	assert.Equal(t, 1, file.Line)
	assert.Equal(t, "package sample", file.Purpose)

	class := findMemory(ext.Memories, types.KindClass, "UserService")
	require.NotNil(t, class)
	assert.Contains(t, class.Signature, "struct")
	assert.Equal(t, "sample", class.Metadata["package"])

	iface := findMemory(ext.Memories, types.KindClass, "Greeter")
	require.NotNil(t, iface)
	assert.Contains(t, iface.Signature, "interface")

	method := findMemory(ext.Memories, types.KindMethod, "UserService.Login")
	require.NotNil(t, method)
	assert.Contains(t, method.Signature, "func (*UserService) Login")
	assert.Contains(t, method.Signature, "(bool, error)")
	assert.Equal(t, "Login authenticates a user by name", method.Purpose)

	fn := findMemory(ext.Memories, types.KindFunction, "Hello")
	require.NotNil(t, fn)
	assert.Contains(t, fn.Content, `return "hello " + name`)
}

func TestGoExtractorDeterministicIDs(t *testing.T) {
	g := NewGoExtractor()
	first, err := g.Extract(context.Background(), "proj", "sample.go", []byte(sampleSource))
	require.NoError(t, err)
	second, err := g.Extract(context.Background(), "proj", "sample.go", []byte(sampleSource))
	require.NoError(t, err)

	a := findMemory(first.Memories, types.KindMethod, "UserService.Login")
	b := findMemory(second.Memories, types.KindMethod, "UserService.Login")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, b.ID)
}

func TestGoExtractorRelationships(t *testing.T) {
	g := NewGoExtractor()
	ext, err := g.Extract(context.Background(), "proj", "sample.go", []byte(sampleSource))
	require.NoError(t, err)

	assert.True(t, hasRelationship(ext.Relationships, "sample.go", "fmt", types.RelImports))
	assert.True(t, hasRelationship(ext.Relationships, "sample.go", "strings", types.RelImports))
	assert.True(t, hasRelationship(ext.Relationships, "sample.go", "UserService", types.RelContains))
	assert.True(t, hasRelationship(ext.Relationships, "UserService", "UserService.Login", types.RelContains))
	assert.True(t, hasRelationship(ext.Relationships, "UserService", "BaseService", types.RelInherits))
	assert.True(t, hasRelationship(ext.Relationships, "UserService.Login", "fmt.Errorf", types.RelCalls))
}

func TestGoExtractorPatternDetection(t *testing.T) {
	g := NewGoExtractor()
	ext, err := g.Extract(context.Background(), "proj", "sample.go", []byte(sampleSource))
	require.NoError(t, err)

	pattern := findMemory(ext.Memories, types.KindPattern, "service:UserService")
	require.NotNil(t, pattern)
	assert.Equal(t, []string{"service"}, pattern.Tags)
	assert.Equal(t, 1, ext.PatternCount())
}

func TestGoExtractorSyntaxErrorPartial(t *testing.T) {
	g := NewGoExtractor()
	broken := "package sample\n\nfunc Good() {}\n\nfunc Broken( {\n"
	ext, err := g.Extract(context.Background(), "proj", "broken.go", []byte(broken))
	require.NoError(t, err)
	assert.NotEmpty(t, ext.Errors)

	// Partial AST still yields the file memory and the valid declaration
	assert.NotNil(t, findMemory(ext.Memories, types.KindFile, "broken.go"))
	assert.NotNil(t, findMemory(ext.Memories, types.KindFunction, "Good"))
}
