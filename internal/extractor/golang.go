package extractor

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// GoExtractor extracts structural facts from Go source via the AST
type GoExtractor struct{}

// NewGoExtractor creates a Go source extractor
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{}
}

// Supports reports whether the path looks like a Go source file
func (g *GoExtractor) Supports(filePath string) bool {
	return strings.HasSuffix(filePath, ".go")
}

// Extract parses one Go file into memories and relationships. Syntax errors
// are recorded and extraction continues over whatever partial AST exists.
func (g *GoExtractor) Extract(ctx context.Context, contextName, filePath string, content []byte) (*Extraction, error) {
	if !g.Supports(filePath) {
		return nil, fmt.Errorf("%s: %w", filePath, ErrUnsupportedFile)
	}

	result := &Extraction{}
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil {
		// Non-fatal: the parser may still return a partial AST
		result.Errors = append(result.Errors, fmt.Sprintf("%s: syntax error: %v", filePath, err))
	}
	if file == nil {
		return result, nil
	}

	v := &visitor{
		fset:        fset,
		contextName: contextName,
		filePath:    filePath,
		lines:       strings.Split(string(content), "\n"),
		result:      result,
	}
	if file.Name != nil {
		v.packageName = file.Name.Name
	}

	// File-level memory anchors relationship expansion for the whole file
	fileMem := &types.CodeMemory{
		Context:  contextName,
		Kind:     types.KindFile,
		Name:     filePath,
		FilePath: filePath,
		Line:     1,
		Content:  string(content),
		Purpose:  fmt.Sprintf("package %s", v.packageName),
	}
	fileMem.ID = types.DeriveMemoryID(contextName, filePath, types.KindFile, filePath)
	result.Memories = append(result.Memories, fileMem)

	// Import edges hang off the file node
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		result.Relationships = append(result.Relationships, &types.Relationship{
			Context:  contextName,
			From:     filePath,
			To:       path,
			Kind:     types.RelImports,
			FilePath: filePath,
		})
	}

	ast.Inspect(file, v.visit)
	return result, nil
}

// visitor walks the AST collecting memories and relationships
type visitor struct {
	fset        *token.FileSet
	contextName string
	filePath    string
	packageName string
	lines       []string
	result      *Extraction
}

func (v *visitor) visit(node ast.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *ast.FuncDecl:
		v.extractFunction(n)
		return false // Don't descend into bodies
	case *ast.GenDecl:
		for _, spec := range n.Specs {
			if typeSpec, ok := spec.(*ast.TypeSpec); ok {
				v.extractType(typeSpec)
			}
		}
	}
	return true
}

// extractFunction handles function and method declarations
func (v *visitor) extractFunction(funcDecl *ast.FuncDecl) {
	name := funcDecl.Name.Name
	kind := types.KindFunction

	var receiver string
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		kind = types.KindMethod
		receiver = receiverType(funcDecl.Recv.List[0].Type)
		if receiver != "" {
			name = receiver + "." + name
		}
	}

	mem := v.newMemory(kind, name, funcDecl.Pos(), funcDecl.End())
	mem.Signature = v.functionSignature(funcDecl)
	mem.Purpose = docSummary(funcDecl.Doc)
	v.result.Memories = append(v.result.Memories, mem)

	if receiver != "" {
		v.addRelationship(receiver, name, types.RelContains)
	}

	// Call edges at identifier granularity within the body
	if funcDecl.Body != nil {
		v.extractCalls(name, funcDecl.Body)
	}
}

// extractType handles struct, interface, and alias declarations
func (v *visitor) extractType(typeSpec *ast.TypeSpec) {
	name := typeSpec.Name.Name
	mem := v.newMemory(types.KindClass, name, typeSpec.Pos(), typeSpec.End())

	switch t := typeSpec.Type.(type) {
	case *ast.StructType:
		fieldCount := 0
		if t.Fields != nil {
			fieldCount = t.Fields.NumFields()
		}
		mem.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", name, fieldCount)

		// Embedded types act as inheritance
		if t.Fields != nil {
			for _, field := range t.Fields.List {
				if len(field.Names) == 0 {
					if base := receiverType(field.Type); base != "" {
						v.addRelationship(name, base, types.RelInherits)
					}
				}
			}
		}
	case *ast.InterfaceType:
		methodCount := 0
		if t.Methods != nil {
			methodCount = t.Methods.NumFields()
		}
		mem.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", name, methodCount)
	default:
		mem.Signature = fmt.Sprintf("type %s", name)
	}

	v.result.Memories = append(v.result.Memories, mem)
	v.addRelationship(v.filePath, name, types.RelContains)

	// Architectural naming patterns become their own searchable memories
	if tag := patternTag(name); tag != "" {
		pattern := v.newMemory(types.KindPattern, tag+":"+name, typeSpec.Pos(), typeSpec.End())
		pattern.Purpose = fmt.Sprintf("%s pattern implemented by %s", tag, name)
		pattern.Tags = []string{tag}
		v.result.Memories = append(v.result.Memories, pattern)
	}
}

// extractCalls records call edges from a function body. Only selector and
// plain identifier calls are tracked; granularity is best-effort.
func (v *visitor) extractCalls(from string, body *ast.BlockStmt) {
	seen := make(map[string]bool)
	ast.Inspect(body, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		var target string
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			target = fn.Name
		case *ast.SelectorExpr:
			if ident, ok := fn.X.(*ast.Ident); ok {
				target = ident.Name + "." + fn.Sel.Name
			}
		}
		if target == "" || seen[target] {
			return true
		}
		seen[target] = true
		v.addRelationship(from, target, types.RelCalls)
		return true
	})
}

// newMemory builds a memory for a span of the source file
func (v *visitor) newMemory(kind types.MemoryKind, name string, start, end token.Pos) *types.CodeMemory {
	startPos := v.fset.Position(start)
	endPos := v.fset.Position(end)

	mem := &types.CodeMemory{
		Context:  v.contextName,
		Kind:     kind,
		Name:     name,
		FilePath: v.filePath,
		Line:     startPos.Line,
		Content:  v.sourceRange(startPos.Line, endPos.Line),
		Metadata: map[string]string{"package": v.packageName},
	}
	mem.ID = types.DeriveMemoryID(v.contextName, v.filePath, kind, name)
	return mem
}

// sourceRange extracts the lines [startLine, endLine] from the file
func (v *visitor) sourceRange(startLine, endLine int) string {
	if startLine < 1 || startLine > len(v.lines) {
		return ""
	}
	if endLine > len(v.lines) {
		endLine = len(v.lines)
	}
	return strings.Join(v.lines[startLine-1:endLine], "\n")
}

func (v *visitor) addRelationship(from, to string, kind types.RelationKind) {
	v.result.Relationships = append(v.result.Relationships, &types.Relationship{
		Context:  v.contextName,
		From:     from,
		To:       to,
		Kind:     kind,
		FilePath: v.filePath,
	})
}

// functionSignature renders a readable signature for a declaration
func (v *visitor) functionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")

	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprToString(funcDecl.Recv.List[0].Type))
		sig.WriteString(") ")
	}

	sig.WriteString(funcDecl.Name.Name)
	sig.WriteString("(")
	if funcDecl.Type.Params != nil {
		sig.WriteString(fieldListToString(funcDecl.Type.Params))
	}
	sig.WriteString(")")

	if funcDecl.Type.Results != nil {
		results := fieldListToString(funcDecl.Type.Results)
		if results != "" {
			if funcDecl.Type.Results.NumFields() > 1 {
				sig.WriteString(" (" + results + ")")
			} else {
				sig.WriteString(" " + results)
			}
		}
	}
	return sig.String()
}

// receiverType extracts the base type name from a receiver or embedded field
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	}
	return ""
}

// fieldListToString renders a parameter or result list
func fieldListToString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprToString(field.Type)
		if len(field.Names) > 0 {
			names := make([]string, len(field.Names))
			for i, name := range field.Names {
				names[i] = name.Name
			}
			parts = append(parts, strings.Join(names, ", ")+" "+typeStr)
		} else {
			parts = append(parts, typeStr)
		}
	}
	return strings.Join(parts, ", ")
}

// exprToString renders a type expression
func exprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.SelectorExpr:
		return exprToString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprToString(t.Elt)
	case *ast.MapType:
		return "map[" + exprToString(t.Key) + "]" + exprToString(t.Value)
	case *ast.ChanType:
		return "chan " + exprToString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.Ellipsis:
		return "..." + exprToString(t.Elt)
	default:
		return "?"
	}
}

// docSummary returns the first sentence of a doc comment
func docSummary(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	text := strings.TrimSpace(doc.Text())
	if idx := strings.IndexAny(text, ".\n"); idx > 0 {
		text = text[:idx]
	}
	return text
}

// patternTag maps conventional type-name suffixes to architecture patterns
func patternTag(name string) string {
	switch {
	case strings.HasSuffix(name, "Service"):
		return "service"
	case strings.HasSuffix(name, "Repository"):
		return "repository"
	case strings.HasSuffix(name, "Handler"):
		return "handler"
	case strings.HasSuffix(name, "Factory"):
		return "factory"
	case strings.HasSuffix(name, "Controller"):
		return "controller"
	}
	return ""
}
