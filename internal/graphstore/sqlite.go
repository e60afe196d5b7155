package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite with FTS5
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite-backed graph store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertNode inserts or replaces a node keyed by its derived ID
func (s *SQLiteStore) UpsertNode(ctx context.Context, node *Node) error {
	if node.Context == "" {
		return types.ErrContextRequired
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, context, name, kind, file_path, line, content, signature, purpose, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			file_path = excluded.file_path,
			line = excluded.line,
			content = excluded.content,
			signature = excluded.signature,
			purpose = excluded.purpose,
			updated_at = excluded.updated_at`,
		node.ID, node.Context, node.Name, string(node.Kind), node.FilePath, node.Line,
		node.Content, node.Signature, node.Purpose, now, now)
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", node.Name, err)
	}
	return nil
}

// UpsertEdge inserts a directed edge; duplicates collapse on the unique index
func (s *SQLiteStore) UpsertEdge(ctx context.Context, edge *Edge) error {
	if edge.Context == "" {
		return types.ErrContextRequired
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (context, from_name, to_name, kind, file_path)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(context, from_name, to_name, kind) DO UPDATE SET
			file_path = excluded.file_path`,
		edge.Context, edge.From, edge.To, string(edge.Kind), edge.FilePath)
	if err != nil {
		return fmt.Errorf("upsert edge %s->%s: %w", edge.From, edge.To, err)
	}
	return nil
}

// GetNode fetches one node by element name
func (s *SQLiteStore) GetNode(ctx context.Context, contextName, name string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, context, name, kind, file_path, line, content, signature, purpose, created_at, updated_at
		FROM nodes WHERE context = ? AND name = ? LIMIT 1`,
		contextName, name)
	return scanNode(row)
}

// ListByPathPrefix returns every node whose file path equals prefix or sits
// under it as a directory. A sibling path that merely shares the leading
// characters never matches.
func (s *SQLiteStore) ListByPathPrefix(ctx context.Context, contextName, prefix string) ([]*Node, error) {
	cond, condArgs := pathPrefixClause(prefix)
	args := append([]any{contextName}, condArgs...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, context, name, kind, file_path, line, content, signature, purpose, created_at, updated_at
		FROM nodes WHERE context = ? AND `+cond+`
		ORDER BY file_path, line`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes by prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []*Node
	for rows.Next() {
		node, err := scanNodeRows(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// FullTextSearch matches nodes against the FTS index, ranked by bm25.
// Context is filtered after the match since the FTS table only carries text
// columns.
func (s *SQLiteStore) FullTextSearch(ctx context.Context, contextName, query string, limit int) ([]ScoredNode, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.context, n.name, n.kind, n.file_path, n.line, n.content, n.signature, n.purpose,
		       n.created_at, n.updated_at, bm25(nodes_fts) AS score
		FROM nodes_fts f
		JOIN nodes n ON n.rowid = f.rowid
		WHERE nodes_fts MATCH ? AND n.context = ?
		ORDER BY score
		LIMIT ?`,
		sanitized, contextName, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ScoredNode
	for rows.Next() {
		var node Node
		var kind string
		var raw float64
		if err := rows.Scan(&node.ID, &node.Context, &node.Name, &kind, &node.FilePath, &node.Line,
			&node.Content, &node.Signature, &node.Purpose, &node.CreatedAt, &node.UpdatedAt, &raw); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		node.Kind = types.MemoryKind(kind)

		// bm25 returns negative values with better matches more negative;
		// map onto a positive score
		results = append(results, ScoredNode{Node: &node, Score: -raw})
	}
	return results, rows.Err()
}

// Neighbors returns edges touching the named element, out to maxDepth hops
func (s *SQLiteStore) Neighbors(ctx context.Context, contextName, name string, maxDepth int) ([]types.RelatedElement, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	seen := map[string]bool{name: true}
	frontier := []string{name}
	var related []types.RelatedElement

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			rows, err := s.db.QueryContext(ctx, `
				SELECT from_name, to_name, kind FROM edges
				WHERE context = ? AND (from_name = ? OR to_name = ?)`,
				contextName, current, current)
			if err != nil {
				return nil, fmt.Errorf("query neighbors: %w", err)
			}

			for rows.Next() {
				var from, to, kind string
				if err := rows.Scan(&from, &to, &kind); err != nil {
					_ = rows.Close()
					return nil, fmt.Errorf("scan neighbor: %w", err)
				}
				other := to
				if other == current {
					other = from
				}
				if seen[other] {
					continue
				}
				seen[other] = true
				related = append(related, types.RelatedElement{
					Name:  other,
					Kind:  types.RelationKind(kind),
					Depth: depth,
				})
				next = append(next, other)
			}
			if err := rows.Close(); err != nil {
				return nil, err
			}
		}
		frontier = next
	}
	return related, nil
}

// TraverseDependencies walks outgoing edges breadth-first up to maxDepth
func (s *SQLiteStore) TraverseDependencies(ctx context.Context, contextName, name string, maxDepth int) ([]string, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	seen := map[string]bool{name: true}
	frontier := []string{name}
	var deps []string

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			rows, err := s.db.QueryContext(ctx, `
				SELECT to_name FROM edges WHERE context = ? AND from_name = ?`,
				contextName, current)
			if err != nil {
				return nil, fmt.Errorf("traverse dependencies: %w", err)
			}
			for rows.Next() {
				var to string
				if err := rows.Scan(&to); err != nil {
					_ = rows.Close()
					return nil, err
				}
				if seen[to] {
					continue
				}
				seen[to] = true
				deps = append(deps, to)
				next = append(next, to)
			}
			if err := rows.Close(); err != nil {
				return nil, err
			}
		}
		frontier = next
	}
	return deps, nil
}

// FindCycles reports dependency cycles within one context using iterative
// DFS over the in-memory adjacency list.
func (s *SQLiteStore) FindCycles(ctx context.Context, contextName string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_name, to_name FROM edges WHERE context = ?`, contextName)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	adj := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		adj[from] = append(adj[from], to)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return findCycles(adj), nil
}

// Delete removes nodes matching the filter plus their incident edges
func (s *SQLiteStore) Delete(ctx context.Context, contextName string, filter NodeFilter) (int, error) {
	if contextName == "" {
		return 0, types.ErrContextRequired
	}
	if filter.FilePath == "" && filter.PathPrefix == "" && filter.Name == "" {
		return 0, ErrEmptyFilter
	}

	where := []string{"context = ?"}
	args := []any{contextName}
	if filter.FilePath != "" {
		where = append(where, "file_path = ?")
		args = append(args, filter.FilePath)
	}
	if filter.PathPrefix != "" {
		cond, condArgs := pathPrefixClause(filter.PathPrefix)
		where = append(where, cond)
		args = append(args, condArgs...)
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	cond := strings.Join(where, " AND ")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Remove edges referencing the doomed nodes first
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM edges WHERE context = ? AND (
			from_name IN (SELECT name FROM nodes WHERE %s) OR
			to_name   IN (SELECT name FROM nodes WHERE %s))`, cond, cond),
		append(append([]any{contextName}, args...), args...)...); err != nil {
		return 0, fmt.Errorf("delete edges: %w", err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM nodes WHERE %s", cond), args...)
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}

	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

// Stats reports node and edge counts for a context
func (s *SQLiteStore) Stats(ctx context.Context, contextName string) (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM nodes WHERE context = ?", contextName).Scan(&stats.Nodes); err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edges WHERE context = ?", contextName).Scan(&stats.Edges); err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	return stats, nil
}

// scanNode scans a node from a single-row query
func scanNode(row *sql.Row) (*Node, error) {
	var node Node
	var kind string
	err := row.Scan(&node.ID, &node.Context, &node.Name, &kind, &node.FilePath, &node.Line,
		&node.Content, &node.Signature, &node.Purpose, &node.CreatedAt, &node.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	node.Kind = types.MemoryKind(kind)
	return &node, nil
}

// scanNodeRows scans a node from a multi-row result set
func scanNodeRows(rows *sql.Rows) (*Node, error) {
	var node Node
	var kind string
	err := rows.Scan(&node.ID, &node.Context, &node.Name, &kind, &node.FilePath, &node.Line,
		&node.Content, &node.Signature, &node.Purpose, &node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	node.Kind = types.MemoryKind(kind)
	return &node, nil
}

// pathPrefixClause builds a SQL condition matching file_path at a directory
// boundary: the path equals the prefix, or descends from it through a path
// separator. "inner" therefore matches "inner/a.go" but not "inner_extra/b.go".
func pathPrefixClause(prefix string) (string, []any) {
	sep := string(filepath.Separator)
	trimmed := strings.TrimSuffix(prefix, sep)
	if trimmed == "" {
		// Filesystem root
		return `file_path LIKE ? ESCAPE '\'`, []any{escapeLike(sep) + "%"}
	}
	return `(file_path = ? OR file_path LIKE ? ESCAPE '\')`,
		[]any{trimmed, escapeLike(trimmed+sep) + "%"}
}

// escapeLike escapes LIKE wildcards in a literal prefix
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery quotes query terms for FTS5 so user input cannot inject
// match syntax.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, field := range fields {
		field = ftsOperatorPattern.ReplaceAllStringFunc(field, strings.ToLower)
		field = strings.ReplaceAll(field, `"`, `""`)
		quoted = append(quoted, `"`+field+`"`)
	}
	return strings.Join(quoted, " OR ")
}
