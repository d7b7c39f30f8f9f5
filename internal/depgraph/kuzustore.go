//go:build cgo

package depgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path, so the import graph survives restarts. KuzuDB
// creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Document(
		uri STRING,
		declarations INT64,
		indexed BOOLEAN,
		PRIMARY KEY(uri)
	)`,
	`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM Document TO Document)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// PutDocument upserts an indexed Document node.
func (s *KuzuStore) PutDocument(_ context.Context, doc DocumentNode) error {
	return s.exec(
		`MERGE (d:Document {uri: $uri})
		 ON CREATE SET d.declarations = $decls, d.indexed = true
		 ON MATCH SET d.declarations = $decls, d.indexed = true`,
		map[string]any{
			"uri":   doc.URI,
			"decls": int64(doc.Declarations),
		},
	)
}

// SetImports replaces the IMPORTS edges leaving uri. Targets that are not
// indexed yet get placeholder nodes so later updates can find importers.
func (s *KuzuStore) SetImports(_ context.Context, uri string, targets []string) error {
	if err := s.ensureDocument(uri); err != nil {
		return err
	}
	if err := s.exec(
		"MATCH (a:Document {uri: $uri})-[r:IMPORTS]->(:Document) DELETE r",
		map[string]any{"uri": uri},
	); err != nil {
		return err
	}
	for _, t := range targets {
		if err := s.ensureDocument(t); err != nil {
			return err
		}
		if err := s.exec(
			`MATCH (a:Document {uri: $src}), (b:Document {uri: $dst})
			 MERGE (a)-[:IMPORTS]->(b)`,
			map[string]any{"src": uri, "dst": t},
		); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocument drops the IMPORTS edges leaving uri and marks it unindexed.
func (s *KuzuStore) RemoveDocument(_ context.Context, uri string) error {
	if err := s.exec(
		"MATCH (a:Document {uri: $uri})-[r:IMPORTS]->(:Document) DELETE r",
		map[string]any{"uri": uri},
	); err != nil {
		return err
	}
	return s.exec(
		"MATCH (d:Document {uri: $uri}) SET d.indexed = false",
		map[string]any{"uri": uri},
	)
}

func (s *KuzuStore) ensureDocument(uri string) error {
	return s.exec(
		`MERGE (d:Document {uri: $uri})
		 ON CREATE SET d.declarations = 0, d.indexed = false`,
		map[string]any{"uri": uri},
	)
}

// ---------- Read operations ----------

// GetDocument retrieves an indexed Document node, or nil if not found.
func (s *KuzuStore) GetDocument(_ context.Context, uri string) (*DocumentNode, error) {
	rows, err := s.query(
		`MATCH (d:Document {uri: $uri}) WHERE d.indexed = true
		 RETURN d.uri, d.declarations`,
		map[string]any{"uri": uri},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &DocumentNode{
		URI:          toString(rows[0][0]),
		Declarations: toInt(rows[0][1]),
	}, nil
}

// Imports returns the sorted targets imported by uri.
func (s *KuzuStore) Imports(_ context.Context, uri string) ([]string, error) {
	rows, err := s.query(
		"MATCH (a:Document {uri: $uri})-[:IMPORTS]->(b:Document) RETURN b.uri",
		map[string]any{"uri": uri},
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	sort.Strings(out)
	return out, nil
}

// ---------- Graph traversal ----------

// Dependents performs a BFS backwards over IMPORTS edges from the changed
// documents. Changed documents never appear in the result.
func (s *KuzuStore) Dependents(_ context.Context, changed []string) (*Impact, error) {
	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[c] = true
	}

	directSet := map[string]bool{}
	all := map[string]bool{}
	frontier := append([]string(nil), changed...)
	first := true

	for len(frontier) > 0 {
		var next []string
		for _, uri := range frontier {
			importers, err := s.importers(uri)
			if err != nil {
				return nil, err
			}
			for _, imp := range importers {
				if changedSet[imp] || all[imp] {
					continue
				}
				all[imp] = true
				if first {
					directSet[imp] = true
				}
				next = append(next, imp)
			}
		}
		frontier = next
		first = false
	}

	return &Impact{
		Direct:     setToSlice(directSet),
		Transitive: setToSlice(all),
	}, nil
}

// importers returns the documents with an IMPORTS edge into uri.
func (s *KuzuStore) importers(uri string) ([]string, error) {
	rows, err := s.query(
		"MATCH (a:Document)-[:IMPORTS]->(b:Document {uri: $uri}) RETURN a.uri",
		map[string]any{"uri": uri},
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns the number of indexed documents and import edges.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	docs, err := s.count("MATCH (d:Document) WHERE d.indexed = true RETURN count(d)")
	if err != nil {
		return nil, err
	}
	edges, err := s.count("MATCH ()-[r:IMPORTS]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	return &GraphStats{DocumentCount: docs, ImportCount: edges}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// KuzuDB returns typed Go values (int64, string); these coerce any.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
