// Package schema introspects a live SQLite database into parsed entity
// definitions and answers dependency questions between them: which indexes,
// triggers, views and foreign-key tables hang off a given table. The alter
// package plans table rebuilds on top of these answers.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// Object is one schema entity loaded from sqlite_master.
type Object struct {
	Category  string
	Name      string
	TableName string // owning table for indexes and triggers
	SQL       string

	Table   *grammar.Table
	Index   *grammar.Index
	Trigger *grammar.Trigger
	View    *grammar.View

	// ParseErr is set when the entity's SQL could not be parsed; the raw
	// SQL remains usable for dump and search purposes.
	ParseErr error
}

// Schema holds all entities of a database in sqlite_master order.
type Schema struct {
	Objects []*Object
}

// Load reads and parses the full schema from the database. Internal
// sqlite_ entities and implicit indexes (NULL sql) are skipped.
func Load(ctx context.Context, db *sql.DB) (*Schema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT type, name, tbl_name, sql FROM sqlite_master
		 WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	defer rows.Close()

	s := &Schema{}
	for rows.Next() {
		var obj Object
		if err := rows.Scan(&obj.Category, &obj.Name, &obj.TableName, &obj.SQL); err != nil {
			return nil, fmt.Errorf("scan sqlite_master: %w", err)
		}
		parseObject(&obj)
		s.Objects = append(s.Objects, &obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sqlite_master: %w", err)
	}
	return s, nil
}

func parseObject(obj *Object) {
	stmt, err := grammar.ParseStatement(obj.SQL)
	if err != nil {
		obj.ParseErr = err
		slog.Debug("schema entity not parsable", "category", obj.Category,
			"name", obj.Name, "error", err)
		return
	}
	switch t := stmt.(type) {
	case *grammar.Table:
		obj.Table = t
	case *grammar.Index:
		obj.Index = t
	case *grammar.Trigger:
		obj.Trigger = t
	case *grammar.View:
		obj.View = t
	}
}

// Category returns all entities of one category in definition order.
func (s *Schema) Category(category string) []*Object {
	var out []*Object
	for _, o := range s.Objects {
		if o.Category == category {
			out = append(out, o)
		}
	}
	return out
}

// Get returns the entity with the given category and name, matched
// case-insensitively, or nil. An empty category matches any category.
func (s *Schema) Get(category, name string) *Object {
	for _, o := range s.Objects {
		if (category == "" || o.Category == category) && strings.EqualFold(o.Name, name) {
			return o
		}
	}
	return nil
}

// Names returns every entity name in the schema.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Objects))
	for i, o := range s.Objects {
		names[i] = o.Name
	}
	return names
}

// UniqueName derives a name based on base that collides with no entity in
// the schema nor any of the extra names, case-insensitively.
func (s *Schema) UniqueName(base string, extra ...string) string {
	taken := make(map[string]bool, len(s.Objects)+len(extra))
	for _, n := range s.Names() {
		taken[strings.ToLower(n)] = true
	}
	for _, n := range extra {
		taken[strings.ToLower(n)] = true
	}
	if !taken[strings.ToLower(base)] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// Count returns the row count of a table or view.
func Count(ctx context.Context, db *sql.DB, name string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+grammar.QuoteAlways(name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// Capabilities reports which native ALTER TABLE forms the linked SQLite
// library supports; older forms require a full table rebuild.
type Capabilities struct {
	Version      string
	RenameColumn bool // ALTER TABLE .. RENAME COLUMN, added in 3.25
	DropColumn   bool // ALTER TABLE .. DROP COLUMN, added in 3.35
}

// LoadCapabilities queries sqlite_version() and derives capability gates.
func LoadCapabilities(ctx context.Context, db *sql.DB) (Capabilities, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return Capabilities{}, fmt.Errorf("sqlite_version: %w", err)
	}
	return Capabilities{
		Version:      version,
		RenameColumn: versionAtLeast(version, 3, 25),
		DropColumn:   versionAtLeast(version, 3, 35),
	}, nil
}

func versionAtLeast(version string, major, minor int) bool {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return false
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	return maj > major || (maj == major && min >= minor)
}
