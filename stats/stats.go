// Package stats assembles a size and usage report for a database: row
// counts per table, page and byte sizes per entity from the dbstat
// virtual table when the build carries it, and a pragma snapshot.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
)

// IndexStats sizes one index. Pages and Bytes are zero when dbstat is
// unavailable.
type IndexStats struct {
	Name  string `json:"name" yaml:"name"`
	Pages int64  `json:"pages" yaml:"pages"`
	Bytes int64  `json:"bytes" yaml:"bytes"`
}

// TableStats sizes one table together with its indexes.
type TableStats struct {
	Name    string       `json:"name" yaml:"name"`
	Rows    int64        `json:"rows" yaml:"rows"`
	Pages   int64        `json:"pages" yaml:"pages"`
	Bytes   int64        `json:"bytes" yaml:"bytes"`
	Indexes []IndexStats `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// Pragma is one name/value pair from the snapshot.
type Pragma struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Report is the full statistics report for a database.
type Report struct {
	Path        string       `json:"path,omitempty" yaml:"path,omitempty"`
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	PageSize    int64        `json:"page_size" yaml:"page_size"`
	PageCount   int64        `json:"page_count" yaml:"page_count"`
	FreePages   int64        `json:"free_pages" yaml:"free_pages"`
	TotalBytes  int64        `json:"total_bytes" yaml:"total_bytes"`
	FreeBytes   int64        `json:"free_bytes" yaml:"free_bytes"`
	DiskUsage   bool         `json:"disk_usage" yaml:"disk_usage"`
	Tables      []TableStats `json:"tables" yaml:"tables"`
	Pragmas     []Pragma     `json:"pragmas,omitempty" yaml:"pragmas,omitempty"`

	// Schema statements, in sqlite_master order, for the sql rendering.
	SchemaSQL []string `json:"-" yaml:"-"`
}

// pragmaNames is the snapshot order. Write-state pragmas are left out.
var pragmaNames = []string{
	"application_id",
	"auto_vacuum",
	"cache_size",
	"encoding",
	"foreign_keys",
	"freelist_count",
	"journal_mode",
	"page_count",
	"page_size",
	"schema_version",
	"synchronous",
	"user_version",
	"wal_autocheckpoint",
}

// Collector gathers statistics from one database.
type Collector struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewCollector creates a Collector. A nil logger falls back to
// slog.Default.
func NewCollector(conn *sql.DB, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{conn: conn, logger: logger}
}

// Collect builds the report. With diskUsage set, per-entity page and
// byte sizes are read from the dbstat virtual table; builds without
// dbstat fall back to whole-database page pragmas.
func (c *Collector) Collect(ctx context.Context, s *schema.Schema, path string, diskUsage bool) (*Report, error) {
	r := &Report{Path: path, GeneratedAt: time.Now(), DiskUsage: diskUsage}

	for _, name := range []struct {
		pragma string
		dst    *int64
	}{
		{"page_size", &r.PageSize},
		{"page_count", &r.PageCount},
		{"freelist_count", &r.FreePages},
	} {
		if err := c.conn.QueryRowContext(ctx, "PRAGMA "+name.pragma).Scan(name.dst); err != nil {
			return nil, fmt.Errorf("pragma %s: %w", name.pragma, err)
		}
	}
	r.TotalBytes = r.PageSize * r.PageCount
	r.FreeBytes = r.PageSize * r.FreePages

	sizes := map[string][2]int64{}
	if diskUsage {
		var err error
		sizes, err = c.entitySizes(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, obj := range s.Category(grammar.CategoryTable) {
		ts := TableStats{Name: obj.Name}
		if err := c.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+grammar.QuoteAlways(obj.Name)).Scan(&ts.Rows); err != nil {
			return nil, fmt.Errorf("count rows of %s: %w", obj.Name, err)
		}
		if sz, ok := sizes[obj.Name]; ok {
			ts.Pages, ts.Bytes = sz[0], sz[1]
			delete(sizes, obj.Name)
		}
		r.Tables = append(r.Tables, ts)
	}

	// Attach index sizes to their tables. Automatic indexes carry no
	// schema entry; their dbstat name encodes the table.
	for _, obj := range s.Category(grammar.CategoryIndex) {
		idx := IndexStats{Name: obj.Name}
		if sz, ok := sizes[obj.Name]; ok {
			idx.Pages, idx.Bytes = sz[0], sz[1]
			delete(sizes, obj.Name)
		}
		attachIndex(r, obj.TableName, idx)
	}
	for name, sz := range sizes {
		table, ok := autoIndexTable(name)
		if !ok {
			continue
		}
		attachIndex(r, table, IndexStats{Name: name, Pages: sz[0], Bytes: sz[1]})
	}

	for _, obj := range s.Objects {
		r.SchemaSQL = append(r.SchemaSQL, strings.TrimSpace(obj.SQL))
	}

	pragmas, err := c.pragmaSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.Pragmas = pragmas
	return r, nil
}

// entitySizes aggregates dbstat per entity name. A missing dbstat module
// degrades to an empty map.
func (c *Collector) entitySizes(ctx context.Context) (map[string][2]int64, error) {
	rows, err := c.conn.QueryContext(ctx,
		"SELECT name, COUNT(*), SUM(pgsize) FROM dbstat GROUP BY name")
	if err != nil {
		c.logger.Debug("dbstat unavailable, sizes omitted", "error", err)
		return map[string][2]int64{}, nil
	}
	defer rows.Close()
	sizes := map[string][2]int64{}
	for rows.Next() {
		var name string
		var pages, bytes int64
		if err := rows.Scan(&name, &pages, &bytes); err != nil {
			return nil, fmt.Errorf("scan dbstat: %w", err)
		}
		sizes[name] = [2]int64{pages, bytes}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read dbstat: %w", err)
	}
	return sizes, nil
}

func (c *Collector) pragmaSnapshot(ctx context.Context) ([]Pragma, error) {
	var out []Pragma
	for _, name := range pragmaNames {
		var value sql.NullString
		err := c.conn.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pragma %s: %w", name, err)
		}
		out = append(out, Pragma{Name: name, Value: value.String})
	}
	return out, nil
}

func attachIndex(r *Report, table string, idx IndexStats) {
	for i := range r.Tables {
		if strings.EqualFold(r.Tables[i].Name, table) {
			r.Tables[i].Indexes = append(r.Tables[i].Indexes, idx)
			return
		}
	}
}

// autoIndexTable extracts the owning table from an automatic index name
// of the form sqlite_autoindex_TABLE_N.
func autoIndexTable(name string) (string, bool) {
	const prefix = "sqlite_autoindex_"
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}
