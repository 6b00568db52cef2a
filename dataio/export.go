// Package dataio exports table and view data to the supported file
// formats and imports spreadsheet-shaped files back into tables.
package dataio

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/sqlitekit/db"
	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// Format identifies an export or import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
	FormatSQL  Format = "sql"
	FormatTXT  Format = "txt"
	FormatXLSX Format = "xlsx"
)

// ExportFormats lists the formats Export understands.
var ExportFormats = []Format{
	FormatCSV, FormatJSON, FormatYAML, FormatHTML, FormatSQL, FormatTXT, FormatXLSX,
}

// FormatFromPath derives the format from a file name extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "yml" {
		ext = "yaml"
	}
	for _, f := range ExportFormats {
		if string(f) == ext {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported file format: %q", path)
}

// Entity is one table or view being exported.
type Entity struct {
	Name      string
	Category  string
	CreateSQL string
	Columns   []db.ColumnInfo
}

// ExportOptions controls row selection and rendering.
type ExportOptions struct {
	Format     Format
	Limit      int64 // per entity, negative means no limit
	Offset     int64
	TotalLimit int64  // positive caps rows across all entities of one Export
	Reverse    bool   // tables only: emit rows in reverse rowid order
	JQ         string // json only: post-process output with a jq expression
	Title      string // html document heading
}

// Exporter streams entity rows into the chosen format.
type Exporter struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewExporter creates an Exporter. A nil logger falls back to slog.Default.
func NewExporter(conn *sql.DB, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{conn: conn, logger: logger}
}

// Export writes the entities to one output. Multiple entities render as
// named sections, sheets or keys depending on the format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, entities []Entity, opts ExportOptions) error {
	rw, err := e.newWriter(w, opts, len(entities))
	if err != nil {
		return err
	}
	remaining := opts.TotalLimit
	for _, ent := range entities {
		entOpts := opts
		if opts.TotalLimit > 0 {
			if remaining <= 0 {
				break
			}
			if entOpts.Limit < 0 || entOpts.Limit > remaining {
				entOpts.Limit = remaining
			}
		}
		e.logger.Debug("exporting entity", "name", ent.Name, "format", opts.Format)
		n, err := e.exportEntity(ctx, rw, ent, entOpts)
		if err != nil {
			return fmt.Errorf("export %s: %w", ent.Name, err)
		}
		remaining -= n
	}
	return rw.close()
}

// ExportFiles writes one file per entity under dir, named after the
// entity, exporting concurrently.
func (e *Exporter) ExportFiles(ctx context.Context, dir string, entities []Entity, opts ExportOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	for i, ent := range entities {
		i, ent := i, ent
		paths[i] = filepath.Join(dir, fileSafe(ent.Name)+"."+string(opts.Format))
		g.Go(func() error {
			f, err := os.Create(paths[i])
			if err != nil {
				return fmt.Errorf("create %s: %w", paths[i], err)
			}
			defer f.Close()
			if err := e.Export(gctx, f, []Entity{ent}, opts); err != nil {
				return err
			}
			return f.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// ExportQuery runs an arbitrary SELECT and writes its result set like a
// single-entity export. Used for query results and row searches.
func (e *Exporter) ExportQuery(ctx context.Context, w io.Writer, name, query string, args []any, opts ExportOptions) error {
	return e.ExportQueries(ctx, w, []QuerySpec{{Name: name, Query: query, Args: args}}, opts)
}

// QuerySpec names one SELECT for a combined export.
type QuerySpec struct {
	Name  string
	Query string
	Args  []any
}

// ExportQueries writes several query results into one output, sectioned
// like a multi-entity export.
func (e *Exporter) ExportQueries(ctx context.Context, w io.Writer, queries []QuerySpec, opts ExportOptions) error {
	rw, err := e.newWriter(w, opts, len(queries))
	if err != nil {
		return err
	}
	for _, q := range queries {
		e.logger.Debug("exporting query", "name", q.Name, "format", opts.Format)
		rows, err := e.conn.QueryContext(ctx, q.Query, q.Args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", q.Name, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return fmt.Errorf("columns of %s: %w", q.Name, err)
		}
		ent := Entity{Name: q.Name}
		for _, c := range cols {
			ent.Columns = append(ent.Columns, db.ColumnInfo{Name: c})
		}
		if err := rw.begin(ent); err != nil {
			rows.Close()
			return err
		}
		_, err = writeRows(rows, len(cols), rw)
		rows.Close()
		if err != nil {
			return fmt.Errorf("export %s: %w", q.Name, err)
		}
		if err := rw.endEntity(); err != nil {
			return err
		}
	}
	return rw.close()
}

func (e *Exporter) exportEntity(ctx context.Context, rw rowWriter, ent Entity, opts ExportOptions) (int64, error) {
	if err := rw.begin(ent); err != nil {
		return 0, err
	}
	rows, err := e.queryEntity(ctx, ent, opts)
	if err != nil {
		return 0, err
	}
	n, err := writeRows(rows, len(ent.Columns), rw)
	rows.Close()
	if err != nil {
		return n, err
	}
	return n, rw.endEntity()
}

func (e *Exporter) queryEntity(ctx context.Context, ent Entity, opts ExportOptions) (*sql.Rows, error) {
	stmt := "SELECT * FROM " + grammar.Quote(ent.Name)
	if opts.Reverse && ent.Category == grammar.CategoryTable {
		stmt += " ORDER BY _rowid_ DESC"
	}
	var args []any
	if opts.Limit >= 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit < 0 {
			limit = -1 // no limit, offset still applies
		}
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}
	rows, err := e.conn.QueryContext(ctx, stmt, args...)
	if err != nil && opts.Reverse && ent.Category == grammar.CategoryTable {
		// WITHOUT ROWID tables have no _rowid_; fall back to plain order.
		plain := strings.Replace(stmt, " ORDER BY _rowid_ DESC", "", 1)
		rows, err = e.conn.QueryContext(ctx, plain, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return rows, nil
}

func writeRows(rows *sql.Rows, n int, rw rowWriter) (int64, error) {
	var written int64
	for rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return written, fmt.Errorf("scan row: %w", err)
		}
		if err := rw.write(vals); err != nil {
			return written, err
		}
		written++
	}
	return written, rows.Err()
}

// rowWriter renders one export format. begin/endEntity bracket each
// entity's rows; close finishes the document.
type rowWriter interface {
	begin(ent Entity) error
	write(row []any) error
	endEntity() error
	close() error
}

func (e *Exporter) newWriter(w io.Writer, opts ExportOptions, entityCount int) (rowWriter, error) {
	switch opts.Format {
	case FormatCSV:
		return &csvWriter{w: csv.NewWriter(w), multi: entityCount > 1}, nil
	case FormatJSON:
		return newJSONWriter(w, opts.JQ, entityCount > 1)
	case FormatYAML:
		return newYAMLWriter(w, entityCount > 1), nil
	case FormatSQL:
		return &sqlWriter{w: w}, nil
	case FormatTXT:
		return &textWriter{w: w}, nil
	case FormatHTML:
		return newHTMLWriter(w, opts.Title), nil
	case FormatXLSX:
		return newXLSXWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", opts.Format)
	}
}

// displayString renders a value for text-oriented formats.
func displayString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// jsonValue normalizes a scanned value for json/yaml encoders, keeping
// text readable instead of base64.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func columnNames(ent Entity) []string {
	names := make([]string, len(ent.Columns))
	for i, c := range ent.Columns {
		names[i] = c.Name
	}
	return names
}
