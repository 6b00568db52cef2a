package dataio

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/GoCodeAlone/sqlitekit/db"
	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// ImportOptions controls how file rows land in a table.
type ImportOptions struct {
	Format    Format // derived from the file name when empty
	TableName string // defaults to the file's base name
	RowHeader bool   // first row carries the column names (csv, txt, xlsx)
	Columns   []string
	AddPK     string // add an auto-increment primary key with this name
	NoEmpty   bool   // skip rows whose every value is empty
	Limit     int64  // negative means no limit
	Offset    int64
	Filter    string // expr predicate over "row" and "i"
	BatchSize int
}

// ImportResult reports what an import did.
type ImportResult struct {
	Table   string
	Rows    int64
	Skipped int64
	Created bool // table was created by the import
}

// Importer loads spreadsheet-shaped files into tables.
type Importer struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewImporter creates an Importer. A nil logger falls back to slog.Default.
func NewImporter(conn *sql.DB, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{conn: conn, logger: logger}
}

// ImportFile imports the file into the target table, creating the table
// when it does not exist.
func (im *Importer) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	if opts.Format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	if opts.TableName == "" {
		base := fileBase(path)
		opts.TableName = base
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	src, closer, err := openSource(path, opts)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	return im.importRows(ctx, src, opts)
}

func (im *Importer) importRows(ctx context.Context, src rowSource, opts ImportOptions) (*ImportResult, error) {
	cols, err := src.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	keep := keepIndexes(cols, opts.Columns)
	if len(keep) == 0 {
		return nil, fmt.Errorf("no columns selected for import")
	}
	targets := make([]string, len(keep))
	for i, idx := range keep {
		targets[i] = cols[idx]
	}

	var filter *vm.Program
	if opts.Filter != "" {
		filter, err = expr.Compile(opts.Filter, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compile filter %q: %w", opts.Filter, err)
		}
	}

	// Buffer a window of rows to guess column affinities when the table
	// has to be created.
	var window [][]any
	for len(window) < 100 {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		window = append(window, row)
	}

	result := &ImportResult{Table: opts.TableName}
	if _, err := db.Columns(ctx, im.conn, opts.TableName); err != nil {
		if err := im.createTable(ctx, opts, targets, window, keep); err != nil {
			return nil, err
		}
		result.Created = true
	}

	quoted := make([]string, len(targets))
	marks := make([]string, len(targets))
	for i, c := range targets {
		quoted[i] = grammar.Quote(c)
		marks[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		grammar.Quote(opts.TableName), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	tx, err := im.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	// tx is rebound at batch boundaries; roll back whichever transaction
	// is open when an error bails out, or the connection stays claimed.
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	var seen, inBatch int64
	next := func() ([]any, error) {
		if len(window) > 0 {
			row := window[0]
			window = window[1:]
			return row, nil
		}
		return src.Next()
	}
	for {
		if opts.Limit >= 0 && result.Rows >= opts.Limit {
			break
		}
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		seen++
		if seen <= opts.Offset {
			continue
		}

		vals := pickValues(row, keep)
		if opts.NoEmpty && allEmpty(vals) {
			result.Skipped++
			continue
		}
		if filter != nil {
			ok, err := runFilter(filter, targets, vals, seen)
			if err != nil {
				return nil, err
			}
			if !ok {
				result.Skipped++
				continue
			}
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", seen, err)
		}
		result.Rows++
		inBatch++
		if inBatch >= int64(opts.BatchSize) {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				tx = nil
				return nil, fmt.Errorf("commit batch: %w", err)
			}
			tx, err = im.conn.BeginTx(ctx, nil)
			if err != nil {
				return nil, fmt.Errorf("begin import tx: %w", err)
			}
			stmt, err = tx.PrepareContext(ctx, insertSQL)
			if err != nil {
				return nil, fmt.Errorf("prepare insert: %w", err)
			}
			inBatch = 0
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		tx = nil
		return nil, fmt.Errorf("commit import: %w", err)
	}
	tx = nil
	im.logger.Info("import finished",
		"table", result.Table,
		"rows", result.Rows,
		"skipped", result.Skipped,
		"created", result.Created)
	return result, nil
}

func (im *Importer) createTable(ctx context.Context, opts ImportOptions, targets []string, window [][]any, keep []int) error {
	var defs []string
	if opts.AddPK != "" {
		defs = append(defs, grammar.Quote(opts.AddPK)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	}
	for i, name := range targets {
		defs = append(defs, grammar.Quote(name)+" "+guessAffinity(window, keep[i]))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", grammar.Quote(opts.TableName), strings.Join(defs, ", "))
	im.logger.Debug("creating table", "sql", stmt)
	if _, err := im.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", opts.TableName, err)
	}
	return nil
}

// guessAffinity picks TEXT, INTEGER or REAL from the values a column
// takes in the sampled window.
func guessAffinity(window [][]any, idx int) string {
	affinity := ""
	for _, row := range window {
		if idx >= len(row) {
			continue
		}
		v := row[idx]
		s, isStr := v.(string)
		switch {
		case v == nil || (isStr && s == ""):
			continue
		case !isStr:
			switch v.(type) {
			case int, int64, float64:
				if _, isFloat := v.(float64); isFloat {
					affinity = widen(affinity, "REAL")
				} else {
					affinity = widen(affinity, "INTEGER")
				}
			default:
				return "TEXT"
			}
		default:
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				affinity = widen(affinity, "INTEGER")
			} else if _, err := strconv.ParseFloat(s, 64); err == nil {
				affinity = widen(affinity, "REAL")
			} else {
				return "TEXT"
			}
		}
	}
	if affinity == "" {
		return "TEXT"
	}
	return affinity
}

func widen(current, next string) string {
	if current == "" || current == next {
		return next
	}
	if (current == "INTEGER" && next == "REAL") || (current == "REAL" && next == "INTEGER") {
		return "REAL"
	}
	return "TEXT"
}

func runFilter(program *vm.Program, cols []string, vals []any, rowNum int64) (bool, error) {
	rowMap := make(map[string]any, len(cols))
	for i, c := range cols {
		if i < len(vals) {
			rowMap[c] = vals[i]
		}
	}
	out, err := expr.Run(program, map[string]any{"row": rowMap, "i": rowNum})
	if err != nil {
		return false, fmt.Errorf("run filter on row %d: %w", rowNum, err)
	}
	keep, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, want bool", out)
	}
	return keep, nil
}

func keepIndexes(cols, selected []string) []int {
	if len(selected) == 0 {
		idx := make([]int, len(cols))
		for i := range cols {
			idx[i] = i
		}
		return idx
	}
	var keep []int
	for _, want := range selected {
		for i, c := range cols {
			if strings.EqualFold(c, want) {
				keep = append(keep, i)
				break
			}
		}
	}
	return keep
}

func pickValues(row []any, keep []int) []any {
	vals := make([]any, len(keep))
	for i, idx := range keep {
		if idx < len(row) {
			vals[i] = row[idx]
		}
	}
	return vals
}

func allEmpty(vals []any) bool {
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func fileBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func openSource(path string, opts ImportOptions) (rowSource, io.Closer, error) {
	switch opts.Format {
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		return newCSVSource(f, opts.RowHeader), f, nil
	case FormatJSON:
		return newJSONSource(path)
	case FormatYAML:
		return newYAMLSource(path)
	case FormatXLSX:
		return newXLSXSource(path, opts.RowHeader)
	default:
		return nil, nil, fmt.Errorf("unsupported import format: %q", opts.Format)
	}
}
