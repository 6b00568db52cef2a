package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"strings"
)

// pragmaNames is the fallback list used when the build has no
// pragma_list pragma. Argument-taking and write-only pragmas are left
// out.
var pragmaNames = []string{
	"application_id",
	"auto_vacuum",
	"automatic_index",
	"busy_timeout",
	"cache_size",
	"cache_spill",
	"cell_size_check",
	"checkpoint_fullfsync",
	"data_version",
	"defer_foreign_keys",
	"encoding",
	"foreign_keys",
	"freelist_count",
	"fullfsync",
	"ignore_check_constraints",
	"journal_mode",
	"journal_size_limit",
	"legacy_alter_table",
	"locking_mode",
	"max_page_count",
	"mmap_size",
	"page_count",
	"page_size",
	"query_only",
	"read_uncommitted",
	"recursive_triggers",
	"reverse_unordered_selects",
	"schema_version",
	"secure_delete",
	"synchronous",
	"temp_store",
	"threads",
	"user_version",
	"wal_autocheckpoint",
}

func runPragma(args []string) error {
	fs := flag.NewFlagSet("pragma", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Write values to this file instead of stdout")
	asSQL := fs.Bool("sql", false, "Print values as PRAGMA statements")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit pragma [options] <database> [name...]\n\nPrint pragma values, all of them or just the named ones.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("database path is required")
	}

	if _, _, err := setup(g); err != nil {
		return err
	}
	conn, err := openExisting(fs.Arg(0))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	names := fs.Args()[1:]
	if len(names) == 0 {
		names = listPragmas(ctx, conn)
	}

	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := printPragmas(ctx, conn, w, names, *asSQL); err != nil {
		return err
	}
	return closeOut()
}

// listPragmas asks the database for its pragma list, falling back to
// the built-in names on builds without introspection pragmas.
func listPragmas(ctx context.Context, conn *sql.DB) []string {
	rows, err := conn.QueryContext(ctx, "PRAGMA pragma_list")
	if err != nil {
		return pragmaNames
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return pragmaNames
		}
		names = append(names, name)
	}
	if len(names) == 0 || rows.Err() != nil {
		return pragmaNames
	}
	return names
}

func printPragmas(ctx context.Context, conn *sql.DB, w io.Writer, names []string, asSQL bool) error {
	for _, name := range names {
		if !isParamName(name) {
			return fmt.Errorf("invalid pragma name: %q", name)
		}
		values, err := pragmaValues(ctx, conn, name)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			continue
		}
		for _, v := range values {
			if asSQL {
				if _, err := fmt.Fprintf(w, "PRAGMA %s = %s;\n", name, sqlPragmaValue(v)); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%s = %s\n", name, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pragmaValues reads a pragma, joining multi-column rows the way the
// sqlite3 shell does. Pragmas that need an argument yield no rows and
// are skipped.
func pragmaValues(ctx context.Context, conn *sql.DB, name string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA "+name)
	if err != nil {
		// Unknown pragmas read as no-ops; report everything else.
		return nil, fmt.Errorf("pragma %s: %w", name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("pragma %s: %w", name, err)
	}
	var out []string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("pragma %s: %w", name, err)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.String
		}
		out = append(out, strings.Join(parts, "|"))
	}
	return out, rows.Err()
}

// sqlPragmaValue quotes non-numeric pragma values for the statement
// form.
func sqlPragmaValue(v string) string {
	if v == "" {
		return "''"
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && c != '-' && c != '.' {
			return "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
	}
	return v
}
