package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/dataio"
	sqlitedb "github.com/GoCodeAlone/sqlitekit/db"
)

func runExecute(args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Write results to this file instead of stdout")
	format := fs.String("format", "", "Result format (csv, json, yaml, html, sql, txt, xlsx)")
	jq := fs.String("jq", "", "Post-process json results with a jq expression")
	var params stringList
	fs.Var(&params, "param", "Statement parameter, name=value or a positional value (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit execute [options] <database> [sql...]\n\nRun SQL statements. With no SQL arguments the script is read from stdin.\nStatements producing rows are printed or exported; the rest are applied.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("database path is required")
	}

	cfg, logger, err := setup(g)
	if err != nil {
		return err
	}

	script := strings.Join(fs.Args()[1:], " ")
	if script == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		script = string(data)
	}
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("no SQL to execute")
	}

	conn, err := sqlitedb.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer conn.Close()

	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()

	f, err := resolveFormat(*format, *out, cfg.DefaultFormat)
	if err != nil {
		return err
	}
	opts := dataio.ExportOptions{Format: f, Limit: -1, JQ: *jq}
	if err := executeScript(context.Background(), conn, logger, script, buildParams(params), w, opts); err != nil {
		return err
	}
	return closeOut()
}

// resolveFormat picks the output format: the explicit flag wins, then the
// output file extension, then the configured default.
func resolveFormat(flagValue, outPath, fallback string) (dataio.Format, error) {
	if flagValue != "" {
		return dataio.Format(strings.ToLower(flagValue)), nil
	}
	if outPath != "" {
		if f, err := dataio.FormatFromPath(outPath); err == nil {
			return f, nil
		}
	}
	if fallback == "" {
		fallback = "csv"
	}
	return dataio.Format(fallback), nil
}

// executeScript runs the statements in order. Statements with result
// sets are exported together afterwards, so their rows reflect every
// change the script made.
func executeScript(ctx context.Context, conn *sql.DB, logger *slog.Logger, script string, params []any, w io.Writer, opts dataio.ExportOptions) error {
	stmts := sqlitedb.SplitStatements(script)
	if len(stmts) == 0 {
		return fmt.Errorf("no SQL to execute")
	}

	var specs []dataio.QuerySpec
	for i, stmt := range stmts {
		args := params
		if !hasParams(stmt) {
			args = nil
		}
		if returnsRows(stmt) {
			name := "result"
			if len(specs) > 0 {
				name = fmt.Sprintf("result%d", len(specs)+1)
			}
			specs = append(specs, dataio.QuerySpec{Name: name, Query: stmt, Args: args})
			continue
		}
		res, err := conn.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			logger.Info("statement applied", "index", i+1, "rows_affected", n)
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return dataio.NewExporter(conn, logger).ExportQueries(ctx, w, specs, opts)
}

// returnsRows classifies a statement by its first keyword.
func returnsRows(stmt string) bool {
	word := firstWord(stmt)
	switch word {
	case "SELECT", "VALUES", "WITH", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}

func firstWord(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// hasParams reports whether the statement carries parameter markers
// outside of string and identifier quotes.
func hasParams(stmt string) bool {
	for i := 0; i < len(stmt); i++ {
		switch stmt[i] {
		case '\'', '"', '`':
			q := stmt[i]
			i++
			for i < len(stmt) && stmt[i] != q {
				i++
			}
		case '?', '@', '$':
			return true
		case ':':
			if i+1 < len(stmt) && isParamNameChar(stmt[i+1]) {
				return true
			}
		}
	}
	return false
}

func isParamNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// buildParams turns --param values into statement arguments. A value of
// the form name=value binds as a named parameter, anything else binds
// positionally.
func buildParams(values []string) []any {
	var out []any
	for _, v := range values {
		if name, val, ok := strings.Cut(v, "="); ok && isParamName(name) {
			out = append(out, sql.Named(name, val))
			continue
		}
		out = append(out, v)
	}
	return out
}

func isParamName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isParamNameChar(s[i]) {
			return false
		}
	}
	return true
}
