// Package db opens SQLite databases with sane pragmas and provides script
// execution, backups and consistency checks on top of database/sql.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/sqlitekit/grammar"

	_ "modernc.org/sqlite"
)

// Open opens an SQLite database file. Pragmas are appended to the DSN so
// they apply to every connection; :memory: gets them applied after opening
// since DSN parameters do not reach in-memory databases.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One open connection serializes writes and avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if path == ":memory:" {
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return conn, nil
}

// ExecScript runs each statement of a script in order, logging progress.
// The position of a failing statement is carried in the error.
func ExecScript(ctx context.Context, conn *sql.DB, logger *slog.Logger, script string) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := SplitStatements(script)
	for i, stmt := range stmts {
		logger.Debug("executing statement", "index", i+1, "total", len(stmts))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("statement %d of %d (%q): %w", i+1, len(stmts), abbreviate(stmt), err)
		}
	}
	return len(stmts), nil
}

// SplitStatements splits a script on statement-terminating semicolons,
// honoring string literals, quoted identifiers, comments and BEGIN..END
// trigger bodies.
func SplitStatements(script string) []string {
	var stmts []string
	var b strings.Builder
	depth := 0         // BEGIN..END / CASE..END nesting
	inTrigger := false // current statement is a CREATE TRIGGER
	i := 0
	flush := func() {
		s := strings.TrimSpace(b.String())
		b.Reset()
		inTrigger = false
		if s != "" && s != ";" {
			stmts = append(stmts, strings.TrimSuffix(s, ";"))
		}
	}
	for i < len(script) {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(script, i, c)
			b.WriteString(script[i:j])
			i = j
		case c == '[':
			j := i + 1
			for j < len(script) && script[j] != ']' {
				j++
			}
			if j < len(script) {
				j++
			}
			b.WriteString(script[i:j])
			i = j
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			j := i
			for j < len(script) && script[j] != '\n' {
				j++
			}
			b.WriteString(script[i:j])
			i = j
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			j := strings.Index(script[i+2:], "*/")
			if j < 0 {
				j = len(script)
			} else {
				j = i + 2 + j + 2
			}
			b.WriteString(script[i:j])
			i = j
		case isWordStart(c):
			j := i
			for j < len(script) && isWordChar(script[j]) {
				j++
			}
			word := strings.ToUpper(script[i:j])
			switch word {
			case "TRIGGER":
				inTrigger = true
			case "BEGIN":
				// A bare BEGIN outside a trigger starts a transaction and
				// terminates like any other statement.
				if inTrigger {
					depth++
				}
			case "CASE":
				depth++
			case "END":
				if depth > 0 {
					depth--
				}
			}
			b.WriteString(script[i:j])
			i = j
		case c == ';' && depth == 0:
			b.WriteByte(c)
			flush()
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts
}

func skipQuoted(s string, start int, quote byte) int {
	i := start + 1
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func abbreviate(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 60 {
		stmt = stmt[:57] + "..."
	}
	return stmt
}

// Backup writes a compacted copy of the database to dst via VACUUM INTO.
// An empty dst derives a unique name next to the source file.
func Backup(ctx context.Context, conn *sql.DB, srcPath, dst string) (string, error) {
	if dst == "" {
		base := strings.TrimSuffix(srcPath, filepath.Ext(srcPath))
		dst = fmt.Sprintf("%s.backup-%s%s", base, uuid.NewString()[:8], filepath.Ext(srcPath))
	}
	if _, err := conn.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return dst, nil
}

// IntegrityCheck runs PRAGMA integrity_check and returns the reported
// problems, empty when the database is sound.
func IntegrityCheck(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}

// ForeignKeyCheck reports foreign key violations, for the whole database
// or for the named tables only.
func ForeignKeyCheck(ctx context.Context, conn *sql.DB, tables ...string) ([]Violation, error) {
	queries := []string{"PRAGMA foreign_key_check"}
	if len(tables) > 0 {
		queries = queries[:0]
		for _, t := range tables {
			queries = append(queries, "PRAGMA foreign_key_check("+grammar.QuoteAlways(t)+")")
		}
	}
	var violations []Violation
	for _, q := range queries {
		rows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("foreign key check: %w", err)
		}
		for rows.Next() {
			var v Violation
			var rowid sql.NullInt64
			if err := rows.Scan(&v.Table, &rowid, &v.Parent, &v.FKIndex); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan foreign key check: %w", err)
			}
			v.RowID = rowid.Int64
			violations = append(violations, v)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return violations, nil
}

// Violation is one row of PRAGMA foreign_key_check output.
type Violation struct {
	Table   string
	RowID   int64
	Parent  string
	FKIndex int
}
