package alter

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

const savepointName = "alter_table"

// Script renders a plan into the ordered statement sequence that performs
// the reshape. The sequence is wrapped in a savepoint and, when foreign
// keys are enabled, bracketed by PRAGMA foreign_keys toggles so the
// intermediate states do not trip constraint enforcement.
func Script(plan *Plan) []string {
	if len(plan.Simple) > 0 {
		stmts := []string{"SAVEPOINT " + savepointName}
		stmts = append(stmts, plan.Simple...)
		return append(stmts, "RELEASE SAVEPOINT "+savepointName)
	}

	var stmts []string
	if plan.ForeignKeysOn {
		stmts = append(stmts, "PRAGMA foreign_keys = off")
	}
	stmts = append(stmts, "SAVEPOINT "+savepointName)
	stmts = append(stmts, plan.CreateSQL)

	if len(plan.Columns) > 0 {
		stmts = append(stmts, copySQL(plan.TempName, plan.Table, plan.Columns))
	}

	// Dependents come down before the old table does: views first, so a
	// view never dangles over a missing table and errors on next use.
	for _, v := range plan.Views {
		stmts = append(stmts, "DROP VIEW "+grammar.Quote(v.Name))
	}
	for _, idx := range plan.Indexes {
		stmts = append(stmts, "DROP INDEX "+grammar.Quote(idx.Name))
	}
	for _, tr := range plan.Triggers {
		stmts = append(stmts, "DROP TRIGGER "+grammar.Quote(tr.Name))
	}
	for _, tbl := range plan.Tables {
		for _, idx := range tbl.Indexes {
			stmts = append(stmts, "DROP INDEX "+grammar.Quote(idx.Name))
		}
		for _, tr := range tbl.Triggers {
			stmts = append(stmts, "DROP TRIGGER "+grammar.Quote(tr.Name))
		}
	}

	stmts = append(stmts, "DROP TABLE "+grammar.Quote(plan.Table))
	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		grammar.Quote(plan.TempName), grammar.Quote(plan.NewName)))

	// Foreign-key neighbors get the same temp-and-swap treatment so their
	// constraint clauses point at the rebuilt table.
	for _, tbl := range plan.Tables {
		stmts = append(stmts, tbl.CreateSQL)
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s",
			grammar.Quote(tbl.TempName), grammar.Quote(tbl.Name)))
		stmts = append(stmts, "DROP TABLE "+grammar.Quote(tbl.Name))
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			grammar.Quote(tbl.TempName), grammar.Quote(tbl.Name)))
		for _, idx := range tbl.Indexes {
			if idx.SQL != "" {
				stmts = append(stmts, idx.SQL)
			}
		}
		for _, tr := range tbl.Triggers {
			if tr.SQL != "" {
				stmts = append(stmts, tr.SQL)
			}
		}
	}

	for _, idx := range plan.Indexes {
		if idx.SQL != "" {
			stmts = append(stmts, idx.SQL)
		}
	}
	for _, v := range plan.Views {
		if v.SQL != "" {
			stmts = append(stmts, v.SQL)
		}
	}
	for _, tr := range plan.Triggers {
		if tr.SQL != "" {
			stmts = append(stmts, tr.SQL)
		}
	}

	stmts = append(stmts, "RELEASE SAVEPOINT "+savepointName)
	if plan.ForeignKeysOn {
		stmts = append(stmts, "PRAGMA foreign_keys = on")
	}
	return stmts
}

// ScriptText joins the statement sequence into a single runnable script,
// one statement per line, terminated with semicolons. Used by dry runs.
func ScriptText(plan *Plan) string {
	stmts := Script(plan)
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s)
		if !strings.HasSuffix(strings.TrimSpace(s), ";") {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func copySQL(dst, src string, columns [][2]string) string {
	news := make([]string, len(columns))
	olds := make([]string, len(columns))
	for i, pair := range columns {
		olds[i] = grammar.Quote(pair[0])
		news[i] = grammar.Quote(pair[1])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		grammar.Quote(dst), strings.Join(news, ", "),
		strings.Join(olds, ", "), grammar.Quote(src))
}
