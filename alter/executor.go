package alter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
)

// Executor runs reshape plans against a database.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an Executor. A nil logger falls back to slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// NewPlanner loads the schema, version capabilities and foreign-key state
// from the database and returns a planner bound to them.
func NewPlanner(ctx context.Context, db *sql.DB) (*Planner, error) {
	s, err := schema.Load(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	caps, err := schema.LoadCapabilities(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load capabilities: %w", err)
	}
	var fks int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fks); err != nil {
		return nil, fmt.Errorf("query foreign_keys pragma: %w", err)
	}
	return &Planner{Schema: s, Caps: caps, ForeignKeys: fks != 0}, nil
}

// Apply runs the plan's statement sequence on a single connection. On any
// failure everything inside the savepoint is rolled back and the database
// is left as it was. When foreign keys are enabled the rebuilt tables are
// checked with PRAGMA foreign_key_check before the savepoint is released.
func (e *Executor) Apply(ctx context.Context, db *sql.DB, plan *Plan) error {
	if plan == nil {
		return nil
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	e.logger.Info("applying schema change",
		"table", plan.Table,
		"new_name", plan.NewName,
		"simple", len(plan.Simple) > 0)

	release := "RELEASE SAVEPOINT " + savepointName
	inSavepoint := false
	for _, stmt := range Script(plan) {
		if stmt == release && len(plan.Simple) == 0 && plan.ForeignKeysOn {
			if err := e.checkForeignKeys(ctx, conn, plan); err != nil {
				return e.rollback(ctx, conn, plan, err)
			}
		}
		e.logger.Debug("executing", "sql", stmt)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			err = fmt.Errorf("execute %q: %w", stmt, err)
			if !inSavepoint {
				return err
			}
			return e.rollback(ctx, conn, plan, err)
		}
		if strings.HasPrefix(stmt, "SAVEPOINT ") {
			inSavepoint = true
		} else if stmt == release {
			inSavepoint = false
		}
	}

	e.logger.Info("schema change applied",
		"table", plan.Table,
		"new_name", plan.NewName)
	return nil
}

// checkForeignKeys verifies the rebuilt tables before the change commits.
func (e *Executor) checkForeignKeys(ctx context.Context, conn *sql.Conn, plan *Plan) error {
	tables := []string{plan.NewName}
	for _, t := range plan.Tables {
		tables = append(tables, t.Name)
	}
	for _, table := range tables {
		rows, err := conn.QueryContext(ctx,
			"PRAGMA foreign_key_check("+grammar.QuoteAlways(table)+")")
		if err != nil {
			return fmt.Errorf("foreign key check %s: %w", table, err)
		}
		violations := 0
		for rows.Next() {
			violations++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("foreign key check %s: %w", table, err)
		}
		rows.Close()
		if violations > 0 {
			return fmt.Errorf("foreign key check %s: %d violation(s)", table, violations)
		}
	}
	return nil
}

// rollback unwinds the savepoint and restores foreign-key enforcement,
// then returns the original error.
func (e *Executor) rollback(ctx context.Context, conn *sql.Conn, plan *Plan, cause error) error {
	e.logger.Warn("rolling back schema change",
		"table", plan.Table,
		"error", cause)
	if _, err := conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("rollback after %v: %w", cause, err)
	}
	if _, err := conn.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("release after %v: %w", cause, err)
	}
	if plan.ForeignKeysOn {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = on"); err != nil {
			return fmt.Errorf("restore foreign_keys after %v: %w", cause, err)
		}
	}
	return cause
}
