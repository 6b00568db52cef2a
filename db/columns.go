package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// ColumnInfo is one row of PRAGMA table_info output.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey bool
}

// Columns returns the columns of a table or view in declaration order.
func Columns(ctx context.Context, conn *sql.DB, name string) ([]ColumnInfo, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA table_info("+grammar.QuoteAlways(name)+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer rows.Close()
	var cols []ColumnInfo
	for rows.Next() {
		var cid, notnull, pk int
		var c ColumnInfo
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notnull, &c.Default, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", name, err)
		}
		c.NotNull = notnull != 0
		c.PrimaryKey = pk != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no such table or view: %s", name)
	}
	return cols, nil
}
