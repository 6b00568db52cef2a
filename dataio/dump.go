package dataio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/db"
	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
)

// Dump writes a full SQL dump of the database: persistent pragmas, every
// table's CREATE and data, then the indexes, triggers and views, inside
// one transaction.
func (e *Exporter) Dump(ctx context.Context, w io.Writer, s *schema.Schema, opts ExportOptions) error {
	if _, err := fmt.Fprint(w, "PRAGMA foreign_keys=OFF;\nBEGIN TRANSACTION;\n\n"); err != nil {
		return err
	}
	for _, name := range []string{"application_id", "user_version"} {
		var value int64
		if err := e.conn.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err == nil && value != 0 {
			if _, err := fmt.Fprintf(w, "PRAGMA %s=%d;\n", name, value); err != nil {
				return err
			}
		}
	}

	sw := &sqlWriter{w: w}
	for _, obj := range s.Category(grammar.CategoryTable) {
		cols, err := db.Columns(ctx, e.conn, obj.Name)
		if err != nil {
			return fmt.Errorf("dump %s: %w", obj.Name, err)
		}
		ent := Entity{
			Name:      obj.Name,
			Category:  obj.Category,
			CreateSQL: obj.SQL,
			Columns:   cols,
		}
		if _, err := e.exportEntity(ctx, sw, ent, opts); err != nil {
			return fmt.Errorf("dump %s: %w", obj.Name, err)
		}
	}

	for _, category := range []string{grammar.CategoryIndex, grammar.CategoryTrigger, grammar.CategoryView} {
		for _, obj := range s.Category(category) {
			if obj.SQL == "" {
				continue // auto-indexes have no stored SQL
			}
			stmt := strings.TrimSuffix(strings.TrimSpace(obj.SQL), ";")
			if _, err := fmt.Fprintf(w, "%s;\n", stmt); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprint(w, "\nCOMMIT;\n")
	return err
}
