package alter

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
)

// PlanRenameTable plans renaming a table. Returns a nil plan when the new
// name equals the old one exactly. A case-only rename takes the rebuild
// path: SQLite treats the names as identical and rejects the native form.
func (p *Planner) PlanRenameTable(oldName, newName string) (*Plan, error) {
	if oldName == newName {
		return nil, nil
	}
	item := p.Schema.Get(grammar.CategoryTable, oldName)
	if item == nil {
		return nil, fmt.Errorf("no such table: %s", oldName)
	}
	caseOnly := strings.EqualFold(oldName, newName)
	if !caseOnly {
		if existing := p.Schema.Get("", newName); existing != nil {
			return nil, fmt.Errorf("name already in use: %s", newName)
		}
	}

	// Since 3.25 RENAME TO rewrites references inside triggers and views
	// itself; older versions leave them dangling, so rebuild instead.
	if !caseOnly && p.Caps.RenameColumn {
		return &Plan{
			Simple: []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
				grammar.Quote(oldName), grammar.Quote(newName))},
			Table:   oldName,
			NewName: newName,
		}, nil
	}
	return p.rewriteTransformed(item, grammar.Renames{
		Table: map[string]string{oldName: newName},
	}, nil)
}

// PlanRenameColumn plans renaming a column, native when the runtime
// supports RENAME COLUMN and by rebuild otherwise.
func (p *Planner) PlanRenameColumn(table, oldCol, newCol string) (*Plan, error) {
	item := p.Schema.Get(grammar.CategoryTable, table)
	if item == nil {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	if item.Table == nil {
		return nil, fmt.Errorf("table %s has unparsable definition: %w", table, item.ParseErr)
	}
	if item.Table.Column(oldCol) == nil {
		return nil, fmt.Errorf("no such column: %s.%s", table, oldCol)
	}
	if oldCol == newCol {
		return nil, nil
	}
	if !strings.EqualFold(oldCol, newCol) && item.Table.Column(newCol) != nil {
		return nil, fmt.Errorf("column already exists: %s.%s", table, newCol)
	}

	if p.Caps.RenameColumn {
		return &Plan{
			Simple: []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
				grammar.Quote(table), grammar.Quote(oldCol), grammar.Quote(newCol))},
			Table:   table,
			NewName: table,
		}, nil
	}
	return p.rewriteTransformed(item, grammar.Renames{
		Column: map[string]map[string]string{table: {oldCol: newCol}},
	}, nil)
}

// PlanAddColumn plans appending a column, always via native ADD COLUMN.
func (p *Planner) PlanAddColumn(table string, col *grammar.Column) (*Plan, error) {
	item := p.Schema.Get(grammar.CategoryTable, table)
	if item == nil {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	if item.Table != nil && item.Table.Column(col.Name) != nil {
		return nil, fmt.Errorf("column already exists: %s.%s", table, col.Name)
	}
	return &Plan{
		Simple: []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			grammar.Quote(table), grammar.ColumnSQL(col))},
		Table:   table,
		NewName: table,
	}, nil
}

// PlanDropColumn plans removing a column. The native form is used only
// when the runtime supports it and nothing else in the schema depends on
// the column; otherwise the table is rebuilt without it.
func (p *Planner) PlanDropColumn(table, col string) (*Plan, error) {
	item := p.Schema.Get(grammar.CategoryTable, table)
	if item == nil {
		return nil, fmt.Errorf("no such table: %s", table)
	}
	if item.Table == nil {
		return nil, fmt.Errorf("table %s has unparsable definition: %w", table, item.ParseErr)
	}
	c := item.Table.Column(col)
	if c == nil {
		return nil, fmt.Errorf("no such column: %s.%s", table, col)
	}
	if len(item.Table.Columns) == 1 {
		return nil, fmt.Errorf("cannot drop the only column of %s", table)
	}

	if p.Caps.DropColumn && dropIsSafe(p.Schema, item, c) {
		return &Plan{
			Simple: []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
				grammar.Quote(table), grammar.Quote(col))},
			Table:   table,
			NewName: table,
		}, nil
	}

	newDef := cloneTable(item.Table)
	kept := newDef.Columns[:0]
	for _, nc := range newDef.Columns {
		if !strings.EqualFold(nc.Name, c.Name) {
			kept = append(kept, nc)
		}
	}
	newDef.Columns = kept
	return p.Rewrite(table, newDef, grammar.Renames{}, []string{c.Name})
}

// PlanRewrite is the general re-shape entry: newDef carries the target
// definition (columns reordered, types and constraints changed, renames
// applied), renames maps old names to new ones and drops lists removed
// columns.
func (p *Planner) PlanRewrite(oldName string, newDef *grammar.Table, renames grammar.Renames, drops []string) (*Plan, error) {
	return p.Rewrite(oldName, newDef, renames, drops)
}

// rewriteTransformed derives the target definition by running the rename
// set over the table's stored SQL and re-parsing, then plans the rebuild.
// Going through the SQL keeps every constraint and default intact.
func (p *Planner) rewriteTransformed(item *schema.Object, renames grammar.Renames, drops []string) (*Plan, error) {
	sql, err := grammar.Transform(item.SQL, renames)
	if err != nil {
		return nil, fmt.Errorf("transform table %s: %w", item.Name, err)
	}
	newDef, err := grammar.ParseTable(sql)
	if err != nil {
		return nil, fmt.Errorf("reparse table %s: %w", item.Name, err)
	}
	return p.Rewrite(item.Name, newDef, renames, drops)
}

// dropIsSafe reports whether a column can go through native DROP COLUMN:
// nothing references it, it is not part of any key and it is not depended
// on by a generated column.
func dropIsSafe(s *schema.Schema, item *schema.Object, c *grammar.Column) bool {
	if c.PrimaryKey || c.Unique || c.Generated != "" || c.FK != nil {
		return false
	}
	for _, cn := range item.Table.Constraints {
		for _, k := range cn.Key {
			if strings.EqualFold(k.Name, c.Name) {
				return false
			}
		}
		for _, name := range cn.Columns {
			if strings.EqualFold(name, c.Name) {
				return false
			}
		}
	}
	for i := range item.Table.Columns {
		gc := &item.Table.Columns[i]
		if gc.Generated != "" && strings.Contains(strings.ToLower(gc.Generated), strings.ToLower(c.Name)) {
			return false
		}
	}
	return len(s.ColumnDependents(item.Name, c.Name)) == 0
}
