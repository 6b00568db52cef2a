// Package alter plans and executes table reshapes that SQLite's native
// ALTER TABLE cannot express: dropping or reordering columns, changing
// constraints, case-only renames. A reshape re-creates the table under a
// temporary name, copies the rows across, drops the original, renames the
// temporary into place, and re-creates every dependent index, trigger and
// view — atomically, inside a savepoint.
package alter

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
)

// Recreate names a dependent entity in a plan. SQL is the CREATE statement
// to run after the rebuild; when empty the entity is dropped and not
// restored (its definition depended on something that no longer exists).
type Recreate struct {
	Name string
	SQL  string
}

// TableRebuild describes a foreign-key neighbor table that must itself be
// re-created so its constraint clauses match the rebuilt table.
type TableRebuild struct {
	Name      string
	TempName  string
	CreateSQL string
	Indexes   []Recreate
	Triggers  []Recreate
}

// Plan is a fully resolved table reshape. When Simple is set the change
// fits a native ALTER TABLE and the remaining fields are unused.
type Plan struct {
	Simple []string

	Table         string // current table name
	NewName       string // equals Table unless renaming
	TempName      string
	CreateSQL     string      // CREATE statement under TempName
	Columns       [][2]string // old column → new column copy pairs
	ForeignKeysOn bool
	Tables        []TableRebuild
	Indexes       []Recreate
	Triggers      []Recreate
	Views         []Recreate
}

// Planner builds reshape plans against a loaded schema. ForeignKeys
// mirrors the connection's PRAGMA foreign_keys state so scripts know
// whether to toggle enforcement around the rebuild.
type Planner struct {
	Schema      *schema.Schema
	Caps        schema.Capabilities
	ForeignKeys bool
}

// Rewrite builds the plan that replaces oldName's definition with newDef.
// The renames set must carry the table rename (when newDef.Name differs)
// and any column renames keyed by the old table name; drops lists columns
// of oldName that are being removed. newDef must already reflect the target
// shape: renamed table and columns, dropped columns absent.
func (p *Planner) Rewrite(oldName string, newDef *grammar.Table, renames grammar.Renames, drops []string) (*Plan, error) {
	item := p.Schema.Get(grammar.CategoryTable, oldName)
	if item == nil {
		return nil, fmt.Errorf("no such table: %s", oldName)
	}
	if item.Table == nil {
		return nil, fmt.Errorf("table %s has unparsable definition: %w", oldName, item.ParseErr)
	}
	old := item.Table

	dropSet := make(map[string]bool, len(drops))
	for _, d := range drops {
		dropSet[strings.ToLower(d)] = true
	}
	if len(dropSet) > 0 {
		if len(old.Columns)-len(dropSet) < 1 {
			return nil, fmt.Errorf("cannot drop all columns of %s", oldName)
		}
		stripDroppedConstraints(newDef, dropSet)
	}

	plan := &Plan{Table: old.Name, NewName: newDef.Name, ForeignKeysOn: p.ForeignKeys}
	plan.TempName = p.Schema.UniqueName(newDef.Name + "_new")

	// CREATE statement for the replacement, under the temporary name.
	tempDef := *newDef
	tempDef.Name = plan.TempName
	createSQL, err := grammar.Generate(&tempDef)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", plan.TempName, err)
	}
	plan.CreateSQL = createSQL

	plan.Columns = copyColumns(old, newDef, renames, dropSet)

	if err := p.collectDependents(plan, item, renames, dropSet); err != nil {
		return nil, err
	}
	return plan, nil
}

// copyColumns pairs the old table's columns with their new names, skipping
// dropped and generated columns.
func copyColumns(old, newDef *grammar.Table, renames grammar.Renames, dropSet map[string]bool) [][2]string {
	var pairs [][2]string
	for _, c := range old.Columns {
		if dropSet[strings.ToLower(c.Name)] || c.Generated != "" {
			continue
		}
		target := c.Name
		if cols, ok := columnRenames(renames, old.Name); ok {
			if repl, ok := lookupFold(cols, c.Name); ok {
				target = repl
			}
		}
		nc := newDef.Column(target)
		if nc == nil || nc.Generated != "" {
			continue
		}
		pairs = append(pairs, [2]string{c.Name, target})
	}
	return pairs
}

func columnRenames(renames grammar.Renames, table string) (map[string]string, bool) {
	for tbl, cols := range renames.Column {
		if strings.EqualFold(tbl, table) {
			return cols, true
		}
	}
	return nil, false
}

func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// collectDependents walks the dependency graph of the table being rebuilt
// and fills the plan's index, trigger, view and neighbor-table sections.
func (p *Planner) collectDependents(plan *Plan, item *schema.Object, renames grammar.Renames, dropSet map[string]bool) error {
	related := p.Schema.Related(grammar.CategoryTable, item.Name, false)
	processed := map[string]bool{strings.ToLower(item.Name): true}
	tempTaken := []string{plan.TempName}

	for _, obj := range related[grammar.CategoryIndex] {
		if processed[strings.ToLower(obj.Name)] {
			continue
		}
		processed[strings.ToLower(obj.Name)] = true
		rec, keep := p.planIndex(obj, renames, dropSet, item.Name)
		if keep {
			plan.Indexes = append(plan.Indexes, rec)
		}
	}

	for _, obj := range related[grammar.CategoryTrigger] {
		if processed[strings.ToLower(obj.Name)] {
			continue
		}
		processed[strings.ToLower(obj.Name)] = true
		rec, keep, err := p.planTrigger(obj, item.Name, renames, dropSet)
		if err != nil {
			return err
		}
		if keep {
			plan.Triggers = append(plan.Triggers, rec)
		}
	}

	for _, obj := range related[grammar.CategoryView] {
		if processed[strings.ToLower(obj.Name)] {
			continue
		}
		processed[strings.ToLower(obj.Name)] = true
		// Views are always re-created: a view over the dropped table
		// survives the drop and only errors when next queried.
		sql, err := grammar.Transform(obj.SQL, renames)
		if err != nil {
			return fmt.Errorf("transform view %s: %w", obj.Name, err)
		}
		plan.Views = append(plan.Views, Recreate{Name: obj.Name, SQL: sql})
	}

	for _, obj := range related[grammar.CategoryTable] {
		if processed[strings.ToLower(obj.Name)] || obj.Table == nil {
			continue
		}
		processed[strings.ToLower(obj.Name)] = true
		rebuild, changed, err := p.planNeighbor(obj, item.Name, renames, dropSet, &tempTaken)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		// Pull the neighbor's own indexes and triggers in under the same
		// rename set; they are dropped with the neighbor and restored
		// after its rebuild.
		for _, sub := range p.Schema.Related(grammar.CategoryTable, obj.Name, true)[grammar.CategoryIndex] {
			if processed[strings.ToLower(sub.Name)] {
				continue
			}
			processed[strings.ToLower(sub.Name)] = true
			sql, err := grammar.Transform(sub.SQL, renames)
			if err != nil {
				return fmt.Errorf("transform index %s: %w", sub.Name, err)
			}
			rebuild.Indexes = append(rebuild.Indexes, Recreate{Name: sub.Name, SQL: sql})
		}
		for _, sub := range p.Schema.Related(grammar.CategoryTable, obj.Name, true)[grammar.CategoryTrigger] {
			if processed[strings.ToLower(sub.Name)] {
				continue
			}
			processed[strings.ToLower(sub.Name)] = true
			sql, err := grammar.Transform(sub.SQL, renames)
			if err != nil {
				return fmt.Errorf("transform trigger %s: %w", sub.Name, err)
			}
			rebuild.Triggers = append(rebuild.Triggers, Recreate{Name: sub.Name, SQL: sql})
		}
		plan.Tables = append(plan.Tables, rebuild)
	}

	return nil
}

// planIndex decides what happens to an index on the rebuilt table: dropped
// when it touches a dropped column, re-created transformed otherwise.
func (p *Planner) planIndex(obj *schema.Object, renames grammar.Renames, dropSet map[string]bool, table string) (Recreate, bool) {
	if len(dropSet) > 0 && referencesDropped(obj.SQL, table, dropSet) {
		return Recreate{Name: obj.Name}, true
	}
	sql, err := grammar.Transform(obj.SQL, renames)
	if err != nil {
		// Keep the original definition; the executor will surface any
		// real problem when re-creating it.
		sql = obj.SQL
	}
	return Recreate{Name: obj.Name, SQL: sql}, true
}

// planTrigger decides what happens to a trigger: UPDATE OF triggers firing
// only on dropped columns are dropped; ones also firing on surviving
// columns lose the dropped ones from their header; triggers on other tables
// that come out of the transform unchanged are left alone.
func (p *Planner) planTrigger(obj *schema.Object, table string, renames grammar.Renames, dropSet map[string]bool) (Recreate, bool, error) {
	raw := obj.SQL
	ownTrigger := obj.Trigger != nil && strings.EqualFold(obj.Trigger.Table, table)

	if len(dropSet) > 0 && obj.Trigger != nil && len(obj.Trigger.UpdateOf) > 0 && ownTrigger {
		var surviving []string
		for _, c := range obj.Trigger.UpdateOf {
			if !dropSet[strings.ToLower(c)] {
				surviving = append(surviving, c)
			}
		}
		switch {
		case len(surviving) == 0:
			return Recreate{Name: obj.Name}, true, nil
		case len(surviving) < len(obj.Trigger.UpdateOf):
			if bodyReferencesDropped(obj, dropSet) {
				// Body still uses a dropped column; the trigger cannot
				// survive the rebuild.
				return Recreate{Name: obj.Name}, true, nil
			}
			trimmed := *obj.Trigger
			trimmed.UpdateOf = surviving
			sql, err := grammar.Generate(&trimmed)
			if err != nil {
				return Recreate{}, false, fmt.Errorf("generate trigger %s: %w", obj.Name, err)
			}
			raw = sql
		}
	} else if len(dropSet) > 0 && referencesDropped(obj.SQL, table, dropSet) {
		// The body reads or writes a dropped column; the trigger cannot
		// survive the rebuild no matter which table it fires on.
		return Recreate{Name: obj.Name}, true, nil
	}

	sql, err := grammar.Transform(raw, renames)
	if err != nil {
		return Recreate{}, false, fmt.Errorf("transform trigger %s: %w", obj.Name, err)
	}
	if !ownTrigger && sql == obj.SQL {
		// References the table but needs no rewriting; DROP TABLE does
		// not cascade to triggers on other tables.
		return Recreate{}, false, nil
	}
	return Recreate{Name: obj.Name, SQL: sql}, true, nil
}

// planNeighbor rebuilds a foreign-key neighbor when the reshape changes
// anything its definition refers to.
func (p *Planner) planNeighbor(obj *schema.Object, table string, renames grammar.Renames, dropSet map[string]bool, tempTaken *[]string) (TableRebuild, bool, error) {
	def := *obj.Table
	changed := false

	if len(dropSet) > 0 {
		stripped := cloneTable(obj.Table)
		stripNeighborFKs(stripped, table, dropSet)
		sql, err := grammar.Generate(stripped)
		if err == nil {
			orig, _ := grammar.Generate(&def)
			if sql != orig {
				def = *stripped
				changed = true
			}
		}
	}

	baseSQL := obj.SQL
	if changed {
		var err error
		baseSQL, err = grammar.Generate(&def)
		if err != nil {
			return TableRebuild{}, false, fmt.Errorf("generate table %s: %w", obj.Name, err)
		}
	}
	transformed, err := grammar.Transform(baseSQL, renames)
	if err != nil {
		return TableRebuild{}, false, fmt.Errorf("transform table %s: %w", obj.Name, err)
	}
	if !changed && transformed == obj.SQL {
		return TableRebuild{}, false, nil
	}

	temp := p.Schema.UniqueName(obj.Name+"_new", *tempTaken...)
	*tempTaken = append(*tempTaken, temp)
	withTemp, err := grammar.Transform(transformed, grammar.Renames{
		Table: map[string]string{obj.Name: temp},
	})
	if err != nil {
		return TableRebuild{}, false, fmt.Errorf("rename table %s to %s: %w", obj.Name, temp, err)
	}
	return TableRebuild{Name: obj.Name, TempName: temp, CreateSQL: withTemp}, true, nil
}

// referencesDropped probes an entity's SQL for references to dropped
// columns of the table by substituting fresh names and comparing.
func referencesDropped(sql, table string, dropSet map[string]bool) bool {
	probe := map[string]string{}
	for c := range dropSet {
		probe[c] = c + "__probe"
	}
	out, err := grammar.Transform(sql, grammar.Renames{
		Column: map[string]map[string]string{table: probe},
	})
	return err == nil && out != sql
}

func bodyReferencesDropped(obj *schema.Object, dropSet map[string]bool) bool {
	if obj.Trigger == nil {
		return false
	}
	probe := *obj.Trigger
	probe.UpdateOf = nil
	header, _ := grammar.Generate(&probe)
	return referencesDropped(header, obj.Trigger.Table, dropSet)
}

// cloneTable deep-copies a table definition so constraint edits do not
// leak into the loaded schema.
func cloneTable(t *grammar.Table) *grammar.Table {
	out := *t
	out.Columns = make([]grammar.Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	for i := range out.Columns {
		if fk := out.Columns[i].FK; fk != nil {
			c := *fk
			c.Columns = append([]string(nil), fk.Columns...)
			out.Columns[i].FK = &c
		}
	}
	out.Constraints = make([]grammar.Constraint, len(t.Constraints))
	copy(out.Constraints, t.Constraints)
	for i := range out.Constraints {
		cn := &out.Constraints[i]
		cn.Key = append([]grammar.KeyColumn(nil), cn.Key...)
		cn.Columns = append([]string(nil), cn.Columns...)
		if cn.FK != nil {
			c := *cn.FK
			c.Columns = append([]string(nil), cn.FK.Columns...)
			cn.FK = &c
		}
	}
	return &out
}

// stripDroppedConstraints removes dropped columns from the target table's
// PRIMARY KEY, UNIQUE and FOREIGN KEY constraints, discarding constraints
// that end up empty.
func stripDroppedConstraints(def *grammar.Table, dropSet map[string]bool) {
	kept := def.Constraints[:0]
	for _, cn := range def.Constraints {
		switch cn.Kind {
		case grammar.ConstraintPrimaryKey, grammar.ConstraintUnique:
			var key []grammar.KeyColumn
			for _, k := range cn.Key {
				if !dropSet[strings.ToLower(k.Name)] {
					key = append(key, k)
				}
			}
			if len(key) == 0 {
				continue
			}
			cn.Key = key
		case grammar.ConstraintForeignKey:
			var cols []string
			var refCols []string
			for i, c := range cn.Columns {
				if dropSet[strings.ToLower(c)] {
					continue
				}
				cols = append(cols, c)
				if cn.FK != nil && i < len(cn.FK.Columns) {
					refCols = append(refCols, cn.FK.Columns[i])
				}
			}
			if len(cols) == 0 {
				continue
			}
			cn.Columns = cols
			if cn.FK != nil && len(refCols) > 0 {
				fk := *cn.FK
				fk.Columns = refCols
				cn.FK = &fk
			}
		}
		kept = append(kept, cn)
	}
	def.Constraints = kept
}

// stripNeighborFKs removes foreign keys of a neighbor table that point at
// dropped columns of the rebuilt table.
func stripNeighborFKs(def *grammar.Table, table string, dropSet map[string]bool) {
	for i := range def.Columns {
		fk := def.Columns[i].FK
		if fk == nil || !strings.EqualFold(fk.Table, table) {
			continue
		}
		for _, rc := range fk.Columns {
			if dropSet[strings.ToLower(rc)] {
				def.Columns[i].FK = nil
				break
			}
		}
	}
	kept := def.Constraints[:0]
	for _, cn := range def.Constraints {
		if cn.Kind == grammar.ConstraintForeignKey && cn.FK != nil &&
			strings.EqualFold(cn.FK.Table, table) {
			dropped := false
			for _, rc := range cn.FK.Columns {
				if dropSet[strings.ToLower(rc)] {
					dropped = true
					break
				}
			}
			if dropped {
				continue
			}
		}
		kept = append(kept, cn)
	}
	def.Constraints = kept
}
