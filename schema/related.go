package schema

import (
	"strings"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// Related returns the entities that depend on the given table or view,
// grouped by category. For a table: its own indexes and triggers, views
// selecting from it, triggers on other tables that reference it, tables
// linked to it by foreign keys in either direction, and transitively the
// dependents of those views. With own set, only entities owned by the item
// itself are returned (its indexes and triggers).
func (s *Schema) Related(category, name string, own bool) map[string][]*Object {
	result := make(map[string][]*Object)
	item := s.Get(category, name)
	if item == nil {
		return result
	}

	seen := map[string]bool{strings.ToLower(name): true}
	add := func(o *Object) {
		key := strings.ToLower(o.Name)
		if seen[key] {
			return
		}
		seen[key] = true
		result[o.Category] = append(result[o.Category], o)
	}

	// Entities owned by the item: indexes and triggers created on it.
	for _, o := range s.Category(grammar.CategoryIndex) {
		if strings.EqualFold(indexTable(o), name) {
			add(o)
		}
	}
	for _, o := range s.Category(grammar.CategoryTrigger) {
		if strings.EqualFold(triggerTable(o), name) {
			add(o)
		}
	}
	if own {
		return result
	}

	// Triggers elsewhere whose body or clauses reference the item.
	for _, o := range s.Category(grammar.CategoryTrigger) {
		if referencesName(o.SQL, name) {
			add(o)
		}
	}

	// Views selecting from the item, then dependents of those views.
	var dependentViews []*Object
	for _, o := range s.Category(grammar.CategoryView) {
		if referencesName(o.SQL, name) {
			add(o)
			dependentViews = append(dependentViews, o)
		}
	}
	for len(dependentViews) > 0 {
		v := dependentViews[0]
		dependentViews = dependentViews[1:]
		for _, o := range s.Category(grammar.CategoryView) {
			if !seen[strings.ToLower(o.Name)] && referencesName(o.SQL, v.Name) {
				add(o)
				dependentViews = append(dependentViews, o)
			}
		}
		for _, o := range s.Category(grammar.CategoryTrigger) {
			if strings.EqualFold(triggerTable(o), v.Name) || referencesName(o.SQL, v.Name) {
				add(o)
			}
		}
	}

	// Tables linked by foreign keys, both directions.
	if category == grammar.CategoryTable {
		for _, o := range s.Category(grammar.CategoryTable) {
			if strings.EqualFold(o.Name, name) || o.Table == nil {
				continue
			}
			if tableReferences(o.Table, name) {
				add(o)
			}
		}
		if item.Table != nil {
			for _, fk := range item.Table.ForeignKeys() {
				if o := s.Get(grammar.CategoryTable, fk.Table); o != nil {
					add(o)
				}
			}
		}
	}

	return result
}

// ReferencingTables returns tables whose foreign keys point at the given
// table. These are the tables a rebuild must also rebuild to keep their FK
// clauses pointing at the right name.
func (s *Schema) ReferencingTables(name string) []*Object {
	var out []*Object
	for _, o := range s.Category(grammar.CategoryTable) {
		if strings.EqualFold(o.Name, name) || o.Table == nil {
			continue
		}
		if tableReferences(o.Table, name) {
			out = append(out, o)
		}
	}
	return out
}

// ColumnDependents returns triggers and views whose definition references
// any of the given columns of the table, as {category: [names]}. Detection
// probes with a rename: if substituting the column for a fresh name changes
// the entity's SQL, the entity depends on it.
func (s *Schema) ColumnDependents(name string, columns ...string) map[string][]string {
	result := make(map[string][]string)
	item := s.Get(grammar.CategoryTable, name)
	if item == nil || len(columns) == 0 {
		return result
	}

	probe := map[string]string{}
	for _, c := range columns {
		probe[c] = c + "__probe"
	}
	renames := grammar.Renames{Column: map[string]map[string]string{name: probe}}

	for _, category := range []string{grammar.CategoryTrigger, grammar.CategoryView} {
		for _, o := range s.Category(category) {
			if strings.EqualFold(o.Name, name) {
				continue
			}
			transformed, err := grammar.Transform(o.SQL, renames)
			if err == nil && transformed != o.SQL {
				result[category] = append(result[category], o.Name)
			}
		}
	}
	return result
}

func indexTable(o *Object) string {
	if o.Index != nil {
		return o.Index.Table
	}
	return o.TableName
}

func triggerTable(o *Object) string {
	if o.Trigger != nil {
		return o.Trigger.Table
	}
	return o.TableName
}

// tableReferences reports whether any foreign key of the table points at
// the named table.
func tableReferences(t *grammar.Table, name string) bool {
	for _, fk := range t.ForeignKeys() {
		if strings.EqualFold(fk.Table, name) {
			return true
		}
	}
	return false
}

// referencesName reports whether the entity SQL references the given table
// or view name in a table position (after FROM, JOIN, INTO, UPDATE, ON or
// REFERENCES, or as a dot qualifier).
func referencesName(sql, name string) bool {
	tokens, err := grammar.Tokenize(sql)
	if err != nil {
		return strings.Contains(strings.ToLower(sql), strings.ToLower(name))
	}
	words := tokens[:0:0]
	for _, t := range tokens {
		if t.Type != grammar.TokenComment {
			words = append(words, t)
		}
	}
	for i, t := range words {
		if t.Type != grammar.TokenWord || !strings.EqualFold(t.Text, name) {
			continue
		}
		if i+1 < len(words) && words[i+1].IsOp(".") {
			return true
		}
		if i > 0 {
			switch {
			case words[i-1].Is("FROM"), words[i-1].Is("JOIN"), words[i-1].Is("INTO"),
				words[i-1].Is("UPDATE"), words[i-1].Is("ON"), words[i-1].Is("REFERENCES"),
				words[i-1].IsOp(","):
				return true
			}
		}
	}
	return false
}
