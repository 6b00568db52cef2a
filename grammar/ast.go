package grammar

import "strings"

// Entity categories found in sqlite_master.
const (
	CategoryTable   = "table"
	CategoryIndex   = "index"
	CategoryTrigger = "trigger"
	CategoryView    = "view"
)

// Categories lists all schema entity categories in definition order.
var Categories = []string{CategoryTable, CategoryIndex, CategoryTrigger, CategoryView}

// ForeignKey is a column-level or table-level REFERENCES clause.
type ForeignKey struct {
	Table    string
	Columns  []string // referenced columns, may be empty
	OnDelete string   // raw action text, e.g. "CASCADE", "SET NULL"
	OnUpdate string
	Match    string
	Defer    string // raw DEFERRABLE clause text
}

// Column is one column definition inside CREATE TABLE.
type Column struct {
	Name              string
	Type              string // raw type name with parameters, e.g. "VARCHAR(30)"
	PrimaryKey        bool
	PKDesc            bool
	PKConflict        string
	AutoIncrement     bool
	NotNull           bool
	NotNullOnConflict string
	Unique            bool
	UniqueOnConflict  string
	Check             string // raw expression without surrounding parens
	Default           string // raw literal or parenthesised expression
	Collate           string
	Generated         string // raw GENERATED expression, empty when not generated
	GeneratedKind     string // "STORED", "VIRTUAL" or empty
	FK                *ForeignKey
}

// Constraint kinds for table-level constraints.
const (
	ConstraintPrimaryKey = "PRIMARY KEY"
	ConstraintUnique     = "UNIQUE"
	ConstraintCheck      = "CHECK"
	ConstraintForeignKey = "FOREIGN KEY"
)

// KeyColumn is one entry of a PRIMARY KEY or UNIQUE constraint key list.
type KeyColumn struct {
	Name    string
	Collate string
	Desc    bool
}

// Constraint is a table-level constraint inside CREATE TABLE.
type Constraint struct {
	Name       string // optional CONSTRAINT name
	Kind       string
	Key        []KeyColumn // PRIMARY KEY / UNIQUE key columns
	OnConflict string
	Check      string   // CHECK expression
	Columns    []string // FOREIGN KEY local columns
	FK         *ForeignKey
}

// Table is a parsed CREATE TABLE statement.
type Table struct {
	Name         string
	Temporary    bool
	IfNotExists  bool
	Columns      []Column
	Constraints  []Constraint
	WithoutRowid bool
	Strict       bool
	Virtual      bool   // CREATE VIRTUAL TABLE
	ModuleSQL    string // raw USING clause for virtual tables
}

// Column returns the column with the given name, case-insensitively.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the names of all columns in definition order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names, from either a column
// marked PRIMARY KEY or a table-level PRIMARY KEY constraint.
func (t *Table) PrimaryKey() []string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return []string{c.Name}
		}
	}
	for _, cn := range t.Constraints {
		if cn.Kind == ConstraintPrimaryKey {
			names := make([]string, len(cn.Key))
			for i, k := range cn.Key {
				names[i] = k.Name
			}
			return names
		}
	}
	return nil
}

// ForeignKeys collects column-level REFERENCES clauses and table-level
// FOREIGN KEY constraints in definition order.
func (t *Table) ForeignKeys() []*ForeignKey {
	var fks []*ForeignKey
	for i := range t.Columns {
		if t.Columns[i].FK != nil {
			fks = append(fks, t.Columns[i].FK)
		}
	}
	for i := range t.Constraints {
		if t.Constraints[i].FK != nil {
			fks = append(fks, t.Constraints[i].FK)
		}
	}
	return fks
}

// IndexColumn is one indexed column or expression of CREATE INDEX.
type IndexColumn struct {
	Expr    string // column name or raw expression
	Collate string
	Desc    bool
}

// Index is a parsed CREATE INDEX statement.
type Index struct {
	Name        string
	IfNotExists bool
	Unique      bool
	Table       string
	Columns     []IndexColumn
	Where       string // raw partial index expression
}

// Trigger timing constants.
const (
	TriggerBefore    = "BEFORE"
	TriggerAfter     = "AFTER"
	TriggerInsteadOf = "INSTEAD OF"
)

// Trigger is a parsed CREATE TRIGGER statement.
type Trigger struct {
	Name        string
	Temporary   bool
	IfNotExists bool
	Timing      string // BEFORE, AFTER, INSTEAD OF, or empty
	Event       string // DELETE, INSERT, UPDATE
	UpdateOf    []string
	Table       string
	ForEachRow  bool
	When        string // raw expression
	Body        string // raw statements between BEGIN and END
}

// View is a parsed CREATE VIEW statement.
type View struct {
	Name        string
	Temporary   bool
	IfNotExists bool
	Columns     []string // optional declared column names
	Select      string   // raw SELECT body
}

// Statement is any parsed DDL entity.
type Statement interface {
	// Category returns the sqlite_master category of the entity.
	Category() string
	// EntityName returns the entity's own name.
	EntityName() string
}

func (t *Table) Category() string   { return CategoryTable }
func (i *Index) Category() string   { return CategoryIndex }
func (r *Trigger) Category() string { return CategoryTrigger }
func (v *View) Category() string    { return CategoryView }

func (t *Table) EntityName() string   { return t.Name }
func (i *Index) EntityName() string   { return i.Name }
func (r *Trigger) EntityName() string { return r.Name }
func (v *View) EntityName() string    { return v.Name }
