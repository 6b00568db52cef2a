package grammar

import (
	"fmt"
	"strings"
)

// Generate renders canonical CREATE SQL for a parsed entity.
func Generate(stmt Statement) (string, error) {
	switch s := stmt.(type) {
	case *Table:
		return generateTable(s), nil
	case *Index:
		return generateIndex(s), nil
	case *Trigger:
		return generateTrigger(s), nil
	case *View:
		return generateView(s), nil
	}
	return "", fmt.Errorf("unsupported statement type %T", stmt)
}

func generateTable(t *Table) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if t.Temporary {
		b.WriteString("TEMPORARY ")
	}
	if t.Virtual {
		b.WriteString("VIRTUAL ")
	}
	b.WriteString("TABLE ")
	if t.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(t.Name))

	if t.Virtual {
		b.WriteString(" USING ")
		b.WriteString(t.ModuleSQL)
		return b.String()
	}

	b.WriteString(" (\n")
	lines := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for i := range t.Columns {
		lines = append(lines, "  "+columnSQL(&t.Columns[i]))
	}
	for i := range t.Constraints {
		lines = append(lines, "  "+constraintSQL(&t.Constraints[i]))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	if t.WithoutRowid {
		b.WriteString(" WITHOUT ROWID")
	}
	if t.Strict {
		if t.WithoutRowid {
			b.WriteString(",")
		}
		b.WriteString(" STRICT")
	}
	return b.String()
}

// ColumnSQL renders a single column definition, suitable for use in an
// ALTER TABLE ADD COLUMN statement.
func ColumnSQL(c *Column) string {
	return columnSQL(c)
}

func columnSQL(c *Column) string {
	parts := []string{Quote(c.Name)}
	if c.Type != "" {
		parts = append(parts, c.Type)
	}
	if c.PrimaryKey {
		pk := "PRIMARY KEY"
		if c.PKDesc {
			pk += " DESC"
		}
		if c.PKConflict != "" {
			pk += " ON CONFLICT " + c.PKConflict
		}
		if c.AutoIncrement {
			pk += " AUTOINCREMENT"
		}
		parts = append(parts, pk)
	}
	if c.NotNull {
		nn := "NOT NULL"
		if c.NotNullOnConflict != "" {
			nn += " ON CONFLICT " + c.NotNullOnConflict
		}
		parts = append(parts, nn)
	}
	if c.Unique {
		u := "UNIQUE"
		if c.UniqueOnConflict != "" {
			u += " ON CONFLICT " + c.UniqueOnConflict
		}
		parts = append(parts, u)
	}
	if c.Check != "" {
		parts = append(parts, "CHECK ("+c.Check+")")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	if c.Collate != "" {
		parts = append(parts, "COLLATE "+c.Collate)
	}
	if c.Generated != "" {
		g := "GENERATED ALWAYS AS (" + c.Generated + ")"
		if c.GeneratedKind != "" {
			g += " " + c.GeneratedKind
		}
		parts = append(parts, g)
	}
	if c.FK != nil {
		parts = append(parts, referencesSQL(c.FK))
	}
	return strings.Join(parts, " ")
}

func referencesSQL(fk *ForeignKey) string {
	s := "REFERENCES " + Quote(fk.Table)
	if len(fk.Columns) > 0 {
		s += " (" + quoteJoin(fk.Columns) + ")"
	}
	if fk.OnDelete != "" {
		s += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		s += " ON UPDATE " + fk.OnUpdate
	}
	if fk.Match != "" {
		s += " MATCH " + fk.Match
	}
	if fk.Defer != "" {
		s += " " + fk.Defer
	}
	return s
}

func constraintSQL(cn *Constraint) string {
	var s string
	if cn.Name != "" {
		s = "CONSTRAINT " + Quote(cn.Name) + " "
	}
	switch cn.Kind {
	case ConstraintPrimaryKey, ConstraintUnique:
		s += cn.Kind + " (" + keyColumnsSQL(cn.Key) + ")"
		if cn.OnConflict != "" {
			s += " ON CONFLICT " + cn.OnConflict
		}
	case ConstraintCheck:
		s += "CHECK (" + cn.Check + ")"
	case ConstraintForeignKey:
		s += "FOREIGN KEY (" + quoteJoin(cn.Columns) + ") " + referencesSQL(cn.FK)
	}
	return s
}

func keyColumnsSQL(key []KeyColumn) string {
	parts := make([]string, len(key))
	for i, k := range key {
		s := Quote(k.Name)
		if k.Collate != "" {
			s += " COLLATE " + k.Collate
		}
		if k.Desc {
			s += " DESC"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func quoteJoin(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = Quote(n)
	}
	return strings.Join(parts, ", ")
}

func generateIndex(idx *Index) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if idx.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(Quote(idx.Table))
	b.WriteString(" (")
	for i, c := range idx.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if isPlainName(c.Expr) {
			b.WriteString(Quote(c.Expr))
		} else {
			b.WriteString(c.Expr)
		}
		if c.Collate != "" {
			b.WriteString(" COLLATE " + c.Collate)
		}
		if c.Desc {
			b.WriteString(" DESC")
		}
	}
	b.WriteString(")")
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	return b.String()
}

// isPlainName reports whether an index column expression is a bare column
// reference rather than a computed expression.
func isPlainName(expr string) bool {
	toks, err := Tokenize(expr)
	if err != nil {
		return false
	}
	return len(toks) == 1 && toks[0].Type == TokenWord
}

func generateTrigger(tr *Trigger) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if tr.Temporary {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("TRIGGER ")
	if tr.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(tr.Name))
	if tr.Timing != "" {
		b.WriteString(" " + tr.Timing)
	}
	b.WriteString(" " + tr.Event)
	if len(tr.UpdateOf) > 0 {
		b.WriteString(" OF " + quoteJoin(tr.UpdateOf))
	}
	b.WriteString(" ON " + Quote(tr.Table))
	if tr.ForEachRow {
		b.WriteString(" FOR EACH ROW")
	}
	if tr.When != "" {
		b.WriteString("\nWHEN " + tr.When)
	}
	b.WriteString("\nBEGIN\n")
	body := strings.TrimSpace(tr.Body)
	if body != "" {
		if !strings.HasSuffix(body, ";") {
			body += ";"
		}
		for _, line := range strings.Split(body, "\n") {
			b.WriteString("  " + strings.TrimSpace(line) + "\n")
		}
	}
	b.WriteString("END")
	return b.String()
}

func generateView(v *View) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if v.Temporary {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("VIEW ")
	if v.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(v.Name))
	if len(v.Columns) > 0 {
		b.WriteString(" (" + quoteJoin(v.Columns) + ")")
	}
	b.WriteString(" AS\n")
	b.WriteString(v.Select)
	return b.String()
}
