package grammar

import (
	"fmt"
	"strings"
)

// ParseError reports a parse failure with the offending token position.
type ParseError struct {
	Message string
	Offset  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Offset)
}

// ParseStatement parses a single CREATE statement of any supported category.
func ParseStatement(sql string) (Statement, error) {
	p, err := newParser(sql)
	if err != nil {
		return nil, err
	}
	return p.parseCreate()
}

// ParseTable parses a CREATE TABLE or CREATE VIRTUAL TABLE statement.
func ParseTable(sql string) (*Table, error) {
	stmt, err := ParseStatement(sql)
	if err != nil {
		return nil, err
	}
	t, ok := stmt.(*Table)
	if !ok {
		return nil, fmt.Errorf("expected CREATE TABLE, got CREATE %s", strings.ToUpper(stmt.Category()))
	}
	return t, nil
}

// ParseIndex parses a CREATE INDEX statement.
func ParseIndex(sql string) (*Index, error) {
	stmt, err := ParseStatement(sql)
	if err != nil {
		return nil, err
	}
	i, ok := stmt.(*Index)
	if !ok {
		return nil, fmt.Errorf("expected CREATE INDEX, got CREATE %s", strings.ToUpper(stmt.Category()))
	}
	return i, nil
}

// ParseTrigger parses a CREATE TRIGGER statement.
func ParseTrigger(sql string) (*Trigger, error) {
	stmt, err := ParseStatement(sql)
	if err != nil {
		return nil, err
	}
	t, ok := stmt.(*Trigger)
	if !ok {
		return nil, fmt.Errorf("expected CREATE TRIGGER, got CREATE %s", strings.ToUpper(stmt.Category()))
	}
	return t, nil
}

// ParseView parses a CREATE VIEW statement.
func ParseView(sql string) (*View, error) {
	stmt, err := ParseStatement(sql)
	if err != nil {
		return nil, err
	}
	v, ok := stmt.(*View)
	if !ok {
		return nil, fmt.Errorf("expected CREATE VIEW, got CREATE %s", strings.ToUpper(stmt.Category()))
	}
	return v, nil
}

type parser struct {
	src    string
	tokens []Token // comments stripped
	pos    int
}

func newParser(sql string) (*parser, error) {
	all, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	tokens := all[:0:0]
	for _, t := range all {
		if t.Type != TokenComment {
			tokens = append(tokens, t)
		}
	}
	return &parser{src: sql, tokens: tokens, pos: 0}, nil
}

func (p *parser) errf(format string, args ...interface{}) error {
	off := len(p.src)
	if p.pos < len(p.tokens) {
		off = p.tokens[p.pos].Start
	}
	return &ParseError{Message: fmt.Sprintf(format, args...), Offset: off}
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() Token {
	if p.done() {
		return Token{Type: TokenOp, Start: len(p.src), End: len(p.src)}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

// accept consumes the next token when it is the given bare keyword.
func (p *parser) accept(keyword string) bool {
	if p.peek().Is(keyword) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptOp(op string) bool {
	if p.peek().IsOp(op) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(keyword string) error {
	if !p.accept(keyword) {
		return p.errf("expected %s", strings.ToUpper(keyword))
	}
	return nil
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return p.errf("expected %q", op)
	}
	return nil
}

// name consumes an identifier token.
func (p *parser) name() (string, error) {
	t := p.peek()
	if t.Type != TokenWord {
		return "", p.errf("expected identifier")
	}
	p.pos++
	return t.Text, nil
}

// qualifiedName consumes db.name or name, returning the final name.
func (p *parser) qualifiedName() (string, error) {
	n, err := p.name()
	if err != nil {
		return "", err
	}
	if p.acceptOp(".") {
		return p.name()
	}
	return n, nil
}

func (p *parser) parseCreate() (Statement, error) {
	if err := p.expect("CREATE"); err != nil {
		return nil, err
	}
	temp := p.accept("TEMP") || p.accept("TEMPORARY")
	unique := p.accept("UNIQUE")
	virtual := p.accept("VIRTUAL")

	switch {
	case p.accept("TABLE"):
		return p.parseTableBody(temp, virtual)
	case unique || p.peek().Is("INDEX"):
		p.accept("INDEX")
		return p.parseIndexBody(unique)
	case p.accept("TRIGGER"):
		return p.parseTriggerBody(temp)
	case p.accept("VIEW"):
		return p.parseViewBody(temp)
	}
	return nil, p.errf("expected TABLE, INDEX, TRIGGER or VIEW")
}

func (p *parser) parseIfNotExists() bool {
	mark := p.pos
	if p.accept("IF") && p.accept("NOT") && p.accept("EXISTS") {
		return true
	}
	p.pos = mark
	return false
}

// expr consumes a raw expression span, balanced on parentheses, stopping at a
// top-level comma or closing paren or one of the stop keywords.
func (p *parser) expr(stop ...string) string {
	start := -1
	end := -1
	depth := 0
	for !p.done() {
		t := p.peek()
		if depth == 0 {
			if t.IsOp(",") || t.IsOp(")") {
				break
			}
			stopped := false
			for _, kw := range stop {
				if t.Is(kw) {
					stopped = true
					break
				}
			}
			if stopped {
				break
			}
		}
		if t.IsOp("(") {
			depth++
		} else if t.IsOp(")") {
			depth--
		}
		if start < 0 {
			start = t.Start
		}
		end = t.End
		p.pos++
	}
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(p.src[start:end])
}

// parenExpr consumes "( expr )" returning the inner raw text.
func (p *parser) parenExpr() (string, error) {
	if err := p.expectOp("("); err != nil {
		return "", err
	}
	start := -1
	end := -1
	depth := 1
	for !p.done() {
		t := p.next()
		if t.IsOp("(") {
			depth++
		} else if t.IsOp(")") {
			depth--
			if depth == 0 {
				if start < 0 {
					return "", nil
				}
				return strings.TrimSpace(p.src[start:end]), nil
			}
		}
		if start < 0 {
			start = t.Start
		}
		end = t.End
	}
	return "", p.errf("unbalanced parentheses")
}

func (p *parser) parseTableBody(temp, virtual bool) (*Table, error) {
	t := &Table{Temporary: temp, Virtual: virtual}
	t.IfNotExists = p.parseIfNotExists()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	t.Name = name

	if virtual {
		if err := p.expect("USING"); err != nil {
			return nil, err
		}
		start := p.peek().Start
		end := len(p.src)
		for !p.done() {
			tok := p.next()
			if tok.IsOp(";") {
				end = tok.Start
				break
			}
			end = tok.End
		}
		t.ModuleSQL = strings.TrimSpace(p.src[start:end])
		return t, nil
	}

	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	for {
		if isConstraintStart(p.peek()) {
			cn, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			t.Constraints = append(t.Constraints, *cn)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			t.Columns = append(t.Columns, *col)
		}
		if p.acceptOp(",") {
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		break
	}

	for {
		switch {
		case p.accept("WITHOUT"):
			if err := p.expect("ROWID"); err != nil {
				return nil, err
			}
			t.WithoutRowid = true
		case p.accept("STRICT"):
			t.Strict = true
		case p.acceptOp(","):
		case p.acceptOp(";"):
			return t, nil
		default:
			if p.done() {
				return t, nil
			}
			return nil, p.errf("unexpected trailing token %q", p.peek().Raw)
		}
	}
}

func isConstraintStart(t Token) bool {
	for _, kw := range []string{"CONSTRAINT", "PRIMARY", "UNIQUE", "CHECK", "FOREIGN"} {
		if t.Is(kw) {
			return true
		}
	}
	return false
}

func (p *parser) parseColumnDef() (*Column, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	col := &Column{Name: name}

	// Type name: one or more words, optionally followed by (N) or (N, M).
	var typeParts []string
	for p.peek().Type == TokenWord && !isColumnConstraintStart(p.peek()) {
		typeParts = append(typeParts, p.next().Text)
	}
	if len(typeParts) > 0 && p.peek().IsOp("(") {
		inner, err := p.parenExpr()
		if err != nil {
			return nil, err
		}
		typeParts[len(typeParts)-1] += "(" + inner + ")"
	}
	col.Type = strings.Join(typeParts, " ")

	for {
		switch {
		case p.accept("CONSTRAINT"):
			// Column constraint names are parsed and discarded; SQLite
			// keeps them only in the original SQL text.
			if _, err := p.name(); err != nil {
				return nil, err
			}
		case p.accept("PRIMARY"):
			if err := p.expect("KEY"); err != nil {
				return nil, err
			}
			col.PrimaryKey = true
			p.accept("ASC")
			if p.accept("DESC") {
				col.PKDesc = true
			}
			col.PKConflict = p.parseConflictClause()
			if p.accept("AUTOINCREMENT") {
				col.AutoIncrement = true
			}
		case p.accept("NOT"):
			if err := p.expect("NULL"); err != nil {
				return nil, err
			}
			col.NotNull = true
			col.NotNullOnConflict = p.parseConflictClause()
		case p.accept("UNIQUE"):
			col.Unique = true
			col.UniqueOnConflict = p.parseConflictClause()
		case p.accept("CHECK"):
			expr, err := p.parenExpr()
			if err != nil {
				return nil, err
			}
			col.Check = expr
		case p.accept("DEFAULT"):
			if p.peek().IsOp("(") {
				expr, err := p.parenExpr()
				if err != nil {
					return nil, err
				}
				col.Default = "(" + expr + ")"
			} else if p.peek().IsOp("-") || p.peek().IsOp("+") {
				sign := p.next().Raw
				num := p.next()
				col.Default = sign + num.Raw
			} else {
				col.Default = p.next().Raw
			}
		case p.accept("COLLATE"):
			cn, err := p.name()
			if err != nil {
				return nil, err
			}
			col.Collate = cn
		case p.accept("REFERENCES"):
			fk, err := p.parseReferences()
			if err != nil {
				return nil, err
			}
			col.FK = fk
		case p.accept("GENERATED"):
			if err := p.expect("ALWAYS"); err != nil {
				return nil, err
			}
			if err := p.expect("AS"); err != nil {
				return nil, err
			}
			expr, err := p.parenExpr()
			if err != nil {
				return nil, err
			}
			col.Generated = expr
			col.GeneratedKind = p.parseGeneratedKind()
		case p.accept("AS"):
			expr, err := p.parenExpr()
			if err != nil {
				return nil, err
			}
			col.Generated = expr
			col.GeneratedKind = p.parseGeneratedKind()
		default:
			return col, nil
		}
	}
}

func (p *parser) parseGeneratedKind() string {
	if p.accept("STORED") {
		return "STORED"
	}
	if p.accept("VIRTUAL") {
		return "VIRTUAL"
	}
	return ""
}

func isColumnConstraintStart(t Token) bool {
	for _, kw := range []string{"CONSTRAINT", "PRIMARY", "NOT", "UNIQUE", "CHECK",
		"DEFAULT", "COLLATE", "REFERENCES", "GENERATED", "AS"} {
		if t.Is(kw) {
			return true
		}
	}
	return false
}

func (p *parser) parseConflictClause() string {
	mark := p.pos
	if p.accept("ON") {
		if p.accept("CONFLICT") {
			t := p.next()
			return strings.ToUpper(t.Text)
		}
		p.pos = mark
	}
	return ""
}

func (p *parser) parseReferences() (*ForeignKey, error) {
	table, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	fk := &ForeignKey{Table: table}
	if p.peek().IsOp("(") {
		p.pos++
		for {
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			fk.Columns = append(fk.Columns, n)
			if p.acceptOp(",") {
				continue
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	for {
		switch {
		case p.accept("ON"):
			which := strings.ToUpper(p.next().Text)
			action, err := p.parseFKAction()
			if err != nil {
				return nil, err
			}
			if which == "DELETE" {
				fk.OnDelete = action
			} else {
				fk.OnUpdate = action
			}
		case p.accept("MATCH"):
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			fk.Match = n
		case p.peek().Is("NOT") || p.peek().Is("DEFERRABLE"):
			start := p.peek().Start
			end := start
			if p.accept("NOT") {
				end = p.tokens[p.pos-1].End
			}
			if err := p.expect("DEFERRABLE"); err != nil {
				return nil, err
			}
			end = p.tokens[p.pos-1].End
			if p.accept("INITIALLY") {
				p.next()
				end = p.tokens[p.pos-1].End
			}
			fk.Defer = p.src[start:end]
		default:
			return fk, nil
		}
	}
}

func (p *parser) parseFKAction() (string, error) {
	switch {
	case p.accept("SET"):
		t := p.next()
		return "SET " + strings.ToUpper(t.Text), nil
	case p.accept("CASCADE"):
		return "CASCADE", nil
	case p.accept("RESTRICT"):
		return "RESTRICT", nil
	case p.accept("NO"):
		if err := p.expect("ACTION"); err != nil {
			return "", err
		}
		return "NO ACTION", nil
	}
	return "", p.errf("expected foreign key action")
}

func (p *parser) parseTableConstraint() (*Constraint, error) {
	cn := &Constraint{}
	if p.accept("CONSTRAINT") {
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		cn.Name = n
	}
	switch {
	case p.accept("PRIMARY"):
		if err := p.expect("KEY"); err != nil {
			return nil, err
		}
		cn.Kind = ConstraintPrimaryKey
		key, err := p.parseKeyColumns()
		if err != nil {
			return nil, err
		}
		cn.Key = key
		cn.OnConflict = p.parseConflictClause()
	case p.accept("UNIQUE"):
		cn.Kind = ConstraintUnique
		key, err := p.parseKeyColumns()
		if err != nil {
			return nil, err
		}
		cn.Key = key
		cn.OnConflict = p.parseConflictClause()
	case p.accept("CHECK"):
		cn.Kind = ConstraintCheck
		expr, err := p.parenExpr()
		if err != nil {
			return nil, err
		}
		cn.Check = expr
	case p.accept("FOREIGN"):
		if err := p.expect("KEY"); err != nil {
			return nil, err
		}
		cn.Kind = ConstraintForeignKey
		if err := p.expectOp("("); err != nil {
			return nil, err
		}
		for {
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			cn.Columns = append(cn.Columns, n)
			if p.acceptOp(",") {
				continue
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			break
		}
		if err := p.expect("REFERENCES"); err != nil {
			return nil, err
		}
		fk, err := p.parseReferences()
		if err != nil {
			return nil, err
		}
		cn.FK = fk
	default:
		return nil, p.errf("expected table constraint")
	}
	return cn, nil
}

func (p *parser) parseKeyColumns() ([]KeyColumn, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var key []KeyColumn
	for {
		n, err := p.name()
		if err != nil {
			return nil, err
		}
		kc := KeyColumn{Name: n}
		if p.accept("COLLATE") {
			cn, err := p.name()
			if err != nil {
				return nil, err
			}
			kc.Collate = cn
		}
		p.accept("ASC")
		if p.accept("DESC") {
			kc.Desc = true
		}
		key = append(key, kc)
		if p.acceptOp(",") {
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return key, nil
	}
}

func (p *parser) parseIndexBody(unique bool) (*Index, error) {
	idx := &Index{Unique: unique}
	idx.IfNotExists = p.parseIfNotExists()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	idx.Name = name
	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	table, err := p.name()
	if err != nil {
		return nil, err
	}
	idx.Table = table
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	for {
		ic := IndexColumn{}
		// A lone identifier optionally followed by COLLATE/ASC/DESC is a
		// column reference; anything else is an expression.
		if p.peek().Type == TokenWord && isIndexColumnEnd(p.peekAt(1)) {
			ic.Expr = p.next().Text
		} else {
			ic.Expr = p.expr("COLLATE", "ASC", "DESC")
		}
		if p.accept("COLLATE") {
			cn, err := p.name()
			if err != nil {
				return nil, err
			}
			ic.Collate = cn
		}
		p.accept("ASC")
		if p.accept("DESC") {
			ic.Desc = true
		}
		idx.Columns = append(idx.Columns, ic)
		if p.acceptOp(",") {
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		break
	}
	if p.accept("WHERE") {
		idx.Where = p.expr()
	}
	p.acceptOp(";")
	return idx, nil
}

func (p *parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokenOp, Start: len(p.src), End: len(p.src)}
	}
	return p.tokens[p.pos+offset]
}

func isIndexColumnEnd(t Token) bool {
	return t.IsOp(",") || t.IsOp(")") || t.Is("COLLATE") || t.Is("ASC") || t.Is("DESC")
}

func (p *parser) parseTriggerBody(temp bool) (*Trigger, error) {
	tr := &Trigger{Temporary: temp}
	tr.IfNotExists = p.parseIfNotExists()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	tr.Name = name

	switch {
	case p.accept("BEFORE"):
		tr.Timing = TriggerBefore
	case p.accept("AFTER"):
		tr.Timing = TriggerAfter
	case p.accept("INSTEAD"):
		if err := p.expect("OF"); err != nil {
			return nil, err
		}
		tr.Timing = TriggerInsteadOf
	}

	switch {
	case p.accept("DELETE"):
		tr.Event = "DELETE"
	case p.accept("INSERT"):
		tr.Event = "INSERT"
	case p.accept("UPDATE"):
		tr.Event = "UPDATE"
		if p.accept("OF") {
			for {
				n, err := p.name()
				if err != nil {
					return nil, err
				}
				tr.UpdateOf = append(tr.UpdateOf, n)
				if !p.acceptOp(",") {
					break
				}
			}
		}
	default:
		return nil, p.errf("expected DELETE, INSERT or UPDATE")
	}

	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	table, err := p.name()
	if err != nil {
		return nil, err
	}
	tr.Table = table

	if p.accept("FOR") {
		if err := p.expect("EACH"); err != nil {
			return nil, err
		}
		if err := p.expect("ROW"); err != nil {
			return nil, err
		}
		tr.ForEachRow = true
	}
	if p.accept("WHEN") {
		tr.When = p.expr("BEGIN")
	}
	if err := p.expect("BEGIN"); err != nil {
		return nil, err
	}

	// Body runs to the matching END; nested BEGIN blocks do not occur in
	// trigger bodies but CASE ... END expressions do.
	start := p.peek().Start
	end := start
	caseDepth := 0
	for !p.done() {
		t := p.peek()
		if t.Is("CASE") {
			caseDepth++
		} else if t.Is("END") {
			if caseDepth == 0 {
				break
			}
			caseDepth--
		}
		end = t.End
		p.pos++
	}
	if err := p.expect("END"); err != nil {
		return nil, err
	}
	tr.Body = strings.TrimSpace(p.src[start:end])
	p.acceptOp(";")
	return tr, nil
}

func (p *parser) parseViewBody(temp bool) (*View, error) {
	v := &View{Temporary: temp}
	v.IfNotExists = p.parseIfNotExists()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	v.Name = name

	if p.peek().IsOp("(") {
		p.pos++
		for {
			n, err := p.name()
			if err != nil {
				return nil, err
			}
			v.Columns = append(v.Columns, n)
			if p.acceptOp(",") {
				continue
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	if err := p.expect("AS"); err != nil {
		return nil, err
	}
	start := p.peek().Start
	end := len(p.src)
	for !p.done() {
		t := p.next()
		if t.IsOp(";") {
			end = t.Start
			break
		}
		end = t.End
	}
	v.Select = strings.TrimSpace(p.src[start:end])
	return v, nil
}
