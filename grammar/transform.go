package grammar

import (
	"strings"
)

// Renames describes identifier substitutions for Transform. Table maps old
// table (or view) names to new ones; Column maps a table name to old→new
// column names. All lookups are case-insensitive, and column maps are keyed
// by the table's name as it appears in the source SQL being transformed.
type Renames struct {
	Table  map[string]string
	Column map[string]map[string]string
}

func (r Renames) table(name string) (string, bool) {
	for old, repl := range r.Table {
		if strings.EqualFold(old, name) {
			return repl, true
		}
	}
	return "", false
}

func (r Renames) column(table, name string) (string, bool) {
	for tbl, cols := range r.Column {
		if !strings.EqualFold(tbl, table) {
			continue
		}
		for old, repl := range cols {
			if strings.EqualFold(old, name) {
				return repl, true
			}
		}
	}
	return "", false
}

func (r Renames) columnTables() []string {
	tables := make([]string, 0, len(r.Column))
	for tbl := range r.Column {
		tables = append(tables, tbl)
	}
	return tables
}

// Empty reports whether the rename set holds no substitutions.
func (r Renames) Empty() bool {
	if len(r.Table) > 0 {
		return false
	}
	for _, cols := range r.Column {
		if len(cols) > 0 {
			return false
		}
	}
	return true
}

// Keywords after which a bare identifier is a table reference.
var tablePosKeywords = map[string]bool{
	"table": true, "from": true, "join": true, "into": true,
	"update": true, "references": true, "on": true, "exists": true,
}

// Keywords that terminate a FROM table list.
var fromListEnders = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true,
	"having": true, "union": true, "intersect": true, "except": true,
	"on": true, "using": true, "as": true, "set": true, "when": true,
	"begin": true, "select": true,
}

// Transform rewrites table and column identifiers in a CREATE statement's
// SQL according to the rename set, preserving the original formatting,
// comments and string literals. Identifiers are matched in the positions the
// DDL grammar allows them: after TABLE/FROM/JOIN/INTO/UPDATE/REFERENCES/ON
// and before "." for tables, qualified or in subject-table scope for columns.
// The returned SQL equals the input when nothing applies.
func Transform(sql string, renames Renames) (string, error) {
	if renames.Empty() {
		return sql, nil
	}
	tokens, err := Tokenize(sql)
	if err != nil {
		return "", err
	}

	subjects := subjectTables(tokens, renames)
	onTable := triggerTable(tokens)
	aliases := tableAliases(tokens)

	var b strings.Builder
	last := 0

	// colScope tracks a parenthesised column list belonging to a specific
	// table, as in "REFERENCES tbl (a, b)" or "INSERT INTO tbl (a, b)".
	type scope struct {
		table string
		depth int
	}
	var scopes []scope
	depth := 0
	var pendingScope string // table name awaiting its "(" group

	prev := func(i int) Token {
		for j := i - 1; j >= 0; j-- {
			if tokens[j].Type != TokenComment {
				return tokens[j]
			}
		}
		return Token{Type: TokenOp}
	}
	nextTok := func(i int) Token {
		for j := i + 1; j < len(tokens); j++ {
			if tokens[j].Type != TokenComment {
				return tokens[j]
			}
		}
		return Token{Type: TokenOp}
	}

	inFromList := false
	for i, t := range tokens {
		setScope := false
		if t.IsOp("(") {
			depth++
			if pendingScope != "" {
				scopes = append(scopes, scope{table: pendingScope, depth: depth})
				pendingScope = ""
			}
			continue
		}
		if t.IsOp(")") {
			for len(scopes) > 0 && scopes[len(scopes)-1].depth == depth {
				scopes = scopes[:len(scopes)-1]
			}
			depth--
			continue
		}
		if t.Type != TokenWord {
			if !t.IsOp(",") && !t.IsOp(".") {
				pendingScope = ""
			}
			continue
		}
		if !t.Quoted() && fromListEnders[strings.ToLower(t.Text)] {
			inFromList = false
		}

		pr, nx := prev(i), nextTok(i)
		isTablePos := false
		if pr.Type == TokenWord && !pr.Quoted() && tablePosKeywords[strings.ToLower(pr.Text)] {
			isTablePos = true
			if pr.Is("FROM") || pr.Is("JOIN") {
				inFromList = true
			}
		}
		if !isTablePos && inFromList && pr.IsOp(",") {
			isTablePos = true
		}
		if !isTablePos && nx.IsOp(".") {
			isTablePos = true
		}

		replacement := ""
		switch {
		case isTablePos && !strings.EqualFold(t.Text, "new") && !strings.EqualFold(t.Text, "old"):
			if repl, ok := renames.table(t.Text); ok {
				replacement = renderIdent(t, repl)
			}
			if pr.Is("INTO") || pr.Is("REFERENCES") {
				pendingScope = t.Text
				setScope = true
			}

		case pr.IsOp("."):
			// Qualified column: resolve the qualifier as the column's table.
			qual := prev(i - 1)
			if qual.Type != TokenWord {
				break
			}
			qtable := qual.Text
			if strings.EqualFold(qtable, "new") || strings.EqualFold(qtable, "old") {
				qtable = onTable
			} else if aliased, ok := aliases[strings.ToLower(qtable)]; ok {
				qtable = aliased
			}
			if repl, ok := renames.column(qtable, t.Text); ok {
				replacement = renderIdent(t, repl)
			}

		default:
			// Unqualified identifier: a column of an enclosing column-list
			// scope or of one of the statement's subject tables.
			if len(scopes) > 0 {
				if repl, ok := renames.column(scopes[len(scopes)-1].table, t.Text); ok {
					replacement = renderIdent(t, repl)
				}
				break
			}
			for _, subj := range subjects {
				if repl, ok := renames.column(subj, t.Text); ok {
					replacement = renderIdent(t, repl)
					break
				}
			}
		}

		if !setScope {
			pendingScope = ""
		}
		if replacement != "" {
			b.WriteString(sql[last:t.Start])
			b.WriteString(replacement)
			last = t.End
		}
	}
	b.WriteString(sql[last:])
	return b.String(), nil
}

// renderIdent renders a replacement identifier, keeping the original
// quoting style when the source token was quoted.
func renderIdent(t Token, name string) string {
	if t.Quoted() {
		switch t.Raw[0] {
		case '`':
			return "`" + strings.ReplaceAll(name, "`", "``") + "`"
		case '[':
			return "[" + name + "]"
		default:
			return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
		}
	}
	return Quote(name)
}

// triggerTable returns the ON table of a CREATE TRIGGER statement, or ""
// when the statement is not a trigger. NEW and OLD qualifiers resolve to it.
func triggerTable(tokens []Token) string {
	seenTrigger := false
	for i, t := range tokens {
		if t.Is("TRIGGER") {
			seenTrigger = true
		}
		if seenTrigger && t.Is("ON") {
			for j := i + 1; j < len(tokens); j++ {
				if tokens[j].Type == TokenComment {
					continue
				}
				if tokens[j].Type == TokenWord {
					return tokens[j].Text
				}
				break
			}
		}
		if t.Is("BEGIN") {
			break
		}
	}
	return ""
}

// Join qualifiers and clause keywords that cannot be table aliases.
var nonAliasWords = map[string]bool{
	"left": true, "right": true, "full": true, "inner": true, "outer": true,
	"cross": true, "natural": true, "join": true, "on": true, "using": true,
	"where": true, "group": true, "order": true, "limit": true, "having": true,
	"union": true, "intersect": true, "except": true, "as": true, "set": true,
	"indexed": true, "not": true,
}

// tableAliases maps FROM/JOIN aliases (lowercased) to the table names they
// stand for, so qualified column references resolve through them.
func tableAliases(tokens []Token) map[string]string {
	var words []Token
	for _, t := range tokens {
		if t.Type != TokenComment {
			words = append(words, t)
		}
	}
	aliases := make(map[string]string)
	for i := 1; i < len(words); i++ {
		if words[i].Type != TokenWord {
			continue
		}
		if !words[i-1].Is("FROM") && !words[i-1].Is("JOIN") {
			continue
		}
		table := words[i].Text
		j := i + 1
		if j < len(words) && words[j].Is("AS") {
			j++
		}
		if j >= len(words) || words[j].Type != TokenWord {
			continue
		}
		alias := words[j]
		if !alias.Quoted() && nonAliasWords[strings.ToLower(alias.Text)] {
			continue
		}
		aliases[strings.ToLower(alias.Text)] = table
	}
	return aliases
}

// subjectTables determines which tables' columns may appear unqualified in
// the statement: the created table itself, the ON table of an index or
// trigger, and FROM/JOIN tables of a view's SELECT.
func subjectTables(tokens []Token, renames Renames) []string {
	var words []Token
	for _, t := range tokens {
		if t.Type == TokenWord || t.Type == TokenOp {
			words = append(words, t)
		}
	}
	var subjects []string
	add := func(name string) {
		for _, s := range subjects {
			if strings.EqualFold(s, name) {
				return
			}
		}
		subjects = append(subjects, name)
	}

	for i, t := range words {
		if i == 0 || t.Type != TokenWord {
			continue
		}
		if !t.Quoted() && reservedWords[strings.ToLower(t.Text)] {
			continue
		}
		pr := words[i-1]
		switch {
		case pr.Is("TABLE"), pr.Is("ON"), pr.Is("FROM"), pr.Is("JOIN"),
			pr.Is("INTO"), pr.Is("UPDATE"):
			add(t.Text)
		}
	}

	// Only tables with column renames matter as subjects.
	var filtered []string
	for _, s := range subjects {
		for _, tbl := range renames.columnTables() {
			if strings.EqualFold(s, tbl) {
				filtered = append(filtered, s)
			}
		}
	}
	return filtered
}
