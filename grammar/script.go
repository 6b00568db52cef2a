package grammar

import "fmt"

// ParseScript parses every CREATE statement in a schema dump. Other
// statements a dump may carry (PRAGMA lines, BEGIN TRANSACTION, COMMIT,
// INSERT rows) are skipped. Statement boundaries honor string literals,
// comments and BEGIN..END trigger bodies.
func ParseScript(script string) ([]Statement, error) {
	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}
	var stmts []Statement
	num := 0
	start := -1
	isCreate := false
	depth := 0
	inTrigger := false
	emit := func(end int) error {
		create := isCreate
		begin := start
		start, isCreate, depth, inTrigger = -1, false, 0, false
		if begin < 0 || !create {
			return nil
		}
		num++
		stmt, err := ParseStatement(script[begin:end])
		if err != nil {
			return fmt.Errorf("statement %d: %w", num, err)
		}
		stmts = append(stmts, stmt)
		return nil
	}
	for _, tok := range tokens {
		if tok.Type == TokenComment {
			continue
		}
		if start < 0 {
			start = tok.Start
			isCreate = tok.Is("CREATE")
		}
		switch {
		case tok.Is("TRIGGER"):
			inTrigger = true
		case tok.Is("BEGIN"):
			if inTrigger {
				depth++
			}
		case tok.Is("CASE"):
			depth++
		case tok.Is("END"):
			if depth > 0 {
				depth--
			}
		case tok.IsOp(";") && depth == 0:
			if err := emit(tok.Start); err != nil {
				return nil, err
			}
		}
	}
	if err := emit(len(script)); err != nil {
		return nil, err
	}
	return stmts, nil
}
