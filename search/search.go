// Package search parses a google-like query grammar and turns it into SQL
// filters over table data or predicates over schema entities. Words match
// any column, quoted text matches as a literal phrase, "-" excludes, OR
// makes alternatives and round brackets group. Keyword filters
// (table:, view:, column:, date:) apply globally, ignoring groups.
package search

import (
	"strings"
	"unicode"
)

// Keyword filter names recognised in "name:value" position.
var keywordNames = map[string]bool{
	"table": true, "view": true, "column": true, "date": true,
}

// Query is a parsed search query. Keywords holds the global filters keyed
// by name ("table", "date", ...), with a "-" prefix for negated ones;
// Words lists the positive words and phrases, usable for highlighting.
type Query struct {
	Keywords map[string][]string
	Words    []string

	root          *groupNode
	caseSensitive bool
}

type node interface{ negated() bool }

type wordNode struct {
	text   string
	phrase bool // quoted: no wildcard expansion
	not    bool
}

type groupNode struct {
	children []node // joined with AND
	not      bool
}

type orNode struct {
	operands []node
}

func (w *wordNode) negated() bool  { return w.not }
func (g *groupNode) negated() bool { return g.not }
func (o *orNode) negated() bool    { return false }

// Parse parses a query. Parsing never fails outright: malformed input
// degrades to matching the raw words, the way a search box is expected
// to behave.
func Parse(text string, caseSensitive bool) *Query {
	q := &Query{
		Keywords:      map[string][]string{},
		caseSensitive: caseSensitive,
	}
	tokens := scan(text)
	tokens = q.extractKeywords(tokens)
	p := &queryParser{tokens: tokens}
	q.root = p.parseGroup(false)
	q.collectWords(q.root)
	return q
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokOpen
	tokClose
	tokNot
	tokOr
)

type queryToken struct {
	kind tokenKind
	text string
}

func scan(text string) []queryToken {
	var tokens []queryToken
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, queryToken{kind: tokOpen})
			i++
		case r == ')':
			tokens = append(tokens, queryToken{kind: tokClose})
			i++
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, queryToken{kind: tokPhrase, text: string(runes[i+1 : j])})
			if j < len(runes) {
				j++
			}
			i = j
		case r == '-' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]):
			tokens = append(tokens, queryToken{kind: tokNot})
			i++
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) &&
				runes[j] != '(' && runes[j] != ')' && runes[j] != '"' {
				j++
			}
			word := string(runes[i:j])
			i = j
			// A trailing colon may introduce a quoted keyword value.
			if strings.HasSuffix(word, ":") && i < len(runes) && runes[i] == '"' {
				k := i + 1
				for k < len(runes) && runes[k] != '"' {
					k++
				}
				word += `"` + string(runes[i+1:k]) + `"`
				if k < len(runes) {
					k++
				}
				i = k
			}
			if strings.EqualFold(word, "OR") {
				tokens = append(tokens, queryToken{kind: tokOr})
			} else {
				tokens = append(tokens, queryToken{kind: tokWord, text: word})
			}
		}
	}
	return tokens
}

// extractKeywords pulls "name:value" tokens out of the stream into the
// query's keyword map. Keywords are global; their position and grouping
// do not matter, only a directly preceding "-".
func (q *Query) extractKeywords(tokens []queryToken) []queryToken {
	var out []queryToken
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		negated := false
		if t.kind == tokNot && i+1 < len(tokens) && tokens[i+1].kind == tokWord {
			if name, _, ok := splitKeyword(tokens[i+1].text); ok && keywordNames[name] {
				negated = true
				i++
				t = tokens[i]
			}
		}
		if t.kind == tokWord {
			if name, value, ok := splitKeyword(t.text); ok && keywordNames[name] && value != "" {
				if !q.caseSensitive {
					value = strings.ToLower(value)
				}
				if negated {
					name = "-" + name
				}
				q.Keywords[name] = append(q.Keywords[name], value)
				continue
			}
		}
		if negated {
			out = append(out, queryToken{kind: tokNot})
		}
		out = append(out, t)
	}
	return out
}

// splitKeyword splits "name:value", unwrapping a quoted value.
func splitKeyword(word string) (name, value string, ok bool) {
	idx := strings.Index(word, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = strings.ToLower(word[:idx])
	for _, r := range name {
		if r < 'a' || r > 'z' {
			return "", "", false
		}
	}
	value = word[idx+1:]
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return name, value, true
}

type queryParser struct {
	tokens []queryToken
	pos    int
}

func (p *queryParser) peek() (queryToken, bool) {
	if p.pos >= len(p.tokens) {
		return queryToken{}, false
	}
	return p.tokens[p.pos], true
}

// parseGroup parses a sequence of AND-joined expressions until the end of
// input or, when sub is set, a closing bracket.
func (p *queryParser) parseGroup(sub bool) *groupNode {
	g := &groupNode{}
	for {
		t, ok := p.peek()
		if !ok {
			return g
		}
		if t.kind == tokClose {
			if sub {
				p.pos++
			} else {
				p.pos++ // stray bracket, skip it
				continue
			}
			return g
		}
		if t.kind == tokOr {
			// OR without a left operand, nothing to attach to.
			p.pos++
			continue
		}
		n := p.parseExpr()
		if n != nil {
			g.children = append(g.children, n)
		}
	}
}

// parseExpr parses one operand and any OR chain hanging off it.
func (p *queryParser) parseExpr() node {
	left := p.parseOperand()
	if left == nil {
		return nil
	}
	var operands []node
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			break
		}
		p.pos++
		right := p.parseOperand()
		if right == nil {
			break
		}
		if len(operands) == 0 {
			operands = append(operands, left)
		}
		operands = append(operands, right)
	}
	if len(operands) > 0 {
		return &orNode{operands: operands}
	}
	return left
}

func (p *queryParser) parseOperand() node {
	t, ok := p.peek()
	if !ok {
		return nil
	}
	not := false
	if t.kind == tokNot {
		p.pos++
		not = true
		t, ok = p.peek()
		if !ok {
			return nil
		}
	}
	switch t.kind {
	case tokOpen:
		p.pos++
		g := p.parseGroup(true)
		g.not = not
		if len(g.children) == 0 {
			return nil
		}
		return g
	case tokWord:
		p.pos++
		return &wordNode{text: t.text, not: not}
	case tokPhrase:
		p.pos++
		return &wordNode{text: t.text, phrase: true, not: not}
	default:
		p.pos++
		return nil
	}
}

// collectWords gathers positive words and phrases for highlighting.
// Negated subtrees contribute nothing.
func (q *Query) collectWords(n node) {
	switch v := n.(type) {
	case *wordNode:
		if !v.not {
			q.Words = append(q.Words, v.text)
		}
	case *groupNode:
		if v.not {
			return
		}
		for _, c := range v.children {
			q.collectWords(c)
		}
	case *orNode:
		for _, c := range v.operands {
			q.collectWords(c)
		}
	}
}

// Empty reports whether the query has no words and no keyword filters.
func (q *Query) Empty() bool {
	return len(q.root.children) == 0 && len(q.Keywords) == 0
}
