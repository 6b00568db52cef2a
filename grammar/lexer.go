package grammar

import (
	"fmt"
	"strings"
)

// TokenType classifies lexical tokens of an SQL statement.
type TokenType int

const (
	// TokenWord is a bare or quoted identifier or keyword.
	TokenWord TokenType = iota
	// TokenString is a single-quoted string literal.
	TokenString
	// TokenNumber is an integer, float, or hex literal.
	TokenNumber
	// TokenBlob is an X'..' blob literal.
	TokenBlob
	// TokenOp is an operator or punctuation token.
	TokenOp
	// TokenParam is a bind parameter (?, ?N, :name, @name, $name).
	TokenParam
	// TokenComment is a -- or /* */ comment.
	TokenComment
)

// Token is a single lexical token with its position in the source text.
type Token struct {
	Type  TokenType
	Text  string // unquoted value for words, raw text otherwise
	Raw   string // exact source text
	Start int
	End   int // exclusive
}

// Quoted reports whether a word token was written with identifier quoting.
func (t Token) Quoted() bool {
	return t.Type == TokenWord && len(t.Raw) > 0 &&
		(t.Raw[0] == '"' || t.Raw[0] == '`' || t.Raw[0] == '[')
}

// Is reports whether the token is a bare word matching the given keyword,
// case-insensitively. Quoted words never match keywords.
func (t Token) Is(keyword string) bool {
	return t.Type == TokenWord && !t.Quoted() && strings.EqualFold(t.Text, keyword)
}

// IsOp reports whether the token is the given operator or punctuation.
func (t Token) IsOp(op string) bool {
	return t.Type == TokenOp && t.Raw == op
}

// Tokenize splits SQL text into tokens, skipping whitespace but keeping
// comments so that callers re-assembling source can preserve them.
func Tokenize(sql string) ([]Token, error) {
	var tokens []Token
	i, n := 0, len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			start := i
			for i < n && sql[i] != '\n' {
				i++
			}
			tokens = append(tokens, Token{TokenComment, sql[start:i], sql[start:i], start, i})

		case c == '/' && i+1 < n && sql[i+1] == '*':
			start := i
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 >= n {
				return nil, fmt.Errorf("unterminated block comment at offset %d", start)
			}
			i += 2
			tokens = append(tokens, Token{TokenComment, sql[start:i], sql[start:i], start, i})

		case c == '\'':
			start := i
			raw, end, err := scanQuoted(sql, i, '\'')
			if err != nil {
				return nil, err
			}
			i = end
			typ := TokenString
			tokens = append(tokens, Token{typ, Unquote(raw), raw, start, i})

		case (c == 'x' || c == 'X') && i+1 < n && sql[i+1] == '\'':
			start := i
			_, end, err := scanQuoted(sql, i+1, '\'')
			if err != nil {
				return nil, err
			}
			i = end
			tokens = append(tokens, Token{TokenBlob, sql[start:i], sql[start:i], start, i})

		case c == '"' || c == '`':
			start := i
			raw, end, err := scanQuoted(sql, i, c)
			if err != nil {
				return nil, err
			}
			i = end
			tokens = append(tokens, Token{TokenWord, Unquote(raw), raw, start, i})

		case c == '[':
			start := i
			j := strings.IndexByte(sql[i:], ']')
			if j < 0 {
				return nil, fmt.Errorf("unterminated [identifier] at offset %d", start)
			}
			i += j + 1
			raw := sql[start:i]
			tokens = append(tokens, Token{TokenWord, Unquote(raw), raw, start, i})

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(sql[i+1])):
			start := i
			if c == '0' && i+1 < n && (sql[i+1] == 'x' || sql[i+1] == 'X') {
				i += 2
				for i < n && isHexDigit(sql[i]) {
					i++
				}
				if i == start+2 {
					return nil, fmt.Errorf("malformed numeric literal %q at offset %d", sql[start:i], start)
				}
			} else {
				seenDot := false
				for i < n && (isDigit(sql[i]) || (sql[i] == '.' && !seenDot)) {
					if sql[i] == '.' {
						seenDot = true
					}
					i++
				}
				if i < n && (sql[i] == 'e' || sql[i] == 'E') {
					j := i + 1
					if j < n && (sql[j] == '+' || sql[j] == '-') {
						j++
					}
					if j < n && isDigit(sql[j]) {
						i = j
						for i < n && isDigit(sql[i]) {
							i++
						}
					}
				}
			}
			if i < n && (isWordChar(sql[i]) || sql[i] == '.') {
				end := i + 1
				for end < n && (isWordChar(sql[end]) || sql[end] == '.') {
					end++
				}
				return nil, fmt.Errorf("malformed numeric literal %q at offset %d", sql[start:end], start)
			}
			tokens = append(tokens, Token{TokenNumber, sql[start:i], sql[start:i], start, i})

		case isWordStart(c):
			start := i
			for i < n && isWordChar(sql[i]) {
				i++
			}
			raw := sql[start:i]
			tokens = append(tokens, Token{TokenWord, raw, raw, start, i})

		case c == '?':
			start := i
			i++
			for i < n && isDigit(sql[i]) {
				i++
			}
			tokens = append(tokens, Token{TokenParam, sql[start:i], sql[start:i], start, i})

		case c == ':' || c == '@' || c == '$':
			start := i
			i++
			for i < n && isWordChar(sql[i]) {
				i++
			}
			if i == start+1 {
				tokens = append(tokens, Token{TokenOp, sql[start:i], sql[start:i], start, i})
			} else {
				tokens = append(tokens, Token{TokenParam, sql[start:i], sql[start:i], start, i})
			}

		default:
			start := i
			// Multi-character operators first.
			for _, op := range []string{"<>", "<=", ">=", "==", "!=", "||", "<<", ">>", "->>", "->"} {
				if strings.HasPrefix(sql[i:], op) {
					i += len(op)
					break
				}
			}
			if i == start {
				i++
			}
			tokens = append(tokens, Token{TokenOp, sql[start:i], sql[start:i], start, i})
		}
	}
	return tokens, nil
}

// scanQuoted scans a quoted region starting at sql[start] == quote, honoring
// doubled quote escapes. Returns the raw text including quotes and the index
// past the closing quote.
func scanQuoted(sql string, start int, quote byte) (string, int, error) {
	i := start + 1
	n := len(sql)
	for i < n {
		if sql[i] == quote {
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return sql[start : i+1], i + 1, nil
		}
		i++
	}
	return "", 0, fmt.Errorf("unterminated %q-quoted token at offset %d", string(quote), start)
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordChar(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '$'
}
