package search

import (
	"regexp"
	"strings"
)

// MatchName applies the query's category keyword filters (table:, view:
// and their negations) to a schema entity. category is the entity's
// sqlite_master type.
func (q *Query) MatchName(category, name string) bool {
	if want := q.Keywords[category]; len(want) > 0 && !matchAny(name, want, q.caseSensitive) {
		return false
	}
	if block := q.Keywords["-"+category]; matchAny(name, block, q.caseSensitive) {
		return false
	}
	return true
}

// MatchWords evaluates the query's word expression against a text, with
// the same AND/OR/negation semantics the SQL form has. An empty query
// matches everything.
func (q *Query) MatchWords(text string) bool {
	return q.matchNode(q.root, text)
}

func (q *Query) matchNode(n node, text string) bool {
	switch v := n.(type) {
	case *wordNode:
		ok := matchWord(text, v.text, v.phrase, q.caseSensitive)
		if v.not {
			return !ok
		}
		return ok
	case *groupNode:
		ok := true
		for _, c := range v.children {
			if !q.matchNode(c, text) {
				ok = false
				break
			}
		}
		if v.not {
			return !ok
		}
		return ok
	case *orNode:
		for _, c := range v.operands {
			if q.matchNode(c, text) {
				return true
			}
		}
		return false
	}
	return true
}

// matchAny reports whether any of the words matches the text. Words carry
// the * wildcard; matching is substring, like the SQL form.
func matchAny(text string, words []string, caseSensitive bool) bool {
	for _, w := range words {
		if matchWord(text, w, false, caseSensitive) {
			return true
		}
	}
	return false
}

func matchWord(text, word string, phrase, caseSensitive bool) bool {
	pattern := regexp.QuoteMeta(word)
	if !phrase {
		pattern = strings.ReplaceAll(pattern, `\*`, ".*")
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return strings.Contains(strings.ToLower(text), strings.ToLower(word))
	}
	return re.MatchString(text)
}
