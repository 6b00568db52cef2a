package grammar

import "strings"

// Keywords that cannot be used as bare identifiers in SQLite DDL.
var reservedWords = map[string]bool{
	"abort": true, "action": true, "add": true, "after": true, "all": true,
	"alter": true, "always": true, "analyze": true, "and": true, "as": true,
	"asc": true, "attach": true, "autoincrement": true, "before": true,
	"begin": true, "between": true, "by": true, "cascade": true, "case": true,
	"cast": true, "check": true, "collate": true, "column": true,
	"commit": true, "conflict": true, "constraint": true, "create": true,
	"cross": true, "current": true, "current_date": true,
	"current_time": true, "current_timestamp": true, "database": true,
	"default": true, "deferrable": true, "deferred": true, "delete": true,
	"desc": true, "detach": true, "distinct": true, "do": true, "drop": true,
	"each": true, "else": true, "end": true, "escape": true, "except": true,
	"exclude": true, "exclusive": true, "exists": true, "explain": true,
	"fail": true, "filter": true, "first": true, "following": true,
	"for": true, "foreign": true, "from": true, "full": true,
	"generated": true, "glob": true, "group": true, "groups": true,
	"having": true, "if": true, "ignore": true, "immediate": true, "in": true,
	"index": true, "indexed": true, "initially": true, "inner": true,
	"insert": true, "instead": true, "intersect": true, "into": true,
	"is": true, "isnull": true, "join": true, "key": true, "last": true,
	"left": true, "like": true, "limit": true, "match": true,
	"materialized": true, "natural": true, "no": true, "not": true,
	"nothing": true, "notnull": true, "null": true, "nulls": true,
	"of": true, "offset": true, "on": true, "or": true, "order": true,
	"others": true, "outer": true, "over": true, "partition": true,
	"plan": true, "pragma": true, "preceding": true, "primary": true,
	"query": true, "raise": true, "range": true, "recursive": true,
	"references": true, "regexp": true, "reindex": true, "release": true,
	"rename": true, "replace": true, "restrict": true, "returning": true,
	"right": true, "rollback": true, "row": true, "rows": true,
	"savepoint": true, "select": true, "set": true, "table": true,
	"temp": true, "temporary": true, "then": true, "ties": true, "to": true,
	"transaction": true, "trigger": true, "unbounded": true, "union": true,
	"unique": true, "update": true, "using": true, "vacuum": true,
	"values": true, "view": true, "virtual": true, "when": true,
	"where": true, "window": true, "with": true, "without": true,
}

// NeedsQuote reports whether the identifier cannot appear bare in SQL:
// reserved words, empty strings, names not matching [A-Za-z_][A-Za-z0-9_]*.
func NeedsQuote(name string) bool {
	if name == "" {
		return true
	}
	if reservedWords[strings.ToLower(name)] {
		return true
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// Quote returns the identifier in double quotes when quoting is required,
// doubling any embedded quote characters. With force it always quotes.
func Quote(name string) string {
	return quoteIf(name, false)
}

// QuoteAlways returns the identifier double-quoted unconditionally.
func QuoteAlways(name string) string {
	return quoteIf(name, true)
}

func quoteIf(name string, force bool) string {
	if !force && !NeedsQuote(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Unquote strips one level of identifier quoting ("x", `x`, [x]) and
// unescapes doubled quote characters. Unquoted input is returned as is.
func Unquote(name string) string {
	if len(name) < 2 {
		return name
	}
	first, last := name[0], name[len(name)-1]
	switch {
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
	case first == '[' && last == ']':
		return name[1 : len(name)-1]
	case first == '\'' && last == '\'':
		return strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}
