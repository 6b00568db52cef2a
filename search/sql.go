package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

const likeEscape = `\`

// Column describes one column of the table or view being searched.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// SelectSQL builds the full row-search statement for one table or view:
// a SELECT * with the query's words matched against every eligible column
// and the date keywords constraining date-typed columns.
func (q *Query) SelectSQL(name string, cols []Column) (string, []any) {
	where, args := q.WhereSQL(cols)
	sql := "SELECT * FROM " + grammar.Quote(name)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, args
}

// WhereSQL builds the WHERE clause for the query over the given columns,
// without the WHERE itself. An empty clause means every row matches.
func (q *Query) WhereSQL(cols []Column) (string, []any) {
	var args []any
	clause := q.nodeSQL(q.root, cols, &args)
	if kw := q.dateSQL(cols, &args); kw != "" {
		if clause != "" {
			clause += " AND "
		}
		clause += kw
	}
	return clause, args
}

func (q *Query) nodeSQL(n node, cols []Column, args *[]any) string {
	switch v := n.(type) {
	case *wordNode:
		sql := q.wordSQL(v, cols, args)
		if v.not && sql != "" {
			sql = "NOT " + sql
		}
		return sql

	case *groupNode:
		var parts []string
		for _, c := range v.children {
			if s := q.nodeSQL(c, cols, args); s != "" {
				parts = append(parts, s)
			}
		}
		sql := strings.Join(parts, " AND ")
		if len(parts) > 1 {
			sql = "(" + sql + ")"
		}
		if v.not && sql != "" {
			sql = "NOT " + sql
		}
		return sql

	case *orNode:
		var parts []string
		for _, c := range v.operands {
			if s := q.nodeSQL(c, cols, args); s != "" {
				parts = append(parts, s)
			}
		}
		sql := strings.Join(parts, " OR ")
		if len(parts) > 1 {
			sql = "(" + sql + ")"
		}
		return sql
	}
	return ""
}

// wordSQL matches one word or phrase against every column that passes the
// column keyword filters. Case-insensitive search uses LIKE, case-sensitive
// uses GLOB with its own wildcard syntax.
func (q *Query) wordSQL(w *wordNode, cols []Column, args *[]any) string {
	var parts []string
	pattern, escaped := q.pattern(w)
	matched := 0
	for _, col := range cols {
		if !q.columnWanted(col.Name) {
			continue
		}
		matched++
		expr := grammar.Quote(col.Name)
		if !col.NotNull {
			expr = "COALESCE(" + expr + ", '')"
		}
		op := "LIKE"
		if q.caseSensitive {
			op = "GLOB"
		}
		part := fmt.Sprintf("%s %s ?", expr, op)
		if escaped && !q.caseSensitive {
			part += " ESCAPE '" + likeEscape + "'"
		}
		parts = append(parts, part)
		*args = append(*args, pattern)
	}
	if matched == 0 {
		return "1 = 0"
	}
	sql := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		sql = "(" + sql + ")"
	}
	return sql
}

// pattern renders the word as a LIKE or GLOB argument, escaping operator
// specials and expanding the user's * wildcard. Phrases match literally.
func (q *Query) pattern(w *wordNode) (string, bool) {
	text := w.text
	if q.caseSensitive {
		// GLOB specials ? and [ become single-character classes.
		s := strings.ReplaceAll(text, "[", "[[]")
		s = strings.ReplaceAll(s, "?", "[?]")
		if w.phrase {
			s = strings.ReplaceAll(s, "*", "[*]")
		}
		return "*" + s + "*", false
	}
	s := strings.ReplaceAll(text, "%", likeEscape+"%")
	s = strings.ReplaceAll(s, "_", likeEscape+"_")
	escaped := len(s) > len(text)
	if !w.phrase {
		s = strings.ReplaceAll(s, "*", "%")
	}
	return "%" + s + "%", escaped
}

// columnWanted applies the column: and -column: keyword filters.
func (q *Query) columnWanted(name string) bool {
	if want := q.Keywords["column"]; len(want) > 0 && !matchAny(name, want, q.caseSensitive) {
		return false
	}
	if block := q.Keywords["-column"]; matchAny(name, block, q.caseSensitive) {
		return false
	}
	return true
}

// dateSQL builds the clauses for date: and -date: keywords against the
// DATE and DATETIME typed columns.
func (q *Query) dateSQL(cols []Column, args *[]any) string {
	var datecols []Column
	for _, col := range cols {
		t := strings.ToUpper(col.Type)
		if (t == "DATE" || t == "DATETIME" || t == "TIMESTAMP") && q.columnWanted(col.Name) {
			datecols = append(datecols, col)
		}
	}

	var result []string
	for _, key := range []string{"date", "-date"} {
		var alts []string
		for _, value := range q.Keywords[key] {
			if len(datecols) == 0 {
				return "1 = 0"
			}
			if sql := dateClause(value, datecols, args); sql != "" {
				alts = append(alts, sql)
			}
		}
		if len(alts) == 0 {
			continue
		}
		sql := "(" + strings.Join(alts, " OR ") + ")"
		if strings.HasPrefix(key, "-") {
			sql = "NOT " + sql
		}
		result = append(result, sql)
	}
	return strings.Join(result, " AND ")
}

// dateClause renders one date: value, either a single (possibly partial)
// date matched with STRFTIME or a ".."-delimited range matched with
// comparisons against the range bounds.
func dateClause(value string, datecols []Column, args *[]any) string {
	if !strings.Contains(value, "..") {
		format, rendered, ok := partialDate(value)
		if !ok {
			return ""
		}
		var parts []string
		for _, col := range datecols {
			expr := fmt.Sprintf("STRFTIME('%s', %s)", format, grammar.Quote(col.Name))
			if !col.NotNull {
				expr = "COALESCE(" + expr + ", '')"
			}
			parts = append(parts, expr+" = ?")
			*args = append(*args, rendered)
		}
		return parenJoin(parts, " OR ")
	}

	bounds := strings.SplitN(value, "..", 2)
	var parts []string
	for i, b := range bounds {
		if b == "" {
			continue
		}
		d, ok := boundDate(b, i == 1)
		if !ok {
			continue
		}
		op := ">="
		if i == 1 {
			op = "<="
		}
		var colParts []string
		for _, col := range datecols {
			expr := grammar.Quote(col.Name)
			if !col.NotNull {
				expr = "COALESCE(" + expr + ", '')"
			}
			colParts = append(colParts, fmt.Sprintf("%s %s ?", expr, op))
			*args = append(*args, d.Format("2006-01-02"))
		}
		parts = append(parts, parenJoin(colParts, " OR "))
	}
	return strings.Join(parts, " AND ")
}

// partialDate parses YYYY, YYYY-MM or YYYY-MM-DD into a STRFTIME format
// and the value to compare against.
func partialDate(value string) (format, rendered string, ok bool) {
	fields := strings.SplitN(value, "-", 3)
	formats := []string{"%Y", "%m", "%d"}
	for i, f := range fields {
		n, valid := atoiStrict(f)
		if !valid {
			if i == 0 {
				return "", "", false
			}
			break
		}
		if format != "" {
			format += "-"
			rendered += "-"
		}
		format += formats[i]
		if i == 0 {
			rendered += fmt.Sprintf("%04d", n)
		} else {
			rendered += fmt.Sprintf("%02d", n)
		}
	}
	return format, rendered, format != ""
}

// boundDate parses a range bound, filling missing month and day with the
// widest value for that end of the range.
func boundDate(value string, upper bool) (time.Time, bool) {
	fields := strings.SplitN(value, "-", 3)
	year, ok := atoiStrict(fields[0])
	if !ok {
		return time.Time{}, false
	}
	year = clamp(year, 1, 9999)

	month := 1
	if upper {
		month = 12
	}
	if len(fields) > 1 {
		if m, ok := atoiStrict(fields[1]); ok {
			month = clamp(m, 1, 12)
		}
	}
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := 1
	if upper {
		day = lastDay
	}
	if len(fields) > 2 {
		if d, ok := atoiStrict(fields[2]); ok {
			day = clamp(d, 1, lastDay)
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func atoiStrict(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func parenJoin(parts []string, glue string) string {
	s := strings.Join(parts, glue)
	if len(parts) > 1 {
		s = "(" + s + ")"
	}
	return s
}
