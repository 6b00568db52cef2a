package search

import (
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestParseWordsAndKeywords(t *testing.T) {
	q := Parse(`hello "two words" -excluded table:users -column:secret date:2002..2003`, false)

	if want := []string{"hello", "two words"}; strings.Join(q.Words, "|") != strings.Join(want, "|") {
		t.Errorf("Words = %v, want %v", q.Words, want)
	}
	if got := q.Keywords["table"]; len(got) != 1 || got[0] != "users" {
		t.Errorf("table keyword = %v", got)
	}
	if got := q.Keywords["-column"]; len(got) != 1 || got[0] != "secret" {
		t.Errorf("-column keyword = %v", got)
	}
	if got := q.Keywords["date"]; len(got) != 1 || got[0] != "2002..2003" {
		t.Errorf("date keyword = %v", got)
	}
}

func TestParseQuotedKeywordValue(t *testing.T) {
	q := Parse(`table:"table name"`, false)
	if got := q.Keywords["table"]; len(got) != 1 || got[0] != "table name" {
		t.Errorf("table keyword = %v", got)
	}
}

func TestParseMalformedInput(t *testing.T) {
	// Unbalanced brackets and stray operators must not break parsing.
	q := Parse(`in(anyword OR `, false)
	if len(q.Words) == 0 {
		t.Errorf("Words = %v, want some", q.Words)
	}
	if q.Empty() {
		t.Error("query should not be empty")
	}
}

func TestWhereSQLSingleWord(t *testing.T) {
	q := Parse("hello", false)
	cols := []Column{{Name: "a"}, {Name: "b", NotNull: true}}
	where, args := q.WhereSQL(cols)

	if !strings.Contains(where, "COALESCE(a, '') LIKE ?") {
		t.Errorf("nullable column not coalesced: %q", where)
	}
	if !strings.Contains(where, "b LIKE ?") || strings.Contains(where, "COALESCE(b") {
		t.Errorf("not-null column handled wrong: %q", where)
	}
	if len(args) != 2 || args[0] != "%hello%" {
		t.Errorf("args = %v", args)
	}
}

func TestWhereSQLWildcardAndEscape(t *testing.T) {
	q := Parse(`wild*card under_score`, false)
	where, args := q.WhereSQL([]Column{{Name: "a", NotNull: true}})

	if args[0] != "%wild%card%" {
		t.Errorf("wildcard arg = %v", args[0])
	}
	if args[1] != `%under\_score%` {
		t.Errorf("escaped arg = %v", args[1])
	}
	if !strings.Contains(where, `ESCAPE '\'`) {
		t.Errorf("escape clause missing: %q", where)
	}
}

func TestWhereSQLPhraseKeepsWildcardLiteral(t *testing.T) {
	q := Parse(`"star*lit"`, false)
	_, args := q.WhereSQL([]Column{{Name: "a", NotNull: true}})
	if args[0] != "%star*lit%" {
		t.Errorf("phrase arg = %v", args[0])
	}
}

func TestWhereSQLCaseSensitiveUsesGlob(t *testing.T) {
	q := Parse("Hello", true)
	where, args := q.WhereSQL([]Column{{Name: "a", NotNull: true}})
	if !strings.Contains(where, "a GLOB ?") {
		t.Errorf("where = %q", where)
	}
	if args[0] != "*Hello*" {
		t.Errorf("arg = %v", args[0])
	}
}

func TestWhereSQLColumnFilter(t *testing.T) {
	q := Parse("word column:title", false)
	where, args := q.WhereSQL([]Column{{Name: "title", NotNull: true}, {Name: "body", NotNull: true}})
	if strings.Contains(where, "body") {
		t.Errorf("filtered column still searched: %q", where)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestWhereSQLNoMatchingColumns(t *testing.T) {
	q := Parse("word column:nosuch", false)
	where, _ := q.WhereSQL([]Column{{Name: "a", NotNull: true}})
	if !strings.Contains(where, "1 = 0") {
		t.Errorf("where = %q", where)
	}
}

func TestWhereSQLNegation(t *testing.T) {
	q := Parse("-bad", false)
	where, _ := q.WhereSQL([]Column{{Name: "a", NotNull: true}})
	if !strings.HasPrefix(where, "NOT ") {
		t.Errorf("where = %q", where)
	}
}

func TestWhereSQLOrGroups(t *testing.T) {
	q := Parse("(one two) OR three", false)
	where, args := q.WhereSQL([]Column{{Name: "a", NotNull: true}})
	if !strings.Contains(where, " OR ") || !strings.Contains(where, " AND ") {
		t.Errorf("where = %q", where)
	}
	if len(args) != 3 {
		t.Errorf("args = %v", args)
	}
}

func TestDateSingle(t *testing.T) {
	q := Parse("date:2002-12", false)
	where, args := q.WhereSQL([]Column{
		{Name: "name", NotNull: true},
		{Name: "created", Type: "DATETIME", NotNull: true},
	})
	if !strings.Contains(where, "STRFTIME('%Y-%m', created) = ?") {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 || args[0] != "2002-12" {
		t.Errorf("args = %v", args)
	}
}

func TestDateRange(t *testing.T) {
	q := Parse("date:2002-12-24..2003", false)
	where, args := q.WhereSQL([]Column{{Name: "created", Type: "DATE", NotNull: true}})
	if !strings.Contains(where, "created >= ?") || !strings.Contains(where, "created <= ?") {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[0] != "2002-12-24" || args[1] != "2003-12-31" {
		t.Errorf("args = %v", args)
	}
}

func TestDateOpenRange(t *testing.T) {
	q := Parse("date:..2002-02", false)
	_, args := q.WhereSQL([]Column{{Name: "created", Type: "DATE", NotNull: true}})
	if len(args) != 1 || args[0] != "2002-02-28" {
		t.Errorf("args = %v", args)
	}
}

func TestDateWithoutDateColumns(t *testing.T) {
	q := Parse("date:2002", false)
	where, _ := q.WhereSQL([]Column{{Name: "name", NotNull: true}})
	if where != "1 = 0" {
		t.Errorf("where = %q", where)
	}
}

func TestMatchName(t *testing.T) {
	q := Parse("table:us* -table:userlog", false)
	if !q.MatchName("table", "users") {
		t.Error("users should match")
	}
	if q.MatchName("table", "userlog") {
		t.Error("userlog should be excluded")
	}
	if q.MatchName("table", "posts") {
		t.Error("posts should not match")
	}
}

func TestMatchWords(t *testing.T) {
	q := Parse(`create -temp`, false)
	if !q.MatchWords("CREATE TABLE users (id INTEGER)") {
		t.Error("should match create")
	}
	if q.MatchWords("CREATE TEMP TABLE scratch (x)") {
		t.Error("should reject temp")
	}
	or := Parse("alpha OR beta", false)
	if !or.MatchWords("only beta here") {
		t.Error("OR should match either side")
	}
}

func TestSelectSQLRunsAgainstDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT NOT NULL, body TEXT, created DATE NOT NULL);
INSERT INTO notes VALUES
  (1, 'shopping list', 'milk and bread', '2003-01-15'),
  (2, 'ideas', 'build a search parser', '2002-12-24'),
  (3, 'done', NULL, '2001-06-01');
`); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	cols := []Column{
		{Name: "id", Type: "INTEGER", NotNull: true},
		{Name: "title", Type: "TEXT", NotNull: true},
		{Name: "body", Type: "TEXT"},
		{Name: "created", Type: "DATE", NotNull: true},
	}

	cases := []struct {
		query string
		want  []int
	}{
		{"milk", []int{1}},
		{"list OR parser", []int{1, 2}},
		{"-milk", []int{2, 3}},
		{`"search parser"`, []int{2}},
		{"date:2002-12-24..2003", []int{1, 2}},
		{"ideas column:title", []int{2}},
	}
	for _, tc := range cases {
		q := Parse(tc.query, false)
		stmt, args := q.SelectSQL("notes", cols)
		rows, err := db.Query(stmt, args...)
		if err != nil {
			t.Fatalf("query %q (%s): %v", tc.query, stmt, err)
		}
		var ids []int
		for rows.Next() {
			var id int
			var title, created string
			var body sql.NullString
			if err := rows.Scan(&id, &title, &body, &created); err != nil {
				t.Fatalf("scan: %v", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if len(ids) != len(tc.want) {
			t.Errorf("query %q matched %v, want %v (sql %s, args %v)", tc.query, ids, tc.want, stmt, args)
			continue
		}
		for i := range ids {
			if ids[i] != tc.want[i] {
				t.Errorf("query %q matched %v, want %v", tc.query, ids, tc.want)
				break
			}
		}
	}
}
