package grammar

import (
	"strings"
	"testing"
)

func TestParseTable_ColumnsAndConstraints(t *testing.T) {
	sql := `CREATE TABLE "order items" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
  sku VARCHAR(30) UNIQUE,
  qty INTEGER NOT NULL DEFAULT 1 CHECK (qty > 0),
  price REAL DEFAULT (0.0),
  note TEXT COLLATE NOCASE,
  UNIQUE (order_id, sku),
  FOREIGN KEY (sku) REFERENCES products (sku) ON UPDATE SET NULL
)`
	tbl, err := ParseTable(sql)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if tbl.Name != "order items" {
		t.Errorf("name = %q, want %q", tbl.Name, "order items")
	}
	if len(tbl.Columns) != 6 {
		t.Fatalf("got %d columns, want 6", len(tbl.Columns))
	}
	id := tbl.Column("id")
	if id == nil || !id.PrimaryKey || !id.AutoIncrement {
		t.Errorf("id should be PRIMARY KEY AUTOINCREMENT, got %+v", id)
	}
	oid := tbl.Column("order_id")
	if oid == nil || !oid.NotNull || oid.FK == nil {
		t.Fatalf("order_id should be NOT NULL with FK, got %+v", oid)
	}
	if oid.FK.Table != "orders" || oid.FK.OnDelete != "CASCADE" {
		t.Errorf("order_id FK = %+v", oid.FK)
	}
	if got := tbl.Column("qty").Check; got != "qty > 0" {
		t.Errorf("qty check = %q", got)
	}
	if got := tbl.Column("price").Default; got != "(0.0)" {
		t.Errorf("price default = %q", got)
	}
	if got := tbl.Column("note").Collate; got != "NOCASE" {
		t.Errorf("note collate = %q", got)
	}
	if len(tbl.Constraints) != 2 {
		t.Fatalf("got %d table constraints, want 2", len(tbl.Constraints))
	}
	if tbl.Constraints[0].Kind != ConstraintUnique || len(tbl.Constraints[0].Key) != 2 {
		t.Errorf("first constraint = %+v", tbl.Constraints[0])
	}
	fk := tbl.Constraints[1]
	if fk.Kind != ConstraintForeignKey || fk.FK.Table != "products" || fk.FK.OnUpdate != "SET NULL" {
		t.Errorf("foreign key constraint = %+v", fk)
	}
}

func TestParseTable_Options(t *testing.T) {
	tbl, err := ParseTable(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT) WITHOUT ROWID`)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if !tbl.WithoutRowid {
		t.Error("WithoutRowid not set")
	}

	tbl, err = ParseTable(`CREATE TABLE IF NOT EXISTS s (id INTEGER) STRICT`)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if !tbl.Strict || !tbl.IfNotExists {
		t.Errorf("Strict=%v IfNotExists=%v", tbl.Strict, tbl.IfNotExists)
	}
}

func TestParseTable_QuotedIdentifiers(t *testing.T) {
	tbl, err := ParseTable("CREATE TABLE [my table] (`group` TEXT, \"order\" INTEGER)")
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if tbl.Name != "my table" {
		t.Errorf("name = %q", tbl.Name)
	}
	if tbl.Column("group") == nil || tbl.Column("order") == nil {
		t.Errorf("columns = %v", tbl.ColumnNames())
	}
}

func TestParseTable_Generated(t *testing.T) {
	tbl, err := ParseTable(`CREATE TABLE m (w REAL, h REAL, area REAL GENERATED ALWAYS AS (w * h) STORED)`)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	area := tbl.Column("area")
	if area.Generated != "w * h" || area.GeneratedKind != "STORED" {
		t.Errorf("area = %+v", area)
	}
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email COLLATE NOCASE DESC, lower(name)) WHERE email IS NOT NULL`)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if !idx.Unique || idx.Name != "idx_users_email" || idx.Table != "users" {
		t.Errorf("index = %+v", idx)
	}
	if len(idx.Columns) != 2 {
		t.Fatalf("got %d columns, want 2", len(idx.Columns))
	}
	if idx.Columns[0].Expr != "email" || idx.Columns[0].Collate != "NOCASE" || !idx.Columns[0].Desc {
		t.Errorf("first column = %+v", idx.Columns[0])
	}
	if idx.Columns[1].Expr != "lower(name)" {
		t.Errorf("second column = %+v", idx.Columns[1])
	}
	if idx.Where != "email IS NOT NULL" {
		t.Errorf("where = %q", idx.Where)
	}
}

func TestParseTrigger(t *testing.T) {
	sql := `CREATE TRIGGER trg_users_audit AFTER UPDATE OF name, email ON users FOR EACH ROW
WHEN NEW.name <> OLD.name
BEGIN
  INSERT INTO audit_log (tbl, changed) VALUES ('users', NEW.id);
  UPDATE counters SET n = n + 1 WHERE tbl = 'users';
END`
	tr, err := ParseTrigger(sql)
	if err != nil {
		t.Fatalf("ParseTrigger: %v", err)
	}
	if tr.Timing != TriggerAfter || tr.Event != "UPDATE" || tr.Table != "users" {
		t.Errorf("trigger = %+v", tr)
	}
	if len(tr.UpdateOf) != 2 || tr.UpdateOf[0] != "name" || tr.UpdateOf[1] != "email" {
		t.Errorf("update of = %v", tr.UpdateOf)
	}
	if !tr.ForEachRow {
		t.Error("ForEachRow not set")
	}
	if tr.When != "NEW.name <> OLD.name" {
		t.Errorf("when = %q", tr.When)
	}
	if !strings.Contains(tr.Body, "INSERT INTO audit_log") || !strings.Contains(tr.Body, "UPDATE counters") {
		t.Errorf("body = %q", tr.Body)
	}
}

func TestParseTrigger_CaseInBody(t *testing.T) {
	sql := `CREATE TRIGGER trg AFTER INSERT ON t BEGIN
  UPDATE t SET kind = CASE WHEN NEW.v > 0 THEN 'pos' ELSE 'neg' END WHERE id = NEW.id;
END`
	tr, err := ParseTrigger(sql)
	if err != nil {
		t.Fatalf("ParseTrigger: %v", err)
	}
	if !strings.Contains(tr.Body, "ELSE 'neg' END") {
		t.Errorf("CASE END swallowed the trigger END, body = %q", tr.Body)
	}
}

func TestParseView(t *testing.T) {
	v, err := ParseView(`CREATE VIEW v_active (uid, uname) AS SELECT id, name FROM users WHERE active = 1`)
	if err != nil {
		t.Fatalf("ParseView: %v", err)
	}
	if v.Name != "v_active" || len(v.Columns) != 2 {
		t.Errorf("view = %+v", v)
	}
	if !strings.HasPrefix(v.Select, "SELECT id, name") {
		t.Errorf("select = %q", v.Select)
	}
}

func TestParseStatement_Dispatch(t *testing.T) {
	cases := []struct {
		sql      string
		category string
	}{
		{"CREATE TABLE t (id INTEGER)", CategoryTable},
		{"CREATE INDEX i ON t (id)", CategoryIndex},
		{"CREATE TRIGGER g AFTER DELETE ON t BEGIN SELECT 1; END", CategoryTrigger},
		{"CREATE VIEW v AS SELECT * FROM t", CategoryView},
	}
	for _, c := range cases {
		stmt, err := ParseStatement(c.sql)
		if err != nil {
			t.Fatalf("ParseStatement(%q): %v", c.sql, err)
		}
		if stmt.Category() != c.category {
			t.Errorf("category for %q = %s, want %s", c.sql, stmt.Category(), c.category)
		}
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	sqls := []string{
		`CREATE TABLE orders (
  id INTEGER PRIMARY KEY,
  customer TEXT NOT NULL,
  total REAL DEFAULT 0,
  UNIQUE (customer, id)
)`,
		`CREATE UNIQUE INDEX idx ON orders (customer DESC) WHERE total > 0`,
		`CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100`,
	}
	for _, sql := range sqls {
		stmt, err := ParseStatement(sql)
		if err != nil {
			t.Fatalf("parse %q: %v", sql, err)
		}
		out, err := Generate(stmt)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		stmt2, err := ParseStatement(out)
		if err != nil {
			t.Fatalf("reparse %q: %v", out, err)
		}
		out2, err := Generate(stmt2)
		if err != nil {
			t.Fatalf("regenerate: %v", err)
		}
		if out != out2 {
			t.Errorf("generate not stable:\nfirst:  %s\nsecond: %s", out, out2)
		}
	}
}

func TestQuote(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"users", "users"},
		{"order", `"order"`},
		{"my table", `"my table"`},
		{"2col", `"2col"`},
		{`quo"te`, `"quo""te"`},
	}
	for _, c := range cases {
		if got := Quote(c.in); got != c.want {
			t.Errorf("Quote(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := Unquote("[my table]"); got != "my table" {
		t.Errorf("Unquote = %q", got)
	}
	if got := Unquote("`a``b`"); got != "a`b" {
		t.Errorf("Unquote backtick = %q", got)
	}
}
