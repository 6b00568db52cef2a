package grammar

import "testing"

func TestParseScript(t *testing.T) {
	script := `
-- exported schema
PRAGMA foreign_keys=OFF;
BEGIN TRANSACTION;
CREATE TABLE folders (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE notes (
  id INTEGER PRIMARY KEY,
  folder_id INTEGER REFERENCES folders (id),
  body TEXT
);
CREATE INDEX idx_notes_folder ON notes (folder_id);
CREATE TRIGGER trg_notes_touch AFTER UPDATE ON notes BEGIN
  UPDATE notes SET body = NEW.body WHERE id = NEW.id;
END;
CREATE VIEW v_notes AS SELECT id, body FROM notes;
COMMIT;
`
	stmts, err := ParseScript(script)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 5 {
		t.Fatalf("got %d statements, want 5", len(stmts))
	}
	want := []string{CategoryTable, CategoryTable, CategoryIndex, CategoryTrigger, CategoryView}
	for i, s := range stmts {
		if s.Category() != want[i] {
			t.Errorf("statement %d: category %q, want %q", i, s.Category(), want[i])
		}
	}
	if name := stmts[1].EntityName(); name != "notes" {
		t.Errorf("second statement name %q, want notes", name)
	}
}

func TestParseScript_NoTrailingSemicolon(t *testing.T) {
	stmts, err := ParseScript(`CREATE TABLE t (id INTEGER)`)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(stmts) != 1 || stmts[0].EntityName() != "t" {
		t.Fatalf("got %v", stmts)
	}
}

func TestParseScript_BadStatement(t *testing.T) {
	_, err := ParseScript(`CREATE TABLE ok (id INTEGER); CREATE TABLE broken (`)
	if err == nil {
		t.Fatal("expected error for truncated statement")
	}
}

func TestTableForeignKeys(t *testing.T) {
	tab, err := ParseTable(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers (id),
		product_id INTEGER,
		FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE CASCADE
	)`)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	fks := tab.ForeignKeys()
	if len(fks) != 2 {
		t.Fatalf("got %d foreign keys, want 2", len(fks))
	}
	if fks[0].Table != "customers" || fks[1].Table != "products" {
		t.Errorf("targets %q, %q", fks[0].Table, fks[1].Table)
	}
}
