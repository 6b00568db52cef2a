package stats

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/GoCodeAlone/sqlitekit/schema"
)

func setup(t *testing.T) (*sql.DB, *schema.Schema) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`
CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);
CREATE INDEX idx_items_name ON items (name);
INSERT INTO items (name) VALUES ('a'), ('b'), ('c');
CREATE TABLE empty_one (id INTEGER);
`); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	s, err := schema.Load(context.Background(), conn)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return conn, s
}

func TestCollect(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "test.db", false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if r.PageSize <= 0 || r.PageCount <= 0 {
		t.Errorf("page geometry = %d x %d", r.PageCount, r.PageSize)
	}
	if r.TotalBytes != r.PageSize*r.PageCount {
		t.Errorf("total bytes = %d", r.TotalBytes)
	}
	if len(r.Tables) != 2 {
		t.Fatalf("tables = %+v", r.Tables)
	}
	if r.Tables[0].Name != "items" || r.Tables[0].Rows != 3 {
		t.Errorf("items = %+v", r.Tables[0])
	}
	if r.Tables[1].Rows != 0 {
		t.Errorf("empty_one = %+v", r.Tables[1])
	}
	if len(r.Tables[0].Indexes) != 1 || r.Tables[0].Indexes[0].Name != "idx_items_name" {
		t.Errorf("indexes = %+v", r.Tables[0].Indexes)
	}
	if len(r.Pragmas) == 0 {
		t.Error("pragma snapshot empty")
	}
	found := false
	for _, p := range r.Pragmas {
		if p.Name == "page_size" && p.Value != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("page_size missing from pragmas: %+v", r.Pragmas)
	}
	if len(r.SchemaSQL) != 3 {
		t.Errorf("schema statements = %v", r.SchemaSQL)
	}
}

func TestCollectDiskUsage(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "", true)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !r.DiskUsage {
		t.Error("DiskUsage flag not set")
	}
	// dbstat availability depends on the build; sizes must be consistent
	// either way.
	for _, tab := range r.Tables {
		if tab.Bytes < 0 || tab.Pages < 0 {
			t.Errorf("negative size for %s: %+v", tab.Name, tab)
		}
	}
}

func TestRenderText(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "test.db", false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, r, "txt"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Database: test.db", "items: 3 rows", "index idx_items_name", "journal_mode"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "", false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, r, "json"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Tables) != 2 || decoded.Tables[0].Rows != 3 {
		t.Errorf("decoded = %+v", decoded.Tables)
	}
}

func TestRenderSQL(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "test.db", false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, r, "sql"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "-- Statistics for test.db") {
		t.Errorf("header = %q", out[:40])
	}
	if !strings.Contains(out, "CREATE TABLE items") {
		t.Errorf("schema missing:\n%s", out)
	}

	// The statement body must load into a fresh database.
	fresh, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer fresh.Close()
	fresh.SetMaxOpenConns(1)
	if _, err := fresh.Exec(out); err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestRenderHTML(t *testing.T) {
	conn, s := setup(t)
	r, err := NewCollector(conn, nil).Collect(context.Background(), s, "", false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, r, "html"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<td>items</td>") || !strings.Contains(out, "journal_mode") {
		t.Errorf("html = %s", out)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if err := Render(&bytes.Buffer{}, &Report{}, "pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestAutoIndexTable(t *testing.T) {
	if tbl, ok := autoIndexTable("sqlite_autoindex_users_1"); !ok || tbl != "users" {
		t.Errorf("got %q %v", tbl, ok)
	}
	if _, ok := autoIndexTable("idx_users_name"); ok {
		t.Error("plain index treated as automatic")
	}
}
