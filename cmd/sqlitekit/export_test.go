package main

import (
	"context"
	"testing"

	"github.com/GoCodeAlone/sqlitekit/schema"
)

func exportFixture(t *testing.T) *schema.Schema {
	t.Helper()
	conn := memoryDB(t)
	if _, err := conn.Exec(`
CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE books (id INTEGER PRIMARY KEY, author_id INTEGER REFERENCES authors (id));
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE VIEW v_books AS SELECT * FROM books;
`); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	s, err := schema.Load(context.Background(), conn)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return s
}

func names(objs []*schema.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}

func TestSelectEntitiesDefault(t *testing.T) {
	s := exportFixture(t)
	got, err := selectEntities(s, nil, nil, false)
	if err != nil {
		t.Fatalf("selectEntities: %v", err)
	}
	// All tables in schema order, no views.
	want := []string{"authors", "books", "tags"}
	if len(got) != len(want) {
		t.Fatalf("got %v", names(got))
	}
	for i, w := range want {
		if got[i].Name != w {
			t.Errorf("got %v, want %v", names(got), want)
			break
		}
	}
}

func TestSelectEntitiesInclude(t *testing.T) {
	s := exportFixture(t)
	got, err := selectEntities(s, []string{"v_books"}, nil, false)
	if err != nil {
		t.Fatalf("selectEntities: %v", err)
	}
	if len(got) != 1 || got[0].Name != "v_books" {
		t.Errorf("got %v", names(got))
	}
	if _, err := selectEntities(s, []string{"missing"}, nil, false); err == nil {
		t.Error("unknown entity accepted")
	}
}

func TestSelectEntitiesSkip(t *testing.T) {
	s := exportFixture(t)
	got, err := selectEntities(s, nil, []string{"BOOKS"}, false)
	if err != nil {
		t.Fatalf("selectEntities: %v", err)
	}
	for _, o := range got {
		if o.Name == "books" {
			t.Errorf("books not skipped: %v", names(got))
		}
	}
}

func TestSelectEntitiesRelated(t *testing.T) {
	s := exportFixture(t)
	got, err := selectEntities(s, []string{"books"}, nil, true)
	if err != nil {
		t.Fatalf("selectEntities: %v", err)
	}
	seen := map[string]bool{}
	for _, o := range got {
		seen[o.Name] = true
	}
	if !seen["books"] || !seen["authors"] {
		t.Errorf("related tables missing: %v", names(got))
	}
}
