package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/GoCodeAlone/sqlitekit/dataio"
	"github.com/GoCodeAlone/sqlitekit/schema"
	"github.com/GoCodeAlone/sqlitekit/search"
)

func TestSearchQueriesAcrossTables(t *testing.T) {
	conn := memoryDB(t)
	ctx := context.Background()
	if _, err := conn.Exec(`
CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, email TEXT);
INSERT INTO people (name, email) VALUES ('carla', 'carla@example.com'), ('domingo', NULL);
CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
INSERT INTO notes (body) VALUES ('wrote to carla about the invoice');
`); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	s, err := schema.Load(ctx, conn)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}

	q := search.Parse("carla", false)
	specs, err := searchQueries(ctx, conn, s, q, -1, 0)
	if err != nil {
		t.Fatalf("searchQueries: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("specs = %d", len(specs))
	}
	var buf bytes.Buffer
	opts := dataio.ExportOptions{Format: dataio.FormatCSV, Limit: -1}
	if err := dataio.NewExporter(conn, testLogger()).ExportQueries(ctx, &buf, specs, opts); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "carla@example.com") {
		t.Errorf("people match missing:\n%s", out)
	}
	if !strings.Contains(out, "wrote to carla") {
		t.Errorf("notes match missing:\n%s", out)
	}
	if strings.Contains(out, "domingo") {
		t.Errorf("non-matching row exported:\n%s", out)
	}
}

func TestSearchQueriesTableKeyword(t *testing.T) {
	conn := memoryDB(t)
	ctx := context.Background()
	if _, err := conn.Exec(`
CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
`); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	s, err := schema.Load(ctx, conn)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	q := search.Parse("carla table:people", false)
	specs, err := searchQueries(ctx, conn, s, q, -1, 0)
	if err != nil {
		t.Fatalf("searchQueries: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "people" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestSearchQueriesLimit(t *testing.T) {
	conn := memoryDB(t)
	ctx := context.Background()
	if _, err := conn.Exec("CREATE TABLE t (name TEXT)"); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	s, err := schema.Load(ctx, conn)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	q := search.Parse("x", false)
	specs, err := searchQueries(ctx, conn, s, q, 10, 5)
	if err != nil {
		t.Fatalf("searchQueries: %v", err)
	}
	if !strings.HasSuffix(specs[0].Query, "LIMIT 10 OFFSET 5") {
		t.Errorf("query = %q", specs[0].Query)
	}
}
