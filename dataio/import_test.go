package dataio

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func importOpts() ImportOptions {
	return ImportOptions{RowHeader: true, Limit: -1}
}

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]string {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("table_info: %v", err)
	}
	defer rows.Close()
	cols := map[string]string{}
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols[name] = typ
	}
	return cols
}

func TestImportCSVCreatesTable(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "people.csv", "id,name,score\n1,ann,1.5\n2,bob,2\n3,cid,\n")
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, importOpts())
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Table != "people" || !res.Created || res.Rows != 3 {
		t.Fatalf("result = %+v", res)
	}
	cols := tableColumns(t, conn, "people")
	want := map[string]string{"id": "INTEGER", "name": "TEXT", "score": "REAL"}
	for name, typ := range want {
		if cols[name] != typ {
			t.Errorf("column %s = %q, want %q", name, cols[name], typ)
		}
	}
	var name string
	if err := conn.QueryRow("SELECT name FROM people WHERE id = 2").Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "bob" {
		t.Errorf("name = %q", name)
	}
}

func TestImportCSVNoHeader(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "raw.csv", "1,ann\n2,bob\n")
	opts := ImportOptions{Limit: -1}
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	cols := tableColumns(t, conn, "raw")
	if _, ok := cols["col1"]; !ok {
		t.Errorf("cols = %v", cols)
	}
	if _, ok := cols["col2"]; !ok {
		t.Errorf("cols = %v", cols)
	}
}

func TestImportIntoExistingTable(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "colors.csv", "id,name\n7,blue\n")
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, importOpts())
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Created {
		t.Error("table reported as created")
	}
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM colors").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("rows after import = %d", n)
	}
}

func TestImportAddPK(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "notes.csv", "text\nfirst\nsecond\n")
	opts := importOpts()
	opts.AddPK = "id"
	if _, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	var id int
	var text string
	if err := conn.QueryRow("SELECT id, text FROM notes ORDER BY id LIMIT 1").Scan(&id, &text); err != nil {
		t.Fatalf("select: %v", err)
	}
	if id != 1 || text != "first" {
		t.Errorf("row = %d %q", id, text)
	}
}

func TestImportColumnSubset(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "people.csv", "id,name,score\n1,ann,1.5\n")
	opts := importOpts()
	opts.Columns = []string{"name"}
	if _, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	cols := tableColumns(t, conn, "people")
	if len(cols) != 1 || cols["name"] != "TEXT" {
		t.Errorf("cols = %v", cols)
	}
}

func TestImportNoEmpty(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "gaps.csv", "a,b\n1,x\n,\n2,y\n")
	opts := importOpts()
	opts.NoEmpty = true
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestImportOffsetLimit(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "seq.csv", "n\n1\n2\n3\n4\n5\n")
	opts := importOpts()
	opts.Offset = 1
	opts.Limit = 2
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	var minN, maxN int
	if err := conn.QueryRow("SELECT MIN(n), MAX(n) FROM seq").Scan(&minN, &maxN); err != nil {
		t.Fatalf("select: %v", err)
	}
	if minN != 2 || maxN != 3 {
		t.Errorf("range = %d..%d", minN, maxN)
	}
}

func TestImportFilter(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "people.csv", "id,name\n1,ann\n2,\n3,cid\n")
	opts := importOpts()
	opts.Filter = `row.name != ""`
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestImportFailureReleasesConnection(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "nums.csv", "a\n1\n2\nx\n")
	opts := importOpts()
	opts.BatchSize = 1
	opts.Filter = `int(row.a) < 100`
	if _, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts); err == nil {
		t.Fatal("expected filter error on the non-numeric row")
	}
	// The single connection must be usable again after the failed import.
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM nums`).Scan(&n); err != nil {
		t.Fatalf("query after failed import: %v", err)
	}
	if n != 2 {
		t.Errorf("committed rows = %d, want 2", n)
	}
}

func TestImportFilterNotBool(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "people.csv", "id,name\n1,ann\n")
	opts := importOpts()
	opts.Filter = `row.name + "x"`
	if _, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts); err == nil {
		t.Error("expected error for non-boolean filter")
	}
}

func TestImportJSON(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "pets.json",
		`[{"name": "rex", "age": 4}, {"name": "tom", "age": 2, "tags": ["a", "b"]}]`)
	opts := ImportOptions{Limit: -1}
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	var tags string
	if err := conn.QueryRow("SELECT tags FROM pets WHERE name = 'tom'").Scan(&tags); err != nil {
		t.Fatalf("select: %v", err)
	}
	// Nested values arrive as JSON text.
	if tags != `["a","b"]` {
		t.Errorf("tags = %q", tags)
	}
}

func TestImportYAML(t *testing.T) {
	conn := openTestDB(t)
	path := writeTempFile(t, "hosts.yaml", "- name: alpha\n  port: 8080\n- name: beta\n  port: 9090\n")
	opts := ImportOptions{Limit: -1}
	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("rows = %d", res.Rows)
	}
	cols := tableColumns(t, conn, "hosts")
	if cols["port"] != "INTEGER" || cols["name"] != "TEXT" {
		t.Errorf("cols = %v", cols)
	}
}

func TestImportXLSX(t *testing.T) {
	conn := openTestDB(t)
	f := excelize.NewFile()
	rows := [][]any{{"id", "name"}, {1, "ann"}, {2, "bob"}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("sheet row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.Close()

	res, err := NewImporter(conn, nil).ImportFile(context.Background(), path, importOpts())
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Table != "book" || res.Rows != 2 {
		t.Fatalf("result = %+v", res)
	}
	cols := tableColumns(t, conn, "book")
	if cols["id"] != "INTEGER" {
		t.Errorf("cols = %v", cols)
	}
}
