package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestPrintPragmas(t *testing.T) {
	conn := memoryDB(t)
	var buf bytes.Buffer
	err := printPragmas(context.Background(), conn, &buf, []string{"journal_mode", "user_version"}, false)
	if err != nil {
		t.Fatalf("printPragmas: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "journal_mode = ") || !strings.Contains(out, "user_version = 0") {
		t.Errorf("output = %q", out)
	}
}

func TestPrintPragmasSQL(t *testing.T) {
	conn := memoryDB(t)
	var buf bytes.Buffer
	err := printPragmas(context.Background(), conn, &buf, []string{"user_version", "journal_mode"}, true)
	if err != nil {
		t.Fatalf("printPragmas: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "PRAGMA user_version = 0;") {
		t.Errorf("output = %q", out)
	}
	// Text values come out quoted.
	if !strings.Contains(out, "PRAGMA journal_mode = '") {
		t.Errorf("output = %q", out)
	}
}

func TestPrintPragmasRejectsBadName(t *testing.T) {
	conn := memoryDB(t)
	var buf bytes.Buffer
	err := printPragmas(context.Background(), conn, &buf, []string{"x; DROP TABLE t"}, false)
	if err == nil {
		t.Error("unsafe pragma name accepted")
	}
}

func TestListPragmas(t *testing.T) {
	conn := memoryDB(t)
	names := listPragmas(context.Background(), conn)
	if len(names) == 0 {
		t.Fatal("no pragmas listed")
	}
	found := false
	for _, n := range names {
		if n == "page_size" {
			found = true
		}
	}
	if !found {
		t.Errorf("page_size missing from %v", names)
	}
}

func TestSQLPragmaValue(t *testing.T) {
	cases := map[string]string{
		"0":      "0",
		"4096":   "4096",
		"-1":     "-1",
		"wal":    "'wal'",
		"":       "''",
		"o'hara": "'o''hara'",
	}
	for in, want := range cases {
		if got := sqlPragmaValue(in); got != want {
			t.Errorf("sqlPragmaValue(%q) = %q, want %q", in, got, want)
		}
	}
}
