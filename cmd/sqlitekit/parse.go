package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/schema"
	"github.com/GoCodeAlone/sqlitekit/search"
)

func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Write matching statements to this file instead of stdout")
	caseSensitive := fs.Bool("case", false, "Case-sensitive matching")
	fullSQL := fs.Bool("full", false, "Match against the full CREATE statement, not just entity names")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit parse [options] <database> [filter...]\n\nPrint the CREATE statements of schema entities matching the filter.\nFilters take words, \"quoted phrases\", -exclusions, OR, (grouping) and\ntable:/view: keywords; no filter prints the whole schema.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("database path is required")
	}

	cfg, _, err := setup(g)
	if err != nil {
		return err
	}
	conn, err := openExisting(fs.Arg(0))
	if err != nil {
		return err
	}
	defer conn.Close()

	s, err := schema.Load(context.Background(), conn)
	if err != nil {
		return err
	}

	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()

	filter := strings.Join(fs.Args()[1:], " ")
	q := search.Parse(filter, *caseSensitive || cfg.CaseSensitive)
	n, err := writeMatching(w, s, q, *fullSQL)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no schema entities match %q", filter)
	}
	return closeOut()
}

// writeMatching prints the CREATE SQL of every entity the query accepts
// and returns how many matched.
func writeMatching(w io.Writer, s *schema.Schema, q *search.Query, fullSQL bool) (int, error) {
	var n int
	for _, obj := range s.Objects {
		if !q.MatchName(obj.Category, obj.Name) {
			continue
		}
		text := obj.Name
		if fullSQL {
			text = obj.SQL
		}
		if !q.MatchWords(text) {
			continue
		}
		stmt := strings.TrimRight(strings.TrimSpace(obj.SQL), ";")
		if _, err := fmt.Fprintf(w, "%s;\n\n", stmt); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
