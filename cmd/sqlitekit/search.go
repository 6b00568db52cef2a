package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/sqlitekit/dataio"
	sqlitedb "github.com/GoCodeAlone/sqlitekit/db"
	"github.com/GoCodeAlone/sqlitekit/grammar"
	"github.com/GoCodeAlone/sqlitekit/schema"
	"github.com/GoCodeAlone/sqlitekit/search"
)

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Write matches to this file instead of stdout")
	format := fs.String("format", "", "Output format (csv, json, yaml, html, sql, txt, xlsx)")
	caseSensitive := fs.Bool("case", false, "Case-sensitive matching (words switch from LIKE to GLOB)")
	limit := fs.Int64("limit", -1, "Maximum matching rows per entity (-1 for all)")
	offset := fs.Int64("offset", 0, "Matching rows to skip per entity")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit search [options] <database> <filter...>\n\nSearch data rows across all tables and views. Filters take words,\n\"quoted phrases\", -exclusions, OR, (grouping) and table:/view:/column:/\ndate: keywords.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("database path and a search filter are required")
	}

	cfg, logger, err := setup(g)
	if err != nil {
		return err
	}
	conn, err := openExisting(fs.Arg(0))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	s, err := schema.Load(ctx, conn)
	if err != nil {
		return err
	}

	filter := strings.Join(fs.Args()[1:], " ")
	q := search.Parse(filter, *caseSensitive || cfg.CaseSensitive)
	if q.Empty() {
		return fmt.Errorf("empty search filter %q", filter)
	}

	specs, err := searchQueries(ctx, conn, s, q, *limit, *offset)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no tables or views match the filter")
	}

	f, err := resolveFormat(*format, *out, cfg.DefaultFormat)
	if err != nil {
		return err
	}
	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()
	opts := dataio.ExportOptions{Format: f, Limit: -1, Title: "Search: " + filter}
	if err := dataio.NewExporter(conn, logger).ExportQueries(ctx, w, specs, opts); err != nil {
		return err
	}
	return closeOut()
}

// searchQueries builds one SELECT per table and view the query's keyword
// filters accept.
func searchQueries(ctx context.Context, conn *sql.DB, s *schema.Schema, q *search.Query, limit, offset int64) ([]dataio.QuerySpec, error) {
	var specs []dataio.QuerySpec
	for _, cat := range []string{grammar.CategoryTable, grammar.CategoryView} {
		for _, obj := range s.Category(cat) {
			if !q.MatchName(cat, obj.Name) {
				continue
			}
			cols, err := sqlitedb.Columns(ctx, conn, obj.Name)
			if err != nil {
				return nil, fmt.Errorf("describe %s: %w", obj.Name, err)
			}
			scols := make([]search.Column, len(cols))
			for i, c := range cols {
				scols[i] = search.Column{Name: c.Name, Type: c.Type, NotNull: c.NotNull}
			}
			stmt, args := q.SelectSQL(obj.Name, scols)
			if limit >= 0 || offset > 0 {
				l := limit
				if l < 0 {
					l = -1
				}
				stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", l, offset)
			}
			specs = append(specs, dataio.QuerySpec{Name: obj.Name, Query: stmt, Args: args})
		}
	}
	return specs, nil
}
