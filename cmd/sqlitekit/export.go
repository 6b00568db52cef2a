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
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Output file, or directory with --files")
	format := fs.String("format", "", "Export format (csv, json, yaml, html, sql, txt, xlsx)")
	files := fs.Bool("files", false, "Write one file per entity into the output directory")
	include := fs.String("include", "", "Comma-separated tables or views to export (default: all tables)")
	skip := fs.String("skip", "", "Comma-separated entities to leave out")
	related := fs.Bool("related", false, "Also export entities related to the selected ones")
	limit := fs.Int64("limit", -1, "Maximum rows per entity (-1 for all)")
	offset := fs.Int64("offset", 0, "Rows to skip per entity")
	totalLimit := fs.Int64("total-limit", 0, "Stop after this many rows across all entities (0 for all)")
	reverse := fs.Bool("reverse", false, "Emit table rows in reverse order")
	jq := fs.String("jq", "", "Post-process json output with a jq expression")
	title := fs.String("title", "", "Document title for html output")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit export [options] <database>\n\nExport schema and data. The sql format with no entity selection writes a\nfull dump loadable with 'sqlitekit execute'.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("database path is required")
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

	f, err := resolveFormat(*format, *out, cfg.DefaultFormat)
	if err != nil {
		return err
	}
	if *files && *totalLimit > 0 {
		return fmt.Errorf("--total-limit applies to combined output, not --files")
	}
	opts := dataio.ExportOptions{
		Format:     f,
		Limit:      *limit,
		Offset:     *offset,
		TotalLimit: *totalLimit,
		Reverse:    *reverse,
		JQ:         *jq,
		Title:      *title,
	}

	ex := dataio.NewExporter(conn, logger)

	// A plain sql export of the whole database is a dump, with pragmas
	// and a wrapping transaction.
	if f == dataio.FormatSQL && !*files && *include == "" && *skip == "" {
		w, closeOut, err := outputWriter(*out)
		if err != nil {
			return err
		}
		defer closeOut()
		if err := ex.Dump(ctx, w, s, opts); err != nil {
			return err
		}
		return closeOut()
	}

	objects, err := selectEntities(s, commaList(*include), commaList(*skip), *related)
	if err != nil {
		return err
	}
	entities, err := loadEntities(ctx, conn, objects)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return fmt.Errorf("nothing to export")
	}

	if *files {
		dir := *out
		if dir == "" {
			dir = "."
		}
		paths, err := ex.ExportFiles(ctx, dir, entities, opts)
		if err != nil {
			return err
		}
		logger.Info("export finished", "files", len(paths), "dir", dir)
		return nil
	}

	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := ex.Export(ctx, w, entities, opts); err != nil {
		return err
	}
	return closeOut()
}

// selectEntities picks the objects to export: all tables by default, the
// named tables and views with --include, minus --skip, plus their
// related entities with --related.
func selectEntities(s *schema.Schema, include, skip []string, related bool) ([]*schema.Object, error) {
	var selected []*schema.Object
	if len(include) == 0 {
		selected = s.Category(grammar.CategoryTable)
	} else {
		for _, name := range include {
			obj := s.Get(grammar.CategoryTable, name)
			if obj == nil {
				obj = s.Get(grammar.CategoryView, name)
			}
			if obj == nil {
				return nil, fmt.Errorf("no such table or view: %q", name)
			}
			selected = append(selected, obj)
		}
	}

	if related {
		seen := map[string]bool{}
		for _, obj := range selected {
			seen[strings.ToLower(obj.Name)] = true
		}
		for _, obj := range selected {
			rel := s.Related(obj.Category, obj.Name, false)
			for _, cat := range []string{grammar.CategoryTable, grammar.CategoryView} {
				for _, r := range rel[cat] {
					if !seen[strings.ToLower(r.Name)] {
						seen[strings.ToLower(r.Name)] = true
						selected = append(selected, r)
					}
				}
			}
		}
	}

	if len(skip) > 0 {
		drop := map[string]bool{}
		for _, name := range skip {
			drop[strings.ToLower(name)] = true
		}
		kept := selected[:0]
		for _, obj := range selected {
			if !drop[strings.ToLower(obj.Name)] {
				kept = append(kept, obj)
			}
		}
		selected = kept
	}
	return selected, nil
}

func loadEntities(ctx context.Context, conn *sql.DB, objects []*schema.Object) ([]dataio.Entity, error) {
	entities := make([]dataio.Entity, 0, len(objects))
	for _, obj := range objects {
		cols, err := sqlitedb.Columns(ctx, conn, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", obj.Name, err)
		}
		entities = append(entities, dataio.Entity{
			Name:      obj.Name,
			Category:  obj.Category,
			CreateSQL: obj.SQL,
			Columns:   cols,
		})
	}
	return entities, nil
}
