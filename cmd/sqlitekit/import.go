package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/sqlitekit/dataio"
	sqlitedb "github.com/GoCodeAlone/sqlitekit/db"
)

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	g := addGlobalFlags(fs)
	table := fs.String("table-name", "", "Target table (default: input file base name)")
	rowHeader := fs.Bool("row-header", false, "Treat the first row as column names")
	columns := fs.String("columns", "", "Comma-separated columns to import (default: all)")
	addPK := fs.String("add-pk", "", "Add an auto-increment primary key with this name when creating the table")
	noEmpty := fs.Bool("no-empty", false, "Skip rows whose every value is empty")
	filter := fs.String("filter", "", `Row filter expression over "row" and "i", e.g. 'row.age != ""'`)
	limit := fs.Int64("limit", -1, "Maximum rows to import (-1 for all)")
	offset := fs.Int64("offset", 0, "Input rows to skip first")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit import [options] <infile> <database>\n\nImport a csv, json, yaml or xlsx file into a table. A missing table is\ncreated with column types guessed from the data.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("input file and database path are required")
	}

	cfg, logger, err := setup(g)
	if err != nil {
		return err
	}
	conn, err := sqlitedb.Open(fs.Arg(1))
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := dataio.ImportOptions{
		TableName: *table,
		RowHeader: *rowHeader,
		Columns:   commaList(*columns),
		AddPK:     *addPK,
		NoEmpty:   *noEmpty,
		Filter:    *filter,
		Limit:     *limit,
		Offset:    *offset,
		BatchSize: cfg.RowBatchSize,
	}
	res, err := dataio.NewImporter(conn, logger).ImportFile(context.Background(), fs.Arg(0), opts)
	if err != nil {
		return err
	}
	verb := "into"
	if res.Created {
		verb = "into new table"
	}
	fmt.Printf("imported %d rows %s %s (%d skipped)\n", res.Rows, verb, res.Table, res.Skipped)
	return nil
}
