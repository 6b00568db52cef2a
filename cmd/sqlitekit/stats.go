package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoCodeAlone/sqlitekit/schema"
	"github.com/GoCodeAlone/sqlitekit/stats"
)

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	g := addGlobalFlags(fs)
	out := fs.String("o", "", "Write the report to this file instead of stdout")
	format := fs.String("format", "txt", "Report format (txt, json, yaml, html, sql)")
	diskUsage := fs.Bool("disk-usage", false, "Measure per-entity disk usage (scans the whole file)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sqlitekit stats [options] <database>\n\nReport row counts, page and byte sizes and pragma settings.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("database path is required")
	}

	_, logger, err := setup(g)
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
	report, err := stats.NewCollector(conn, logger).Collect(ctx, s, fs.Arg(0), *diskUsage)
	if err != nil {
		return err
	}

	w, closeOut, err := outputWriter(*out)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := stats.Render(w, report, *format); err != nil {
		return err
	}
	return closeOut()
}
