package main

import (
	"fmt"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"execute": runExecute,
	"export":  runExport,
	"import":  runImport,
	"parse":   runParse,
	"search":  runSearch,
	"stats":   runStats,
	"pragma":  runPragma,
	"alter":   runAlter,
}

func usage() {
	fmt.Fprintf(os.Stderr, `sqlitekit - SQLite toolbox (version %s)

Usage:
  sqlitekit <command> [options]

Commands:
  execute  Run SQL statements against a database and print or export results
  export   Export schema and data to csv, json, yaml, html, sql, txt or xlsx
  import   Import a csv, json, yaml or xlsx file into a table
  parse    Search schema entities and print their CREATE statements
  search   Search data rows across tables and views
  stats    Report row counts, sizes and pragma settings
  pragma   Print pragma values
  alter    Rename or drop tables and columns, rebuilding dependents

Run 'sqlitekit <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
