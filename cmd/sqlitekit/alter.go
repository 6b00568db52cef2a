package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/sqlitekit/alter"
	"github.com/GoCodeAlone/sqlitekit/config"
	sqlitedb "github.com/GoCodeAlone/sqlitekit/db"
	"github.com/GoCodeAlone/sqlitekit/grammar"
)

func runAlter(args []string) error {
	fs := flag.NewFlagSet("alter", flag.ExitOnError)
	g := addGlobalFlags(fs)
	dryRun := fs.Bool("dry-run", false, "Print the generated SQL instead of applying it")
	noBackup := fs.Bool("no-backup", false, "Skip the pre-flight backup even when configured")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sqlitekit alter [options] <database> <action> <args...>

Actions:
  rename-table  <old> <new>
  rename-column <table> <old> <new>
  add-column    <table> <definition>   (e.g. "price REAL NOT NULL DEFAULT 0")
  drop-column   <table> <column>

Old SQLite versions and entangled schemas are handled by rebuilding the
table and everything depending on it inside a savepoint.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("database path and an action are required")
	}

	cfg, logger, err := setup(g)
	if err != nil {
		return err
	}
	dbPath := fs.Arg(0)
	conn, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	planner, err := alter.NewPlanner(ctx, conn)
	if err != nil {
		return err
	}

	action := fs.Arg(1)
	rest := fs.Args()[2:]
	plan, err := planAction(planner, action, rest)
	if err != nil {
		return err
	}
	if plan == nil {
		fmt.Println("nothing to do")
		return nil
	}

	if *dryRun {
		fmt.Print(alter.ScriptText(plan))
		return nil
	}

	if cfg.BackupOnAlter && !*noBackup {
		dst, err := sqlitedb.Backup(ctx, conn, dbPath, backupPath(cfg, dbPath))
		if err != nil {
			return fmt.Errorf("pre-flight backup: %w", err)
		}
		logger.Info("backup written", "path", dst)
	}

	if err := alter.NewExecutor(logger).Apply(ctx, conn, plan); err != nil {
		return err
	}
	fmt.Printf("%s: done\n", action)
	return nil
}

func planAction(planner *alter.Planner, action string, args []string) (*alter.Plan, error) {
	switch action {
	case "rename-table":
		if len(args) != 2 {
			return nil, fmt.Errorf("rename-table needs <old> <new>")
		}
		return planner.PlanRenameTable(args[0], args[1])
	case "rename-column":
		if len(args) != 3 {
			return nil, fmt.Errorf("rename-column needs <table> <old> <new>")
		}
		return planner.PlanRenameColumn(args[0], args[1], args[2])
	case "add-column":
		if len(args) != 2 {
			return nil, fmt.Errorf("add-column needs <table> <definition>")
		}
		col, err := parseColumnDef(args[1])
		if err != nil {
			return nil, err
		}
		return planner.PlanAddColumn(args[0], col)
	case "drop-column":
		if len(args) != 2 {
			return nil, fmt.Errorf("drop-column needs <table> <column>")
		}
		return planner.PlanDropColumn(args[0], args[1])
	default:
		return nil, fmt.Errorf("unknown alter action: %q", action)
	}
}

// parseColumnDef parses a bare column definition by wrapping it in a
// throwaway CREATE TABLE.
func parseColumnDef(def string) (*grammar.Column, error) {
	table, err := grammar.ParseTable("CREATE TABLE t (" + def + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid column definition %q: %w", def, err)
	}
	if len(table.Columns) != 1 {
		return nil, fmt.Errorf("invalid column definition %q", def)
	}
	return &table.Columns[0], nil
}

// backupPath places the backup in the configured directory, or next to
// the database when none is set.
func backupPath(cfg *config.Config, dbPath string) string {
	if cfg.BackupDirectory == "" {
		return ""
	}
	base := filepath.Base(dbPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s.backup-%s%s", stem, uuid.NewString()[:8], ext)
	return filepath.Join(cfg.BackupDirectory, name)
}
