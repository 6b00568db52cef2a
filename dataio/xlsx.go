package dataio

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxWriter renders one worksheet per entity.
type xlsxWriter struct {
	out   io.Writer
	file  *excelize.File
	sheet string
	row   int
	first bool
}

func newXLSXWriter(w io.Writer) *xlsxWriter {
	return &xlsxWriter{out: w, file: excelize.NewFile(), first: true}
}

func (x *xlsxWriter) begin(ent Entity) error {
	name := sheetSafe(ent.Name)
	if x.first {
		// Rename the default sheet instead of leaving an empty one behind.
		if err := x.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("name sheet %s: %w", name, err)
		}
		x.first = false
	} else {
		if _, err := x.file.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}
	x.sheet = name
	x.row = 1
	header := make([]any, len(ent.Columns))
	for i, c := range ent.Columns {
		header[i] = c.Name
	}
	return x.writeCells(header)
}

func (x *xlsxWriter) write(row []any) error {
	cells := make([]any, len(row))
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			cells[i] = string(b)
		} else {
			cells[i] = v
		}
	}
	return x.writeCells(cells)
}

func (x *xlsxWriter) writeCells(cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.file.SetSheetRow(x.sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", x.row, err)
	}
	x.row++
	return nil
}

func (x *xlsxWriter) endEntity() error { return nil }

func (x *xlsxWriter) close() error {
	defer x.file.Close()
	if err := x.file.Write(x.out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetSafe fits a name into Excel's 31-character sheet name limit and
// strips the characters Excel refuses.
func sheetSafe(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			r = '_'
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Sheet1"
	}
	return string(out)
}
