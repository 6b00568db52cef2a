package dataio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// rowSource yields import rows. Columns is available before the first
// Next call; Next returns io.EOF when the input is exhausted.
type rowSource interface {
	Columns() ([]string, error)
	Next() ([]any, error)
}

// csvSource streams records from a CSV reader. Without a header row the
// columns are named col1..colN after the first record.
type csvSource struct {
	r         *csv.Reader
	rowHeader bool
	cols      []string
	pending   []any
}

func newCSVSource(r io.Reader, rowHeader bool) *csvSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &csvSource{r: cr, rowHeader: rowHeader}
}

func (c *csvSource) Columns() ([]string, error) {
	if c.cols != nil {
		return c.cols, nil
	}
	record, err := c.r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, err
	}
	if c.rowHeader {
		c.cols = record
		return c.cols, nil
	}
	c.cols = genericColumns(len(record))
	c.pending = stringsToValues(record)
	return c.cols, nil
}

func (c *csvSource) Next() ([]any, error) {
	if c.pending != nil {
		row := c.pending
		c.pending = nil
		return row, nil
	}
	record, err := c.r.Read()
	if err != nil {
		return nil, err
	}
	return stringsToValues(record), nil
}

// sliceSource serves rows parsed up front, used by the json, yaml and
// xlsx readers.
type sliceSource struct {
	cols []string
	rows [][]any
	pos  int
}

func (s *sliceSource) Columns() ([]string, error) { return s.cols, nil }

func (s *sliceSource) Next() ([]any, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func newJSONSource(path string) (rowSource, io.Closer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	src, err := sourceFromMaps(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil, nil
}

func newYAMLSource(path string) (rowSource, io.Closer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	src, err := sourceFromMaps(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil, nil
}

// sourceFromMaps shapes a list of objects into rows over the union of
// their keys, in sorted order for a stable layout.
func sourceFromMaps(docs []map[string]any) (rowSource, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no rows in input")
	}
	keySet := map[string]bool{}
	for _, doc := range docs {
		for k := range doc {
			keySet[k] = true
		}
	}
	cols := make([]string, 0, len(keySet))
	for k := range keySet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	rows := make([][]any, len(docs))
	for i, doc := range docs {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = flattenValue(doc[c])
		}
		rows[i] = row
	}
	return &sliceSource{cols: cols, rows: rows}, nil
}

// flattenValue makes nested structures storable by re-encoding them as
// JSON text.
func flattenValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

func newXLSXSource(path string, rowHeader bool) (rowSource, io.Closer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%s: no worksheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty worksheet", path)
	}

	var cols []string
	if rowHeader {
		cols = records[0]
		records = records[1:]
	} else {
		width := 0
		for _, r := range records {
			if len(r) > width {
				width = len(r)
			}
		}
		cols = genericColumns(width)
	}
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = stringsToValues(r)
	}
	return &sliceSource{cols: cols, rows: rows}, nil, nil
}

func genericColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i+1)
	}
	return cols
}

func stringsToValues(record []string) []any {
	vals := make([]any, len(record))
	for i, f := range record {
		vals[i] = f
	}
	return vals
}
