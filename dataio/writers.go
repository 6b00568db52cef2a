package dataio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/sqlitekit/grammar"
)

// csvWriter emits a header row per entity. With several entities in one
// file each section starts with the entity name on its own line.
type csvWriter struct {
	w     *csv.Writer
	multi bool
	cols  []string
	first bool
}

func (c *csvWriter) begin(ent Entity) error {
	c.cols = columnNames(ent)
	if c.multi {
		if !c.first {
			c.first = true
		} else {
			if err := c.w.Write([]string{}); err != nil {
				return err
			}
		}
		if err := c.w.Write([]string{ent.Name}); err != nil {
			return err
		}
	}
	return c.w.Write(c.cols)
}

func (c *csvWriter) write(row []any) error {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = displayString(v)
	}
	return c.w.Write(fields)
}

func (c *csvWriter) endEntity() error { return nil }

func (c *csvWriter) close() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonWriter renders a single entity as an array of row objects and
// several entities as an object keyed by entity name. A jq expression,
// when given, post-processes the assembled value.
type jsonWriter struct {
	out   io.Writer
	multi bool
	query *gojq.Code
	cols  []string

	combined map[string]any
	current  []any
	name     string
}

func newJSONWriter(w io.Writer, jq string, multi bool) (*jsonWriter, error) {
	jw := &jsonWriter{out: w, multi: multi}
	if multi {
		jw.combined = map[string]any{}
	}
	if jq != "" {
		parsed, err := gojq.Parse(jq)
		if err != nil {
			return nil, fmt.Errorf("invalid jq expression %q: %w", jq, err)
		}
		code, err := gojq.Compile(parsed)
		if err != nil {
			return nil, fmt.Errorf("compile jq expression %q: %w", jq, err)
		}
		jw.query = code
	}
	return jw, nil
}

func (j *jsonWriter) begin(ent Entity) error {
	j.cols = columnNames(ent)
	j.current = []any{}
	j.name = ent.Name
	return nil
}

func (j *jsonWriter) write(row []any) error {
	obj := make(map[string]any, len(row))
	for i, v := range row {
		obj[j.cols[i]] = jsonValue(v)
	}
	j.current = append(j.current, obj)
	return nil
}

func (j *jsonWriter) endEntity() error {
	if j.multi {
		j.combined[j.name] = j.current
	}
	return nil
}

func (j *jsonWriter) close() error {
	var value any = j.current
	if j.multi {
		value = j.combined
	}
	if j.query != nil {
		// Normalize through JSON so gojq sees only the types it accepts.
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal for jq: %w", err)
		}
		var normalized any
		if err := json.Unmarshal(raw, &normalized); err != nil {
			return fmt.Errorf("unmarshal for jq: %w", err)
		}
		iter := j.query.Run(normalized)
		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return fmt.Errorf("jq: %w", err)
			}
			results = append(results, v)
		}
		if len(results) == 1 {
			value = results[0]
		} else {
			value = results
		}
	}
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// yamlWriter mirrors jsonWriter's single/combined shapes in YAML.
type yamlWriter struct {
	out   io.Writer
	multi bool
	cols  []string

	combined map[string]any
	current  []any
	name     string
}

func newYAMLWriter(w io.Writer, multi bool) *yamlWriter {
	yw := &yamlWriter{out: w, multi: multi}
	if multi {
		yw.combined = map[string]any{}
	}
	return yw
}

func (y *yamlWriter) begin(ent Entity) error {
	y.cols = columnNames(ent)
	y.current = []any{}
	y.name = ent.Name
	return nil
}

func (y *yamlWriter) write(row []any) error {
	obj := make(map[string]any, len(row))
	for i, v := range row {
		obj[y.cols[i]] = jsonValue(v)
	}
	y.current = append(y.current, obj)
	return nil
}

func (y *yamlWriter) endEntity() error {
	if y.multi {
		y.combined[y.name] = y.current
	}
	return nil
}

func (y *yamlWriter) close() error {
	enc := yaml.NewEncoder(y.out)
	defer enc.Close()
	if y.multi {
		return enc.Encode(y.combined)
	}
	return enc.Encode(y.current)
}

// sqlWriter emits each entity's CREATE statement followed by INSERTs.
type sqlWriter struct {
	w    io.Writer
	ent  Entity
	cols string
}

func (s *sqlWriter) begin(ent Entity) error {
	s.ent = ent
	quoted := make([]string, len(ent.Columns))
	for i, c := range ent.Columns {
		quoted[i] = grammar.Quote(c.Name)
	}
	s.cols = strings.Join(quoted, ", ")
	if ent.CreateSQL != "" {
		if _, err := fmt.Fprintf(s.w, "%s;\n\n", strings.TrimSuffix(strings.TrimSpace(ent.CreateSQL), ";")); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlWriter) write(row []any) error {
	vals := make([]string, len(row))
	for i, v := range row {
		vals[i] = sqlLiteral(v)
	}
	_, err := fmt.Fprintf(s.w, "INSERT INTO %s (%s) VALUES (%s);\n",
		grammar.Quote(s.ent.Name), s.cols, strings.Join(vals, ", "))
	return err
}

func (s *sqlWriter) endEntity() error {
	_, err := fmt.Fprintln(s.w)
	return err
}

func (s *sqlWriter) close() error { return nil }

// sqlLiteral renders a scanned value as an SQL literal.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return blobLiteral(x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func blobLiteral(b []byte) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.WriteString("X'")
	for _, c := range b {
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	sb.WriteString("'")
	return sb.String()
}

// textWriter renders an aligned plain-text table per entity. Rows are
// buffered to compute the column widths.
type textWriter struct {
	w    io.Writer
	cols []string
	rows [][]string
	name string
}

func (t *textWriter) begin(ent Entity) error {
	t.cols = columnNames(ent)
	t.rows = nil
	t.name = ent.Name
	return nil
}

func (t *textWriter) write(row []any) error {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = displayString(v)
	}
	t.rows = append(t.rows, fields)
	return nil
}

func (t *textWriter) endEntity() error {
	widths := make([]int, len(t.cols))
	for i, c := range t.cols {
		widths[i] = len(c)
	}
	for _, row := range t.rows {
		for i, f := range row {
			if i < len(widths) && len(f) > widths[i] {
				widths[i] = len(f)
			}
		}
	}
	if _, err := fmt.Fprintf(t.w, "%s\n", t.name); err != nil {
		return err
	}
	line := func(fields []string) error {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = fmt.Sprintf("%-*s", widths[i], f)
		}
		_, err := fmt.Fprintln(t.w, strings.TrimRight(strings.Join(parts, "  "), " "))
		return err
	}
	if err := line(t.cols); err != nil {
		return err
	}
	seps := make([]string, len(t.cols))
	for i := range seps {
		seps[i] = strings.Repeat("-", widths[i])
	}
	if err := line(seps); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := line(row); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(t.w)
	return err
}

func (t *textWriter) close() error { return nil }
