package dataio

import (
	"fmt"
	"html/template"
	"io"
)

var htmlPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #999; padding: 0.25em 0.6em; text-align: left; }
th { background: #eee; }
caption { font-weight: bold; text-align: left; padding-bottom: 0.4em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Sections}}<table>
<caption>{{.Name}}</caption>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}</body>
</html>
`))

type htmlSection struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// htmlWriter buffers sections and renders one document on close.
type htmlWriter struct {
	out      io.Writer
	title    string
	sections []htmlSection
	current  *htmlSection
}

func newHTMLWriter(w io.Writer, title string) *htmlWriter {
	if title == "" {
		title = "Export"
	}
	return &htmlWriter{out: w, title: title}
}

func (h *htmlWriter) begin(ent Entity) error {
	h.sections = append(h.sections, htmlSection{Name: ent.Name, Columns: columnNames(ent)})
	h.current = &h.sections[len(h.sections)-1]
	return nil
}

func (h *htmlWriter) write(row []any) error {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = displayString(v)
	}
	h.current.Rows = append(h.current.Rows, fields)
	return nil
}

func (h *htmlWriter) endEntity() error { return nil }

func (h *htmlWriter) close() error {
	data := struct {
		Title    string
		Sections []htmlSection
	}{h.title, h.sections}
	if err := htmlPage.Execute(h.out, data); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
