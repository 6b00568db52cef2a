package stats

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Render writes the report in the named format. Supported formats are
// txt, json, yaml, html and sql.
func Render(w io.Writer, r *Report, format string) error {
	switch format {
	case "txt", "":
		return renderText(w, r)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(r)
	case "html":
		return renderHTML(w, r)
	case "sql":
		return renderSQL(w, r)
	default:
		return fmt.Errorf("unsupported statistics format: %q", format)
	}
}

func renderText(w io.Writer, r *Report) error {
	if r.Path != "" {
		if _, err := fmt.Fprintf(w, "Database: %s\n", r.Path); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Size: %s (%d pages of %s, %s free)\n\n",
		humanize.IBytes(uint64(r.TotalBytes)),
		r.PageCount,
		humanize.IBytes(uint64(r.PageSize)),
		humanize.IBytes(uint64(r.FreeBytes)))
	if err != nil {
		return err
	}

	for _, t := range r.Tables {
		line := fmt.Sprintf("%s: %s rows", t.Name, humanize.Comma(t.Rows))
		if r.DiskUsage && t.Bytes > 0 {
			line += fmt.Sprintf(", %s in %d pages", humanize.IBytes(uint64(t.Bytes)), t.Pages)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, idx := range t.Indexes {
			line := "  index " + idx.Name
			if r.DiskUsage && idx.Bytes > 0 {
				line += fmt.Sprintf(": %s in %d pages", humanize.IBytes(uint64(idx.Bytes)), idx.Pages)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}

	if len(r.Pragmas) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		width := 0
		for _, p := range r.Pragmas {
			if len(p.Name) > width {
				width = len(p.Name)
			}
		}
		for _, p := range r.Pragmas {
			if _, err := fmt.Fprintf(w, "%-*s  %s\n", width, p.Name, p.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderSQL writes the schema statements preceded by the report as SQL
// comments, loadable back into sqlite as a schema-only script.
func renderSQL(w io.Writer, r *Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Statistics for %s\n", orUnnamed(r.Path))
	fmt.Fprintf(&sb, "-- Generated %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "-- Size %d bytes, %d pages of %d, %d pages free\n",
		r.TotalBytes, r.PageCount, r.PageSize, r.FreePages)
	for _, t := range r.Tables {
		fmt.Fprintf(&sb, "-- %s: %d rows", t.Name, t.Rows)
		if r.DiskUsage && t.Bytes > 0 {
			fmt.Fprintf(&sb, ", %d bytes", t.Bytes)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	for _, stmt := range r.SchemaSQL {
		sb.WriteString(strings.TrimSuffix(stmt, ";"))
		sb.WriteString(";\n\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

var statsPage = template.Must(template.New("stats").Funcs(template.FuncMap{
	"ibytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
	"comma":  humanize.Comma,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Statistics{{if .Path}}: {{.Path}}{{end}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #999; padding: 0.25em 0.6em; text-align: left; }
th { background: #eee; }
td.num { text-align: right; }
caption { font-weight: bold; text-align: left; padding-bottom: 0.4em; }
</style>
</head>
<body>
<h1>Statistics{{if .Path}}: {{.Path}}{{end}}</h1>
<p>{{ibytes .TotalBytes}} total, {{comma .PageCount}} pages of {{ibytes .PageSize}}, {{ibytes .FreeBytes}} free.</p>
<table>
<caption>Tables</caption>
<tr><th>Name</th><th>Rows</th>{{if .DiskUsage}}<th>Size</th><th>Pages</th>{{end}}</tr>
{{range .Tables}}<tr><td>{{.Name}}</td><td class="num">{{comma .Rows}}</td>{{if $.DiskUsage}}<td class="num">{{ibytes .Bytes}}</td><td class="num">{{comma .Pages}}</td>{{end}}</tr>
{{range .Indexes}}<tr><td>&nbsp;&nbsp;{{.Name}}</td><td></td>{{if $.DiskUsage}}<td class="num">{{ibytes .Bytes}}</td><td class="num">{{comma .Pages}}</td>{{end}}</tr>
{{end}}{{end}}</table>
{{if .Pragmas}}<table>
<caption>Pragmas</caption>
<tr><th>Name</th><th>Value</th></tr>
{{range .Pragmas}}<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
{{end}}</table>
{{end}}</body>
</html>
`))

func renderHTML(w io.Writer, r *Report) error {
	return statsPage.Execute(w, r)
}

func orUnnamed(path string) string {
	if path == "" {
		return "database"
	}
	return path
}
