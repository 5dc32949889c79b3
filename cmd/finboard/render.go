package main

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/JonMunkholm/finboard/internal/core"
)

// markdownTable renders c as a GitHub-flavored markdown table.
func markdownTable(c core.RecordCollection) string {
	cols := c.Schema.Columns()
	if len(cols) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, cell := range cells {
			b.WriteString(" ")
			b.WriteString(escapeCell(cell))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(cols)
	b.WriteString("|")
	for range cols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for i := range c.Records {
		writeRow(c.Row(i))
	}
	return b.String()
}

func markdownList(values []string) string {
	var b strings.Builder
	for _, v := range values {
		if v == "" {
			v = "_(empty)_"
		} else {
			v = escapeCell(v)
		}
		b.WriteString("- " + v + "\n")
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer(`|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// renderMarkdown renders md for the terminal. style "auto" picks dark or
// light from the terminal background.
func renderMarkdown(md, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
