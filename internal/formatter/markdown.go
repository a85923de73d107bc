package formatter

import (
	"fmt"
	"io"
)

// MarkdownFormatter formats a plan as a review document
type MarkdownFormatter struct {
	writer io.Writer
	// sql controls whether the up and down scripts are embedded
	sql bool
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w, sql: true}
}

// Format writes the plan in markdown format
func (f *MarkdownFormatter) Format(p *Plan) error {
	_, _ = fmt.Fprintf(f.writer, "# Migration plan (%s)\n\n", p.Dialect)

	if p.isEmpty() {
		_, err := fmt.Fprintln(f.writer, "No changes.")
		return err
	}

	summary := countLine(p) + "."
	if p.breaking() {
		summary += " **Contains breaking changes.**"
	}
	_, _ = fmt.Fprintf(f.writer, "%s\n\n", summary)

	f.formatChanges(p)
	f.formatWarnings(p)

	if f.sql {
		f.formatScript("Up", p.Migration.UpScript())
		f.formatScript("Down", p.Migration.DownScript())
	}
	return nil
}

// formatChanges writes the per-kind change table, leaving out kinds without changes
func (f *MarkdownFormatter) formatChanges(p *Plan) {
	if p.Diff == nil || p.Diff.IsEmpty() {
		return
	}

	_, _ = fmt.Fprintln(f.writer, "## Changes")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "| Kind | Added | Removed | Modified |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|---|")
	for _, k := range p.Diff.Summary() {
		if k.Total() == 0 {
			continue
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %d | %d | %d |\n", k.Kind, k.Added, k.Removed, k.Modified)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatWarnings(p *Plan) {
	warnings := p.warnings()
	if len(warnings) == 0 {
		return
	}

	_, _ = fmt.Fprintln(f.writer, "## Warnings")
	_, _ = fmt.Fprintln(f.writer)
	for _, w := range warnings {
		_, _ = fmt.Fprintf(f.writer, "- %s\n", describeWarning(w))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatScript(title, script string) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", title)
	_, _ = fmt.Fprintln(f.writer, "```sql")
	_, _ = fmt.Fprintln(f.writer, script)
	_, _ = fmt.Fprintln(f.writer, "```")
	_, _ = fmt.Fprintln(f.writer)
}
