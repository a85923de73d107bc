package formatter

import (
	"fmt"
	"io"
)

// TextFormatter formats a plan as a single SQL script with -- +up and -- +down sections
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the plan as an SQL script
func (f *TextFormatter) Format(p *Plan) error {
	f.writeHeader(p)
	if p.isEmpty() {
		return nil
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "-- +up")
	_, _ = fmt.Fprintln(f.writer, p.Migration.UpScript())
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "-- +down")
	_, err := fmt.Fprintln(f.writer, p.Migration.DownScript())
	return err
}

// writeHeader writes the comment block naming the dialect, the counts and every warning
func (f *TextFormatter) writeHeader(p *Plan) {
	_, _ = fmt.Fprintf(f.writer, "-- schemadiff migration for %s\n", p.Dialect)
	if p.isEmpty() {
		_, _ = fmt.Fprintln(f.writer, "-- no changes")
		return
	}

	_, _ = fmt.Fprintf(f.writer, "-- %s\n", countLine(p))
	if p.breaking() {
		_, _ = fmt.Fprintln(f.writer, "-- contains breaking changes")
	}
	for _, w := range p.warnings() {
		_, _ = fmt.Fprintf(f.writer, "-- warning: %s\n", describeWarning(w))
	}
}
