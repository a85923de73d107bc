package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names written by MultiFileFormatter
const (
	UpFileName   = "up.sql"
	DownFileName = "down.sql"
)

// MultiFileFormatter writes a plan to a directory: up.sql, down.sql and an overview
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown", for the overview
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the plan to the output directory. An empty plan still writes empty
// scripts so the directory always has the same shape.
func (f *MultiFileFormatter) Format(p *Plan) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var up, down string
	if !p.isEmpty() {
		up = p.Migration.UpScript() + "\n"
		down = p.Migration.DownScript() + "\n"
	}
	if err := f.writeFile(UpFileName, func(w io.Writer) error {
		_, err := io.WriteString(w, up)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", UpFileName, err)
	}
	if err := f.writeFile(DownFileName, func(w io.Writer) error {
		_, err := io.WriteString(w, down)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", DownFileName, err)
	}

	if err := f.writeFile("_overview"+f.getFileExtension(), func(w io.Writer) error {
		return f.writeOverview(w, p)
	}); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	return nil
}

// writeOverview writes the plan summary without the scripts
func (f *MultiFileFormatter) writeOverview(w io.Writer, p *Plan) error {
	if f.OutputFormat == formatMarkdown {
		md := &MarkdownFormatter{writer: w}
		if err := md.Format(p); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "Scripts: `%s` applies the migration, `%s` reverts it.\n", UpFileName, DownFileName)
		return err
	}

	NewTextFormatter(w).writeHeader(p)
	_, err := fmt.Fprintf(w, "-- apply with %s, revert with %s\n", UpFileName, DownFileName)
	return err
}

func (f *MultiFileFormatter) writeFile(name string, write func(io.Writer) error) (err error) {
	file, err := os.Create(filepath.Join(f.OutputDir, name))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(file)
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
