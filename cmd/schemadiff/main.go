package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tordrt/schemadiff"
	"github.com/tordrt/schemadiff/internal/config"
	"github.com/tordrt/schemadiff/internal/dialect"
)

var (
	fromSource      string
	toSource        string
	dialectName     string
	configPath      string
	outputFile      string
	outputDir       string
	tables          string
	excludeTables   string
	schemaName      string
	format          string
	noIfExists      bool
	cascade         bool
	noComments      bool
	caseInsensitive bool
	defaultSchema   string
	verbose         bool

	snapshotURL    string
	snapshotOutput string
)

var rootCmd = &cobra.Command{
	Use:   "schemadiff",
	Short: "Generate up and down migrations between two database schemas",
	Long: `schemadiff compares two schema snapshots, taken from PostgreSQL, MySQL or SQLite
databases or from snapshot files, and generates the SQL migration between them: an "up"
script that turns --from into --to and a "down" script that reverts it.

Triggers are matched by schema and name. A PostgreSQL trigger name reused on several
tables is reported when the schema is captured; rename it per table or narrow the
capture with --tables.`,
	RunE: run,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a database schema as a snapshot file",
	Long: `snapshot captures the schema of a live database as YAML, which can later be used as --from or --to.
Capture fails if a PostgreSQL trigger name is reused on several tables.`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.Flags().StringVar(&fromSource, "from", "", "Current schema: database URL or snapshot file")
	rootCmd.Flags().StringVar(&toSource, "to", "", "Desired schema: database URL or snapshot file")
	rootCmd.Flags().StringVar(&dialectName, "dialect", "", "Target dialect: postgresql, mysql, sqlite or mssql (default: from --to URL, else postgresql)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file with migration and diff options")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for up.sql, down.sql and an overview")
	rootCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	rootCmd.Flags().StringVar(&excludeTables, "exclude-tables", "", "Tables to leave out (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	rootCmd.Flags().StringVarP(&format, "format", "f", schemadiff.FormatText, "Output format: text or markdown (default: text)")
	rootCmd.Flags().BoolVar(&noIfExists, "no-if-exists", false, "Omit IF EXISTS / IF NOT EXISTS guards")
	rootCmd.Flags().BoolVar(&cascade, "cascade", false, "Append CASCADE to drops where the dialect supports it")
	rootCmd.Flags().BoolVar(&noComments, "no-comments", false, "Skip table and column comment statements")
	rootCmd.Flags().BoolVar(&caseInsensitive, "case-insensitive", false, "Match object names case-insensitively")
	rootCmd.Flags().StringVar(&defaultSchema, "default-schema", "", "Schema name treated as equal to an empty schema")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")

	snapshotCmd.Flags().StringVar(&snapshotURL, "db-url", "", "Database URL (postgres://, mysql:// or sqlite://)")
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "Output file (default: stdout)")
	snapshotCmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	snapshotCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	snapshotCmd.Flags().StringVar(&excludeTables, "exclude-tables", "", "Tables to leave out (comma-separated, optional)")

	rootCmd.AddCommand(snapshotCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()

	if fromSource == "" || toSource == "" {
		return fmt.Errorf("both --from and --to must be specified")
	}
	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	if format != schemadiff.FormatText && format != schemadiff.FormatMarkdown {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
	}

	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(cmd.Flags(), cfg)

	d, err := cfg.ResolveDialect(defaultDialect(toSource))
	if err != nil {
		return err
	}

	opts := &schemadiff.Options{
		Tables:        cfg.Tables,
		ExcludeTables: cfg.ExcludeTables,
		SchemaName:    cfg.Schema,
	}

	logger.Debug("loading snapshot", "side", "from", "source", sourceLabel(fromSource))
	before, err := schemadiff.LoadSnapshot(ctx, fromSource, opts)
	if err != nil {
		return fmt.Errorf("failed to load --from schema: %w", err)
	}

	logger.Debug("loading snapshot", "side", "to", "source", sourceLabel(toSource))
	after, err := schemadiff.LoadSnapshot(ctx, toSource, opts)
	if err != nil {
		return fmt.Errorf("failed to load --to schema: %w", err)
	}

	plan, err := schemadiff.Plan(before, after, &schemadiff.PlanOptions{
		Compare:   cfg.Diff,
		Migration: cfg.MigrationFor(d),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	for _, w := range plan.Migration.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s (%s): %s\n", w.Object, w.Direction, w.Message)
	}

	// Multi-file output
	if outputDir != "" {
		if err := schemadiff.FormatPlan(plan, &schemadiff.OutputOptions{OutputDir: outputDir, Format: format}); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		logger.Info("wrote migration", "dir", outputDir, "steps", len(plan.Migration.Steps))
		return nil
	}

	// Single-file output
	var writer io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	if err := schemadiff.FormatPlan(plan, &schemadiff.OutputOptions{Writer: writer, Format: format}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if snapshotURL == "" {
		return fmt.Errorf("--db-url must be specified")
	}

	snap, err := schemadiff.ExtractSnapshot(ctx, snapshotURL, &schemadiff.Options{
		Tables:        parseTableList(tables),
		ExcludeTables: parseTableList(excludeTables),
		SchemaName:    schemaName,
	})
	if err != nil {
		return err
	}

	var writer io.Writer = os.Stdout
	if snapshotOutput != "" {
		f, err := os.Create(snapshotOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	return schemadiff.WriteSnapshot(writer, snap)
}

// applyFlags copies explicitly set flags over the config file values
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("dialect") {
		cfg.Dialect = dialectName
	}
	if flags.Changed("schema") {
		cfg.Schema = schemaName
	}
	if flags.Changed("tables") {
		cfg.Tables = parseTableList(tables)
	}
	if flags.Changed("exclude-tables") {
		cfg.ExcludeTables = parseTableList(excludeTables)
	}
	if flags.Changed("no-if-exists") {
		useIfExists := !noIfExists
		cfg.Migration.UseIfExists = &useIfExists
	}
	if flags.Changed("cascade") {
		useCascade := cascade
		cfg.Migration.UseCascade = &useCascade
	}
	if flags.Changed("no-comments") {
		includeComments := !noComments
		cfg.Migration.IncludeComments = &includeComments
	}
	if flags.Changed("case-insensitive") {
		cfg.Diff.CaseInsensitive = caseInsensitive
	}
	if flags.Changed("default-schema") {
		cfg.Diff.DefaultSchema = defaultSchema
	}
}

// defaultDialect is the dialect of the --to database, or PostgreSQL for snapshot files
func defaultDialect(to string) dialect.Dialect {
	d, err := schemadiff.DialectFromURL(to)
	if err != nil {
		return dialect.PostgreSQL
	}
	return d
}

// sourceLabel hides credentials when logging a source
func sourceLabel(source string) string {
	scheme, _, ok := strings.Cut(source, "://")
	if !ok || scheme == "file" {
		return source
	}
	return scheme + "://..."
}

func parseTableList(tablesStr string) []string {
	if tablesStr == "" {
		return nil
	}
	tableList := strings.Split(tablesStr, ",")
	for i, t := range tableList {
		tableList[i] = strings.TrimSpace(t)
	}
	return tableList
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
