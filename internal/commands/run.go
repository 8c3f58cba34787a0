package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/posprep/internal/config"
	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/export"
	"github.com/cleared-dev/posprep/internal/impute"
	"github.com/cleared-dev/posprep/internal/ingest"
	"github.com/cleared-dev/posprep/internal/pipeline"
	"github.com/cleared-dev/posprep/internal/runlog"
)

type runOptions struct {
	repoDir    string
	configPath string
	outDir     string
	format     string
	logLevel   string
	jsonLogs   bool
	all        bool
	dryRun     bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Ingest, normalize and impute transaction files",
		Long: `Runs each source through ingestion, normalization and imputation and
writes the cleaned dataset to the output directory.

With --all, every supported file in <repo>/import/ is processed and moved
to import/processed/ on success. A missing source is logged and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.all {
				return errors.New("no sources given (pass files or --all)")
			}
			absDir, err := filepath.Abs(opts.repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			opts.repoDir = absDir
			return runPrep(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.repoDir, "repo", ".", "project directory")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default <repo>/"+config.FileName+")")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "output directory (overrides config)")
	cmd.Flags().StringVar(&opts.format, "format", "", "output format: csv or xlsx (overrides config)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonLogs, "json", false, "emit JSON log lines")
	cmd.Flags().BoolVar(&opts.all, "all", false, "process every file in import/")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "run without writing output or logs")

	return cmd
}

type source struct {
	name string // file name, set for import/ sources
	path string
}

func runPrep(stdout, stderr io.Writer, opts runOptions, args []string) error {
	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(opts.repoDir, config.FileName)
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)

	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	logger, err := diag.NewLogger(stderr, cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}

	reg := ingest.DefaultRegistry()
	sources, err := collectSources(reg, opts, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(stdout, "No files to process.")
		return nil
	}

	outDir := cfg.Output.Dir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(opts.repoDir, outDir)
	}

	p := pipeline.New(reg, cfg.Options(), logger)
	runID := runlog.NewRunID()
	var entries []runlog.Entry
	failed := 0

	for _, src := range sources {
		entry := runlog.Entry{
			Timestamp: time.Now().UTC(),
			RunID:     runID,
			Source:    relPath(opts.repoDir, src.path),
			Status:    runlog.StatusFailed,
		}

		outPath, err := prepOne(p, src, outDir, format, opts.dryRun, &entry)
		entries = append(entries, entry)
		if err != nil {
			failed++
			if errors.Is(err, ingest.ErrSourceNotFound) {
				logger.Warn("skipping source", diag.F("source", src.path), diag.F("error", err.Error()))
				continue
			}
			if werr := writeRunLog(opts, entries); werr != nil {
				logger.Warn("writing run log failed", diag.F("error", werr.Error()))
			}
			return fmt.Errorf("preparing %s: %w", src.path, err)
		}

		if src.name != "" && !opts.dryRun {
			if err := ingest.MarkProcessed(opts.repoDir, src.name); err != nil {
				entries[len(entries)-1].Status = runlog.StatusFailed
				if werr := writeRunLog(opts, entries); werr != nil {
					logger.Warn("writing run log failed", diag.F("error", werr.Error()))
				}
				return err
			}
		}

		fmt.Fprintf(stdout, "%s: %d rows in, %d out (%d dropped, %d null dates)",
			filepath.Base(src.path), entry.RowsIn, entry.RowsOut, entry.Dropped, entry.NullDates)
		if outPath != "" {
			fmt.Fprintf(stdout, " -> %s", relPath(opts.repoDir, outPath))
		}
		fmt.Fprintln(stdout)
	}

	if err := writeRunLog(opts, entries); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}

// prepOne runs a single source and fills entry with its counts.
// Returns the written output path, or "" on a dry run.
func prepOne(p *pipeline.Pipeline, src source, outDir string, format export.Format, dryRun bool, entry *runlog.Entry) (string, error) {
	state, err := p.Run(src.path)
	if err != nil {
		return "", err
	}

	entry.RowsIn = state.Report.Before
	entry.RowsOut = state.Report.After
	entry.Dropped = state.Report.Dropped
	entry.NullDates = state.NullDates

	if violations := impute.Validate(state.Imputed); len(violations) > 0 {
		return "", fmt.Errorf("validation failed: %w", violations[0])
	}
	entry.Status = runlog.StatusOK

	if dryRun {
		return "", nil
	}
	outPath := export.OutputPath(outDir, src.path, format)
	if err := export.WriteFile(outPath, state.Imputed, format); err != nil {
		entry.Status = runlog.StatusFailed
		return "", err
	}
	return outPath, nil
}

func applyOverrides(cfg *config.Config, opts runOptions) {
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.jsonLogs {
		cfg.Log.Console = false
	}
}

func collectSources(reg *ingest.Registry, opts runOptions, args []string) ([]source, error) {
	var sources []source
	for _, a := range args {
		sources = append(sources, source{path: a})
	}
	if !opts.all {
		return sources, nil
	}

	files, err := reg.Scan(opts.repoDir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		sources = append(sources, source{name: f.Name, path: f.Path})
	}
	return sources, nil
}

func writeRunLog(opts runOptions, entries []runlog.Entry) error {
	if opts.dryRun || len(entries) == 0 {
		return nil
	}
	if err := runlog.Append(opts.repoDir, entries); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

func relPath(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
