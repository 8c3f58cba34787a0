package ingest

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/model"
)

var (
	// ErrSourceNotFound is returned when the input path does not resolve.
	ErrSourceNotFound = errors.New("source not found")
	// ErrIngestFailure covers every other read failure.
	ErrIngestFailure = errors.New("ingest failure")
)

// DefaultMissingTokens are the literal cell values read as missing.
var DefaultMissingTokens = []string{"ERROR", "UNKNOWN", "-", "null"}

// Options tunes how a source is read.
type Options struct {
	// MissingTokens replaces DefaultMissingTokens when non-nil.
	MissingTokens []string
}

// Sentinels is the set of tokens that mark a cell as missing.
// The empty string is always missing.
type Sentinels map[string]struct{}

// NewSentinels builds a Sentinels set. Matching is case-sensitive.
func NewSentinels(tokens []string) Sentinels {
	s := make(Sentinels, len(tokens)+1)
	s[""] = struct{}{}
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Cell converts a raw value into a nullable cell.
func (s Sentinels) Cell(raw string) sql.Null[string] {
	if _, ok := s[raw]; ok {
		return sql.Null[string]{}
	}
	return model.Some(raw)
}

func (o Options) sentinels() Sentinels {
	if o.MissingTokens != nil {
		return NewSentinels(o.MissingTokens)
	}
	return NewSentinels(DefaultMissingTokens)
}

// Reader converts one source format into a raw Table.
type Reader interface {
	Read(r io.Reader, missing Sentinels) (model.Table, error)
	Format() string
}

// Registry holds readers keyed by file extension.
type Registry struct {
	readers map[string]Reader
}

// FileInfo describes a source file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format (an extension, with or without the dot), or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.TrimPrefix(strings.ToLower(format), ".")]
}

// DefaultRegistry returns a registry with the CSV and XLSX readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVReader{})
	r.Register(&XLSXReader{})
	return r
}

// Load reads the file at path with the default registry.
func Load(path string, opts Options, c diag.Collector) (model.Table, error) {
	return DefaultRegistry().Load(path, opts, c)
}

// Load reads the file at path using the reader registered for its extension.
// Failures wrap ErrSourceNotFound or ErrIngestFailure.
func (r *Registry) Load(path string, opts Options, c diag.Collector) (model.Table, error) {
	t, err := r.load(path, opts)
	if err != nil {
		c.Warn("ingestion failed", diag.F("source", path), diag.F("error", err.Error()))
		return model.Table{}, err
	}
	rows, cols := t.Shape()
	c.Info("ingestion succeeded", diag.F("source", path), diag.F("rows", rows), diag.F("columns", cols))
	return t, nil
}

func (r *Registry) load(path string, opts Options) (model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Table{}, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}
		return model.Table{}, fmt.Errorf("%w: opening %s: %w", ErrIngestFailure, path, err)
	}
	defer f.Close()

	rd := r.Get(filepath.Ext(path))
	if rd == nil {
		return model.Table{}, fmt.Errorf("%w: unsupported file type %q", ErrIngestFailure, filepath.Ext(path))
	}

	t, err := rd.Read(f, opts.sentinels())
	if err != nil {
		return model.Table{}, fmt.Errorf("%w: %s: %w", ErrIngestFailure, path, err)
	}
	return t, nil
}

// importDir is the subdirectory scanned for sources.
const importDir = "import"

// processedDir is where sources go once a run has consumed them.
const processedDir = "import/processed"

// Scan returns files in <root>/import/ that have a registered reader.
func (r *Registry) Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if r.Get(filepath.Ext(e.Name())) == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// buildTable turns raw records (header first) into a Table.
func buildTable(records [][]string, missing Sentinels) (model.Table, error) {
	var header []string
	var body [][]string
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		body = append(body, rec)
	}
	if header == nil {
		return model.Table{}, errors.New("no header row")
	}

	t := model.Table{
		Headers: make([]string, len(header)),
		Rows:    make([][]sql.Null[string], 0, len(body)),
	}
	for i, h := range header {
		t.Headers[i] = strings.TrimSpace(h)
	}
	for _, rec := range body {
		row := make([]sql.Null[string], len(header))
		for i := range row {
			if i < len(rec) {
				row[i] = missing.Cell(rec[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
