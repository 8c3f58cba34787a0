package commands_test

import (
	"encoding/csv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/posprep/internal/config"
	"github.com/cleared-dev/posprep/internal/runlog"
)

const fixture = "../../testdata/cafe_sales.csv"

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "posprep-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "posprep")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/posprep")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runPosprep(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// initProject runs init in a temp dir and copies the fixture into import/.
func initProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runPosprep(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "cafe_sales.csv"), data, 0o644))
	return dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runPosprep(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized posprep project")

	for _, d := range []string{"import", filepath.Join("import", "processed"), "output", "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "output/")
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runPosprep(t, "init", dir)
	require.NoError(t, err)

	out, err := runPosprep(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")

	_, err = runPosprep(t, "init", dir, "--force")
	require.NoError(t, err)
}

func TestRun_SingleFile(t *testing.T) {
	dir := initProject(t)
	src := filepath.Join(dir, "import", "cafe_sales.csv")

	out, err := runPosprep(t, "run", src, "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "cafe_sales.csv: 9 rows in, 4 out (5 dropped, 1 null dates)")
	assert.Contains(t, out, "output/cafe_sales.clean.csv")

	records := readCSV(t, filepath.Join(dir, "output", "cafe_sales.clean.csv"))
	require.Len(t, records, 5)
	assert.Equal(t, []string{
		"transaction_id", "item", "quantity", "price_per_unit",
		"total_spent", "payment_method", "location", "transaction_date",
	}, records[0])

	var ids []string
	for _, r := range records[1:] {
		ids = append(ids, r[0])
	}
	assert.Equal(t, []string{"TXN_1001", "TXN_1002", "TXN_1003", "TXN_1009"}, ids)
	assert.Equal(t, "Cake", records[2][1])
	assert.Equal(t, "Unknown", records[3][5])
	assert.Equal(t, "Unknown", records[4][5])

	// Explicit files stay in import/.
	_, err = os.Stat(src)
	assert.NoError(t, err)

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.StatusOK, entries[0].Status)
	assert.Equal(t, "import/cafe_sales.csv", entries[0].Source)
	assert.Equal(t, 9, entries[0].RowsIn)
	assert.Equal(t, 4, entries[0].RowsOut)
}

func TestRun_All(t *testing.T) {
	dir := initProject(t)

	out, err := runPosprep(t, "run", "--all", "--repo", dir)
	require.NoError(t, err, out)

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "cafe_sales.csv"))
	assert.NoError(t, err, "source should be moved to processed")
	_, err = os.Stat(filepath.Join(dir, "import", "cafe_sales.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "output", "cafe_sales.clean.csv"))
	assert.NoError(t, err)

	// Nothing left to process.
	out, err = runPosprep(t, "run", "--all", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No files to process.")
}

func TestRun_MoveFailureKeepsRunLog(t *testing.T) {
	dir := initProject(t)
	// A plain file where import/processed/ should be makes the move fail.
	processed := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.RemoveAll(processed))
	require.NoError(t, os.WriteFile(processed, []byte("not a dir"), 0o644))

	out, err := runPosprep(t, "run", "--all", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "creating processed dir")

	_, err = os.Stat(filepath.Join(dir, "output", "cafe_sales.clean.csv"))
	assert.NoError(t, err)

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "import/cafe_sales.csv", entries[0].Source)
	assert.Equal(t, runlog.StatusFailed, entries[0].Status)
	assert.Equal(t, 4, entries[0].RowsOut)
}

func TestRun_XLSX(t *testing.T) {
	dir := initProject(t)

	out, err := runPosprep(t, "run", "--all", "--repo", dir, "--format", "xlsx")
	require.NoError(t, err, out)

	f, err := excelize.OpenFile(filepath.Join(dir, "output", "cafe_sales.clean.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "transaction_id", rows[0][0])
	assert.Equal(t, "TXN_1009", rows[4][0])
}

func TestRun_DryRun(t *testing.T) {
	dir := initProject(t)

	out, err := runPosprep(t, "run", "--all", "--dry-run", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "9 rows in, 4 out")

	_, err = os.Stat(filepath.Join(dir, "output", "cafe_sales.clean.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "cafe_sales.csv"))
	assert.NoError(t, err, "dry run should not move the source")

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MissingSourceContinues(t *testing.T) {
	dir := initProject(t)
	missing := filepath.Join(dir, "import", "nope.csv")

	out, err := runPosprep(t, "run", missing, "--all", "--repo", dir, "--json")
	require.Error(t, err)
	assert.Contains(t, out, "source not found")
	assert.Contains(t, out, "1 of 2 sources failed")

	// The real file was still processed.
	_, err = os.Stat(filepath.Join(dir, "output", "cafe_sales.clean.csv"))
	assert.NoError(t, err)

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, runlog.StatusFailed, entries[0].Status)
	assert.Equal(t, runlog.StatusOK, entries[1].Status)
	assert.Equal(t, entries[0].RunID, entries[1].RunID)
}

func TestRun_SchemaViolationStops(t *testing.T) {
	dir := initProject(t)
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Item,Quantity\nCoffee,2\n"), 0o644))

	out, err := runPosprep(t, "run", bad, "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "schema violation")
	assert.Contains(t, out, "transaction_id")

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runlog.StatusFailed, entries[0].Status)
}

func TestRun_CustomMissingTokens(t *testing.T) {
	dir := initProject(t)
	cfg := config.Default()
	cfg.Ingest.MissingTokens = []string{"N/A"}
	require.NoError(t, config.Save(filepath.Join(dir, config.FileName), cfg))

	src := filepath.Join(dir, "custom.csv")
	data := "Transaction ID,Item,Quantity,Price Per Unit,Total Spent,Payment Method,Location,Transaction Date\n" +
		"T1,Tea,2,1.5,N/A,N/A,ERROR,2023-01-01\n"
	require.NoError(t, os.WriteFile(src, []byte(data), 0o644))

	out, err := runPosprep(t, "run", src, "--repo", dir)
	require.NoError(t, err, out)

	records := readCSV(t, filepath.Join(dir, "output", "custom.clean.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "Unknown", records[1][5])
	// ERROR is an ordinary value once the token list is replaced.
	assert.Equal(t, "Error", records[1][6])
}

func TestRun_NoSources(t *testing.T) {
	out, err := runPosprep(t, "run", "--repo", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "no sources given")
}

func TestRun_BadFormat(t *testing.T) {
	dir := initProject(t)
	out, err := runPosprep(t, "run", "--all", "--repo", dir, "--format", "parquet")
	require.Error(t, err)
	assert.Contains(t, out, `unknown output format "parquet"`)
}

func TestHistory(t *testing.T) {
	dir := initProject(t)

	out, err := runPosprep(t, "history", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = runPosprep(t, "run", "--all", "--repo", dir)
	require.NoError(t, err)

	out, err = runPosprep(t, "history", "--repo", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "SOURCE")
	assert.Contains(t, lines[1], "import/cafe_sales.csv")
	assert.Contains(t, lines[1], "ok")
}

func TestVersion(t *testing.T) {
	out, err := runPosprep(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "posprep version dev")
}
