package loader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CacheKey generates a unique cache key for a SourceFile based on its ID and path.
func CacheKey(file SourceFile) string {
	return file.ID + ":" + file.FilePath
}

// Sheet is one converted sheet of a workbook. Name is empty for the
// default export.
type Sheet struct {
	Name    string
	Content []byte
}

// TransformExcelToCsv converts an Excel file (.xlsx, .xls) to CSV using unoconv.
// unoconv exports the workbook's first sheet as input.csv, which is returned
// first. Per-sheet exports (input-<Sheet>.csv) carry no workbook position and
// follow in name order.
func TransformExcelToCsv(ctx context.Context, input []byte, ext string) ([]Sheet, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	tmpDir := filepath.Join(os.TempDir(), "casegraph-excel-"+id)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir tmp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	excelPath := filepath.Join(tmpDir, fmt.Sprintf("%s.%s", csvExportBase, ext))
	if err := os.WriteFile(excelPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}

	if _, err := exec.LookPath("unoconv"); err != nil {
		return nil, fmt.Errorf("unoconv not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 600*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "unoconv", "-f", "csv", excelPath)
	cmd.Dir = tmpDir
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("unoconv timed out")
	}
	if err != nil {
		return nil, fmt.Errorf("unoconv failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	return readCsvExports(tmpDir)
}

const csvExportBase = "input"

// readCsvExports collects the CSV files unoconv wrote into dir.
func readCsvExports(dir string) ([]Sheet, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob csv: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CSV files produced")
	}

	var (
		first  []Sheet
		sheets = make([]Sheet, 0, len(matches))
	)
	for _, f := range matches {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", f, err)
		}

		base := strings.TrimSuffix(filepath.Base(f), ".csv")
		if base == csvExportBase {
			first = append(first, Sheet{Content: content})
			continue
		}
		name := strings.TrimPrefix(base, csvExportBase+"-")
		sheets = append(sheets, Sheet{Name: name, Content: content})
	}

	sort.SliceStable(sheets, func(i, j int) bool {
		return sheets[i].Name < sheets[j].Name
	})
	return append(first, sheets...), nil
}
