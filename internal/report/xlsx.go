package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kailas-cloud/docscan/internal/domain"
)

const sheetName = "Extracted values"

var xlsxHeaders = []string{"Document", "Section", "Value", "Confidence", "Page"}

// XLSX renders the report as a single-sheet workbook.
func XLSX(r domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// дефолтный лист переименовываем, второй не нужен
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if index, _ := f.GetSheetIndex(sheetName); index >= 0 {
		f.SetActiveSheet(index)
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, doc := range r.Documents {
		for _, v := range doc.ExtractedValues {
			write := func(col int, val any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheetName, cell, val)
			}
			write(1, doc.Document)
			write(2, v.Section)
			write(3, v.Value.String())
			write(4, v.Confidence)
			write(5, v.Page)
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 32)
	_ = f.SetColWidth(sheetName, "B", "B", 28)
	_ = f.SetColWidth(sheetName, "C", "C", 48)
	_ = f.SetColWidth(sheetName, "D", "E", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX writes the workbook next to the JSON report and returns its path.
func WriteXLSX(dir string, r domain.Report) (string, error) {
	data, err := XLSX(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, strings.TrimSuffix(FileName(r), ".json")+".xlsx")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write xlsx: %w", err)
	}
	return path, nil
}
