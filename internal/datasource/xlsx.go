package datasource

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXProvider reads a workbook sheet. There is no header row; every row is data.
type XLSXProvider struct {
	table
	Path  string
	Sheet string
}

// OpenXLSX loads sheet from the workbook at path; an empty sheet name selects
// the first sheet. Raw cell values are kept so date cells arrive as serial numbers.
func OpenXLSX(path, sheet string) (*XLSXProvider, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %q has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %q: %w", sheet, path, err)
	}
	return &XLSXProvider{table: newTable(rows), Path: path, Sheet: sheet}, nil
}
