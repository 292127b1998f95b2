package worksheet

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"sellerbooks/internal"
)

// WriteXLSX writes one sheet per table. Figures are stored as numbers;
// low-confidence and fallback figures are highlighted.
func (w *Worksheet) WriteXLSX(out io.Writer) error {
	f, err := w.workbook()
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(out)
	return err
}

func (w *Worksheet) ExportXLSX(outputPath string) error {
	f, err := w.workbook()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func (w *Worksheet) workbook() (*excelize.File, error) {
	snap := w.snapshot()
	f := excelize.NewFile()

	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	flagged, err := f.NewStyle(&excelize.Style{
		NumFmt: 4,
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, id := range Tables {
		sheet := sheetName(id)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		for c := 0; c < Columns; c++ {
			cell, _ := excelize.CoordinatesToCellName(c+2, 1)
			_ = f.SetCellValue(sheet, cell, ColumnName(c))
		}
		g := snap[id]
		for r := range g {
			rowNo := r + 2
			cell, _ := excelize.CoordinatesToCellName(1, rowNo)
			_ = f.SetCellValue(sheet, cell, r+1)

			for c, v := range g[r] {
				if v.Empty() {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+2, rowNo)
				switch {
				case v.Numeric:
					_ = f.SetCellValue(sheet, cell, v.Value.InexactFloat64())
					style := amount
					if v.Confidence == internal.ConfidenceLow || slices.Contains(v.Classes, "fallback") {
						style = flagged
					}
					_ = f.SetCellStyle(sheet, cell, cell, style)
				default:
					_ = f.SetCellValue(sheet, cell, v.Text)
					if v.Bold {
						_ = f.SetCellStyle(sheet, cell, cell, bold)
					}
				}
			}
		}
	}
	return f, nil
}

func sheetName(table string) string {
	return strings.ToUpper(table[:1]) + table[1:]
}
