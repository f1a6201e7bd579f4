package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Item is a single catalog entry derived from one workbook row.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Price       string `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Image2      string `json:"image2"`
	Image3      string `json:"image3"`
	Description string `json:"description"`
	Image4      string `json:"image4"`
	Image5      string `json:"image5"`
}

// Sheet holds the raw rows of one workbook sheet, header included.
type Sheet struct {
	Name string
	Rows [][]string
}

// Reader yields the sheets of the external tabular dataset.
type Reader interface {
	ReadSheets() ([]Sheet, error)
}

// WorkbookReader reads an xlsx workbook from disk.
type WorkbookReader struct {
	path string
}

// NewWorkbookReader builds a reader for the workbook at path.
func NewWorkbookReader(path string) *WorkbookReader {
	return &WorkbookReader{path: path}
}

// ReadSheets loads every sheet of the workbook. A missing file surfaces as
// fs.ErrNotExist so callers can degrade gracefully.
func (r *WorkbookReader) ReadSheets() ([]Sheet, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workbook %s: %w", r.path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("workbook %s: %w", r.path, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("workbook %s: sheet %s: %w", r.path, name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}

	return sheets, nil
}

// itemsFromSheet maps data rows to items, skipping the header row, rows that
// are entirely empty, and rows missing either of the first two cells. Column
// offsets are fixed; cells beyond the row's width default to empty.
func itemsFromSheet(sheet Sheet) []Item {
	items := make([]Item, 0, len(sheet.Rows))

	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		if emptyRow(row) {
			continue
		}
		if cell(row, 0) == "" || cell(row, 1) == "" {
			continue
		}

		items = append(items, Item{
			ID:          sheet.Name + "_" + cell(row, 0),
			Title:       cell(row, 1),
			Author:      cell(row, 2),
			Price:       cell(row, 3),
			Image:       cell(row, 4),
			Category:    sheet.Name,
			Image2:      cell(row, 6),
			Image3:      cell(row, 7),
			Description: cell(row, 8),
			Image4:      cell(row, 9),
			Image5:      cell(row, 10),
		})
	}

	return items
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func emptyRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
