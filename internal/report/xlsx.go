package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// XLSXContentType is the media type of rendered workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxSheetName is the sheet name length limit imposed by Excel.
const maxSheetName = 31

// XLSXRenderer encodes documents as a workbook with one sheet per section.
type XLSXRenderer struct{}

// Render implements Renderer.
func (XLSXRenderer) Render(ctx context.Context, doc *domain.Document) (out []byte, contentType string, err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", closeErr)
		}
	}()

	for i, section := range doc.Sections {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}

		name := sheetName(section.Title, i)
		if i == 0 {
			if renameErr := f.SetSheetName("Sheet1", name); renameErr != nil {
				return nil, "", fmt.Errorf("rename sheet: %w", renameErr)
			}
		} else if _, newErr := f.NewSheet(name); newErr != nil {
			return nil, "", fmt.Errorf("create sheet %q: %w", name, newErr)
		}

		if writeErr := writeSection(f, name, section); writeErr != nil {
			return nil, "", writeErr
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	return buf.Bytes(), XLSXContentType, nil
}

func writeSection(f *excelize.File, sheet string, section domain.Section) error {
	var rows [][]string
	if section.Table != nil {
		rows = append(rows, section.Table.Columns)
		rows = append(rows, section.Table.Rows...)
	} else {
		rows = append(rows, []string{"Metric", "Value"})
		for _, kv := range section.Pairs {
			rows = append(rows, []string{kv.Key, kv.Value})
		}
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
			}
		}
	}

	return nil
}

// sheetName derives a valid, unique sheet name from a section title.
func sheetName(title string, index int) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, title)
	if name == "" {
		name = fmt.Sprintf("Section %d", index+1)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
