package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/paaexplorer/internal/models"
)

const (
	questionsSheet = "Questions"
	clustersSheet  = "Clusters"
)

// WriteXLSX writes a workbook with a Questions sheet and a Clusters sheet.
func WriteXLSX(w io.Writer, r *models.AnalysisResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", questionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, questionsSheet, 1, toCells(Header)); err != nil {
		return err
	}
	for i, row := range rows(r) {
		cells := toCells(row)
		// Keep numeric columns numeric.
		if pos, err := strconv.Atoi(row[2]); err == nil {
			cells[2] = pos
		}
		cells[5] = r.Items[i].Confidence
		if err := setRow(f, questionsSheet, i+2, cells); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(clustersSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := setRow(f, clustersSheet, 1, []any{"id", "label", "size", "quality"}); err != nil {
		return err
	}
	for i, c := range r.Clusters {
		if err := setRow(f, clustersSheet, i+2, []any{c.ID, c.Label, c.Size, c.Quality}); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
