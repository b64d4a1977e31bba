package export

import (
	"encoding/csv"
	"io"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// WriteCSV writes a header row and one row per item.
func WriteCSV(w io.Writer, r *models.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows(r)); err != nil {
		return err
	}
	return cw.Error()
}
