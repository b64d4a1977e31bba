package export

import (
	"encoding/json"
	"io"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// WriteJSON writes the full result as an indented JSON document.
func WriteJSON(w io.Writer, r *models.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
