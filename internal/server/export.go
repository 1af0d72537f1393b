package server

import (
	"encoding/json"
	"net/http"

	"github.com/bgwastu/parsley"
)

type exportRequest struct {
	Format   string     `json:"format"` // "csv" or "xlsx"
	Rows     [][]string `json:"rows"`
	Filename string     `json:"filename,omitempty"`
}

// handleExport renders normalized rows as a downloadable CSV or XLSX file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, parsley.WrapError(parsley.KindValidation, err, "invalid JSON body: %v", err))
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, parsley.NewError(parsley.KindValidation, "rows must not be empty"))
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "extraction"
	}

	switch req.Format {
	case "csv":
		out, err := parsley.CSVString(req.Rows)
		if err != nil {
			writeError(w, parsley.WrapError(parsley.KindAPI, err, "render CSV: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		_, _ = w.Write([]byte(out))
	case "xlsx":
		out, err := parsley.XLSXBytes(req.Rows)
		if err != nil {
			writeError(w, parsley.WrapError(parsley.KindAPI, err, "render XLSX: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		_, _ = w.Write(out)
	default:
		writeError(w, parsley.NewError(parsley.KindValidation, "invalid format %q, must be 'csv' or 'xlsx'", req.Format))
	}
}
