package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pkordes/promptgenie/internal/domain"
)

// importRequest is the body of POST /import: the conflict options plus the
// document itself.
type importRequest struct {
	Mode                  domain.ImportMode `json:"mode"`
	IncludeVersionHistory bool              `json:"includeVersionHistory"`
	IncludeTags           bool              `json:"includeTags"`
	Document              domain.Document   `json:"document"`
}

// Export handles GET /export — the full self-contained snapshot.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := s.export.Export(r.Context(), nil)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Import handles POST /import. A structurally unreadable body or an
// incompatible format version rejects the whole request; per-record
// failures land in the result's error list with a 200.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "validation_error", "request body must be a valid import document")
		return
	}

	opts := domain.ImportOptions{
		Mode:                  req.Mode,
		IncludeVersionHistory: req.IncludeVersionHistory,
		IncludeTags:           req.IncludeTags,
	}
	result, err := s.export.Import(r.Context(), req.Document, opts)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			writeBadRequest(w, "unsupported_format", unwrapMessage(err))
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
