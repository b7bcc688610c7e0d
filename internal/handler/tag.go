package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pkordes/promptgenie/internal/domain"
)

// tagUpdateRequest is the body of PUT /tags/{tagID}.
type tagUpdateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ListTags handles GET /tags. Each tag carries the number of prompt
// versions currently associated with it.
func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context())
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// UpdateTag handles PUT /tags/{tagID} — rename/recolor in place.
func (s *Server) UpdateTag(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}
	var req tagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "validation_error", "request body is required")
		return
	}

	updated, err := s.tags.Update(r.Context(), tagID, req.Name, req.Color)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w, err)
		return
	}
	if !updated {
		writeNotFound(w, "tag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag handles DELETE /tags/{tagID}. Deleting an unknown tag is a
// no-op success; prompts referencing the tag simply lose it.
func (s *Server) DeleteTag(w http.ResponseWriter, r *http.Request) {
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}
	if _, err := s.tags.Delete(r.Context(), tagID); err != nil {
		writeInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
