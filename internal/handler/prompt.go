package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/promptgenie/internal/domain"
)

// promptRequest is the body of POST /prompts and PUT /prompts/{groupID}.
type promptRequest struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	SourceURL string          `json:"source_url"`
	Note      string          `json:"note"`
	Tags      []domain.TagRef `json:"tags"`
}

func (r promptRequest) toInput() domain.VersionInput {
	return domain.VersionInput{
		Title:     r.Title,
		Content:   r.Content,
		SourceURL: r.SourceURL,
		Note:      r.Note,
		Tags:      r.Tags,
	}
}

// listResponse is the body of GET /prompts.
type listResponse struct {
	Data       []domain.Version `json:"data"`
	Pagination pagination       `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// CreatePrompt handles POST /prompts.
func (s *Server) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "validation_error", "request body is required")
		return
	}

	created, err := s.prompts.Create(r.Context(), req.toInput())
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListPrompts handles GET /prompts.
// Query parameters: q (free text), tag (tag id), favorite (true/1),
// page, limit.
func (s *Server) ListPrompts(w http.ResponseWriter, r *http.Request) {
	query := domain.ListQuery{
		Term:         r.URL.Query().Get("q"),
		FavoriteOnly: isTruthy(r.URL.Query().Get("favorite")),
	}
	if raw := r.URL.Query().Get("tag"); raw != "" {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(w, "validation_error", "tag must be a valid id")
			return
		}
		query.TagID = &tagID
	}
	params := domain.NewPaginationParams(intParam(r, "page"), intParam(r, "limit"))

	versions, total, err := s.prompts.List(r.Context(), query, params)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data: versions,
		Pagination: pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// RecentPrompts handles GET /prompts/recent — the recently-used projection
// the tray menu consumes. Optional ?limit= caps the result.
func (s *Server) RecentPrompts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if p := intParam(r, "limit"); p != nil {
		limit = *p
	}
	versions, err := s.prompts.Recent(r.Context(), limit)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// GetPrompt handles GET /prompts/{groupID} — the latest version.
func (s *Server) GetPrompt(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	v, err := s.prompts.GetLatest(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "prompt not found")
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdatePrompt handles PUT /prompts/{groupID} — appends a new version.
func (s *Server) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "validation_error", "request body is required")
		return
	}

	updated, err := s.prompts.Update(r.Context(), groupID, req.toInput())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "prompt not found")
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			writeValidation(w, err)
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePrompt handles DELETE /prompts/{groupID} — removes every version.
func (s *Server) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	if _, err := s.prompts.Delete(r.Context(), groupID); err != nil {
		writeInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPromptHistory handles GET /prompts/{groupID}/history.
func (s *Server) GetPromptHistory(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	history, err := s.prompts.History(r.Context(), groupID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// ToggleFavorite handles POST /prompts/{groupID}/favorite.
func (s *Server) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	favorite, err := s.prompts.ToggleFavorite(r.Context(), groupID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": favorite})
}

// GetVersion handles GET /versions/{versionID} — any version, with tags.
func (s *Server) GetVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	v, err := s.prompts.GetVersion(r.Context(), versionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, "version not found")
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// MarkUsed handles POST /versions/{versionID}/used — the copy-to-clipboard
// and tray-paste flows call this to stamp last use.
func (s *Server) MarkUsed(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	used, err := s.prompts.MarkUsed(r.Context(), versionID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": used})
}

// --- param helpers ----------------------------------------------------------

// pathID parses a UUID path parameter, responding 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, "validation_error", name+" must be a valid id")
		return uuid.UUID{}, false
	}
	return id, true
}

// intParam returns a pointer to the integer query parameter, or nil when
// absent or malformed.
func intParam(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func isTruthy(s string) bool {
	return s == "1" || s == "true"
}
