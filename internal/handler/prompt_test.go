package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/promptgenie/internal/domain"
	"github.com/pkordes/promptgenie/internal/handler"
)

// ---- mock services ---------------------------------------------------------

// mockPromptService is a hand-written test double for handler.PromptServicer.
type mockPromptService struct {
	create         func(ctx context.Context, input domain.VersionInput) (domain.Version, error)
	update         func(ctx context.Context, groupID uuid.UUID, input domain.VersionInput) (domain.Version, error)
	getLatest      func(ctx context.Context, groupID uuid.UUID) (domain.Version, error)
	getVersion     func(ctx context.Context, versionID uuid.UUID) (domain.Version, error)
	history        func(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error)
	list           func(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error)
	recent         func(ctx context.Context, limit int) ([]domain.Version, error)
	delete         func(ctx context.Context, groupID uuid.UUID) (bool, error)
	toggleFavorite func(ctx context.Context, groupID uuid.UUID) (bool, error)
	markUsed       func(ctx context.Context, versionID uuid.UUID) (bool, error)
}

func (m *mockPromptService) Create(ctx context.Context, input domain.VersionInput) (domain.Version, error) {
	return m.create(ctx, input)
}
func (m *mockPromptService) Update(ctx context.Context, groupID uuid.UUID, input domain.VersionInput) (domain.Version, error) {
	return m.update(ctx, groupID, input)
}
func (m *mockPromptService) GetLatest(ctx context.Context, groupID uuid.UUID) (domain.Version, error) {
	return m.getLatest(ctx, groupID)
}
func (m *mockPromptService) GetVersion(ctx context.Context, versionID uuid.UUID) (domain.Version, error) {
	return m.getVersion(ctx, versionID)
}
func (m *mockPromptService) History(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error) {
	return m.history(ctx, groupID)
}
func (m *mockPromptService) List(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error) {
	return m.list(ctx, q, p)
}
func (m *mockPromptService) Recent(ctx context.Context, limit int) ([]domain.Version, error) {
	return m.recent(ctx, limit)
}
func (m *mockPromptService) Delete(ctx context.Context, groupID uuid.UUID) (bool, error) {
	return m.delete(ctx, groupID)
}
func (m *mockPromptService) ToggleFavorite(ctx context.Context, groupID uuid.UUID) (bool, error) {
	return m.toggleFavorite(ctx, groupID)
}
func (m *mockPromptService) MarkUsed(ctx context.Context, versionID uuid.UUID) (bool, error) {
	return m.markUsed(ctx, versionID)
}

// compile-time check: mockPromptService must satisfy handler.PromptServicer.
var _ handler.PromptServicer = (*mockPromptService)(nil)

// ---- helpers ---------------------------------------------------------------

// newTestServer wires a Server to the given mocks. Pass nil for services the
// test does not exercise.
func newTestServer(prompts handler.PromptServicer, tags handler.TagServicer, export handler.ExportServicer) http.Handler {
	if prompts == nil {
		prompts = &mockPromptService{}
	}
	if tags == nil {
		tags = &mockTagService{}
	}
	if export == nil {
		export = &mockExportService{}
	}
	return handler.NewServer(prompts, tags, export).Routes()
}

// do executes a request against the router and returns the recorder.
func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the recorded body into out.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func sampleVersion() domain.Version {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	return domain.Version{
		ID:        uuid.Must(uuid.NewV7()),
		GroupID:   uuid.Must(uuid.NewV7()),
		Number:    1,
		IsLatest:  true,
		Title:     "Explain this error",
		Content:   "Explain the following error message.",
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []domain.Tag{},
	}
}

// ---- POST /prompts ---------------------------------------------------------

func TestCreatePrompt_Created(t *testing.T) {
	v := sampleVersion()
	h := newTestServer(&mockPromptService{
		create: func(_ context.Context, input domain.VersionInput) (domain.Version, error) {
			assert.Equal(t, "Explain this error", input.Title)
			return v, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPost, "/prompts", map[string]any{
		"title":   "Explain this error",
		"content": "Explain the following error message.",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Version
	decode(t, rec, &got)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, 1, got.Number)
}

func TestCreatePrompt_ValidationFailure(t *testing.T) {
	h := newTestServer(&mockPromptService{
		create: func(_ context.Context, _ domain.VersionInput) (domain.Version, error) {
			return domain.Version{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPost, "/prompts", map[string]any{"content": "x"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "title is required", body.Error.Message)
}

func TestCreatePrompt_MissingBody(t *testing.T) {
	h := newTestServer(&mockPromptService{}, nil, nil)

	rec := do(t, h, http.MethodPost, "/prompts", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- GET /prompts ----------------------------------------------------------

func TestListPrompts_PassesQueryAndPagination(t *testing.T) {
	tagID := uuid.Must(uuid.NewV7())
	h := newTestServer(&mockPromptService{
		list: func(_ context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error) {
			assert.Equal(t, "error", q.Term)
			assert.True(t, q.FavoriteOnly)
			require.NotNil(t, q.TagID)
			assert.Equal(t, tagID, *q.TagID)
			assert.Equal(t, 2, p.Page)
			assert.Equal(t, 10, p.Limit)
			return []domain.Version{sampleVersion()}, 21, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet,
		"/prompts?q=error&favorite=true&tag="+tagID.String()+"&page=2&limit=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data       []domain.Version `json:"data"`
		Pagination struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 21, body.Pagination.Total)
}

func TestListPrompts_BadTagID(t *testing.T) {
	h := newTestServer(&mockPromptService{}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts?tag=not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- GET /prompts/recent ---------------------------------------------------

func TestRecentPrompts_ForwardsLimit(t *testing.T) {
	var gotLimit int
	h := newTestServer(&mockPromptService{
		recent: func(_ context.Context, limit int) ([]domain.Version, error) {
			gotLimit = limit
			return []domain.Version{}, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/recent?limit=3", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, gotLimit)
}

// ---- GET /prompts/{groupID} ------------------------------------------------

func TestGetPrompt_OK(t *testing.T) {
	v := sampleVersion()
	h := newTestServer(&mockPromptService{
		getLatest: func(_ context.Context, groupID uuid.UUID) (domain.Version, error) {
			assert.Equal(t, v.GroupID, groupID)
			return v, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/"+v.GroupID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Version
	decode(t, rec, &got)
	assert.Equal(t, v.ID, got.ID)
}

func TestGetPrompt_NotFound(t *testing.T) {
	h := newTestServer(&mockPromptService{
		getLatest: func(_ context.Context, _ uuid.UUID) (domain.Version, error) {
			return domain.Version{}, domain.ErrNotFound
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/"+uuid.Must(uuid.NewV7()).String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPrompt_BadID(t *testing.T) {
	h := newTestServer(&mockPromptService{}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- PUT /prompts/{groupID} ------------------------------------------------

func TestUpdatePrompt_OK(t *testing.T) {
	v := sampleVersion()
	v.Number = 2
	h := newTestServer(&mockPromptService{
		update: func(_ context.Context, groupID uuid.UUID, input domain.VersionInput) (domain.Version, error) {
			assert.Equal(t, v.GroupID, groupID)
			assert.Equal(t, "new content", input.Content)
			return v, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPut, "/prompts/"+v.GroupID.String(), map[string]any{
		"title":   v.Title,
		"content": "new content",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Version
	decode(t, rec, &got)
	assert.Equal(t, 2, got.Number)
}

func TestUpdatePrompt_UnknownGroup(t *testing.T) {
	h := newTestServer(&mockPromptService{
		update: func(_ context.Context, _ uuid.UUID, _ domain.VersionInput) (domain.Version, error) {
			return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", domain.ErrNotFound)
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPut, "/prompts/"+uuid.Must(uuid.NewV7()).String(),
		map[string]any{"title": "t", "content": "c"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---- DELETE /prompts/{groupID} ---------------------------------------------

func TestDeletePrompt_NoContent(t *testing.T) {
	h := newTestServer(&mockPromptService{
		delete: func(_ context.Context, _ uuid.UUID) (bool, error) {
			return true, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodDelete, "/prompts/"+uuid.Must(uuid.NewV7()).String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

// ---- GET /prompts/{groupID}/history ----------------------------------------

func TestGetPromptHistory_OK(t *testing.T) {
	v2 := sampleVersion()
	v2.Number = 2
	v1 := sampleVersion()
	h := newTestServer(&mockPromptService{
		history: func(_ context.Context, _ uuid.UUID) ([]domain.Version, error) {
			return []domain.Version{v2, v1}, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/"+v1.GroupID.String()+"/history", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Version
	decode(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Number)
}

// ---- POST /prompts/{groupID}/favorite --------------------------------------

func TestToggleFavorite_ReportsNewState(t *testing.T) {
	h := newTestServer(&mockPromptService{
		toggleFavorite: func(_ context.Context, _ uuid.UUID) (bool, error) {
			return true, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPost, "/prompts/"+uuid.Must(uuid.NewV7()).String()+"/favorite", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decode(t, rec, &body)
	assert.True(t, body["is_favorite"])
}

// ---- /versions/{versionID} -------------------------------------------------

func TestGetVersion_NotFound(t *testing.T) {
	h := newTestServer(&mockPromptService{
		getVersion: func(_ context.Context, _ uuid.UUID) (domain.Version, error) {
			return domain.Version{}, domain.ErrNotFound
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/versions/"+uuid.Must(uuid.NewV7()).String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkUsed_OK(t *testing.T) {
	versionID := uuid.Must(uuid.NewV7())
	h := newTestServer(&mockPromptService{
		markUsed: func(_ context.Context, gotID uuid.UUID) (bool, error) {
			assert.Equal(t, versionID, gotID)
			return true, nil
		},
	}, nil, nil)

	rec := do(t, h, http.MethodPost, "/versions/"+versionID.String()+"/used", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decode(t, rec, &body)
	assert.True(t, body["updated"])
}

// ---- internal errors -------------------------------------------------------

func TestGetPrompt_InternalErrorHidesDetails(t *testing.T) {
	h := newTestServer(&mockPromptService{
		getLatest: func(_ context.Context, _ uuid.UUID) (domain.Version, error) {
			return domain.Version{}, errors.New("disk I/O error at block 42")
		},
	}, nil, nil)

	rec := do(t, h, http.MethodGet, "/prompts/"+uuid.Must(uuid.NewV7()).String(), nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "block 42")
}
