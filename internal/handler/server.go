// Package handler implements the HTTP handlers for the PromptGenie backend.
// All handlers are methods on Server. Methods are split into domain-specific
// files (prompt.go, tag.go, export.go) but all share the same Server struct
// so they can access its dependencies.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/promptgenie/internal/domain"
)

// PromptServicer defines the business operations the prompt handlers depend
// on. Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type PromptServicer interface {
	Create(ctx context.Context, input domain.VersionInput) (domain.Version, error)
	Update(ctx context.Context, groupID uuid.UUID, input domain.VersionInput) (domain.Version, error)
	GetLatest(ctx context.Context, groupID uuid.UUID) (domain.Version, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (domain.Version, error)
	History(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error)
	List(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error)
	Recent(ctx context.Context, limit int) ([]domain.Version, error)
	Delete(ctx context.Context, groupID uuid.UUID) (bool, error)
	ToggleFavorite(ctx context.Context, groupID uuid.UUID) (bool, error)
	MarkUsed(ctx context.Context, versionID uuid.UUID) (bool, error)
}

// TagServicer defines the business operations the tag handlers depend on.
type TagServicer interface {
	List(ctx context.Context) ([]domain.Tag, error)
	Update(ctx context.Context, id uuid.UUID, name, color string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// ExportServicer defines the business operations the export/import handlers
// depend on.
type ExportServicer interface {
	Export(ctx context.Context, progress domain.ProgressFunc) (domain.Document, error)
	Import(ctx context.Context, doc domain.Document, opts domain.ImportOptions) (domain.ImportResult, error)
}

// Server implements all API endpoints. Wire it in main.go via Routes().
// Methods are in domain-specific files but all operate on this struct.
type Server struct {
	prompts PromptServicer
	tags    TagServicer
	export  ExportServicer
}

// NewServer constructs the Server with all its dependencies.
func NewServer(prompts PromptServicer, tags TagServicer, export ExportServicer) *Server {
	return &Server{prompts: prompts, tags: tags, export: export}
}

// Routes returns the full route table. Middleware is the caller's concern.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.Health)

	r.Route("/prompts", func(r chi.Router) {
		r.Post("/", s.CreatePrompt)
		r.Get("/", s.ListPrompts)
		r.Get("/recent", s.RecentPrompts)
		r.Route("/{groupID}", func(r chi.Router) {
			r.Get("/", s.GetPrompt)
			r.Put("/", s.UpdatePrompt)
			r.Delete("/", s.DeletePrompt)
			r.Get("/history", s.GetPromptHistory)
			r.Post("/favorite", s.ToggleFavorite)
		})
	})

	r.Route("/versions/{versionID}", func(r chi.Router) {
		r.Get("/", s.GetVersion)
		r.Post("/used", s.MarkUsed)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", s.ListTags)
		r.Put("/{tagID}", s.UpdateTag)
		r.Delete("/{tagID}", s.DeleteTag)
	})

	r.Get("/export", s.Export)
	r.Post("/import", s.Import)

	return r
}
