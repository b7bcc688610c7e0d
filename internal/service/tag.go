// Package service contains the business logic for the PromptGenie backend.
// Services validate inputs, enforce business rules, and orchestrate repo
// calls. No SQL lives here — services depend on repo interfaces, not
// implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/promptgenie/internal/domain"
	"github.com/pkordes/promptgenie/internal/notify"
	"github.com/pkordes/promptgenie/internal/repo"
)

// TagService implements business logic for tag operations. Its primary
// responsibility is Resolve: turning caller-supplied tag references into
// canonical stored tags, idempotently under concurrent writers.
type TagService struct {
	tags    repo.TagRepo
	emitter notify.Emitter
	log     *slog.Logger
}

// NewTagService constructs a TagService backed by the provided TagRepo.
func NewTagService(tags repo.TagRepo, emitter notify.Emitter, log *slog.Logger) *TagService {
	return &TagService{tags: tags, emitter: emitter, log: log}
}

// Resolve maps each reference to a canonical stored tag, creating tags that
// do not exist yet. Per reference the steps are: try the supplied id, try
// the name, insert, and on a unique-name race re-read by name once. A
// reference that still cannot be resolved is dropped from the result with a
// warning — one bad tag never blocks saving a prompt. For tags that already
// exist the stored color wins over the caller's.
//
// Only lookup-level failures (storage unreachable) return an error.
func (s *TagService) Resolve(ctx context.Context, refs []domain.TagRef) ([]domain.Tag, error) {
	resolved := make([]domain.Tag, 0, len(refs))
	for _, ref := range refs {
		tag, ok, err := s.resolveOne(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("service.TagService.Resolve: %w", err)
		}
		if !ok {
			continue
		}
		resolved = append(resolved, tag)
	}
	return resolved, nil
}

// resolveOne runs the resolution steps for a single reference. The second
// return value is false when the reference was abandoned.
func (s *TagService) resolveOne(ctx context.Context, ref domain.TagRef) (domain.Tag, bool, error) {
	if strings.TrimSpace(ref.Name) == "" {
		s.log.Warn("dropping tag reference with empty name")
		return domain.Tag{}, false, nil
	}

	// TryById: the registry is authoritative once a tag exists.
	if ref.ID != nil {
		tag, err := s.tags.GetByID(ctx, *ref.ID)
		if err == nil {
			return tag, true, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Tag{}, false, err
		}
		s.log.Warn("tag id not found, falling back to name lookup", "tag_id", *ref.ID, "name", ref.Name)
	}

	// TryByName.
	tag, err := s.tags.GetByName(ctx, ref.Name)
	if err == nil {
		return tag, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Tag{}, false, err
	}

	// Insert.
	tag = domain.Tag{
		ID:        newID(),
		Name:      ref.Name,
		Color:     ref.Color,
		CreatedAt: time.Now(),
	}
	insertErr := s.tags.Insert(ctx, tag)
	if insertErr == nil {
		s.emitter.TagsChanged(notify.TagCreated, tag.ID)
		return tag, true, nil
	}

	// RetryByName: another writer won the unique-name race; their row is
	// the canonical tag now.
	if repo.IsUniqueViolation(insertErr) {
		winner, retryErr := s.tags.GetByName(ctx, ref.Name)
		if retryErr == nil {
			return winner, true, nil
		}
		s.log.Warn("tag lost unique-name race and re-read failed, dropping",
			"name", ref.Name, "error", retryErr)
		return domain.Tag{}, false, nil
	}

	// Abandon: an unexpected insert failure degrades to a dropped tag
	// rather than aborting the caller's write.
	s.log.Warn("tag insert failed, dropping", "name", ref.Name, "error", insertErr)
	return domain.Tag{}, false, nil
}

// List returns all tags with their prompt association counts, ordered by
// name. Always returns a non-nil slice so callers can safely range over it.
func (s *TagService) List(ctx context.Context) ([]domain.Tag, error) {
	tags, err := s.tags.ListWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.TagService.List: %w", err)
	}
	if tags == nil {
		return []domain.Tag{}, nil
	}
	return tags, nil
}

// Update renames/recolors a tag in place. Identity and associations are
// untouched. Returns false when the tag does not exist.
func (s *TagService) Update(ctx context.Context, id uuid.UUID, name, color string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	ok, err := s.tags.Update(ctx, id, name, color)
	if err != nil {
		return false, fmt.Errorf("service.TagService.Update: %w", err)
	}
	if ok {
		s.emitter.TagsChanged(notify.TagUpdated, id)
	}
	return ok, nil
}

// Delete removes a tag and all its prompt associations. Prompts keep their
// other tags. Deleting a nonexistent tag is a no-op success.
func (s *TagService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := s.tags.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("service.TagService.Delete: %w", err)
	}
	s.emitter.TagsChanged(notify.TagDeleted, id)
	return true, nil
}

// newID generates a time-ordered UUIDv7, the id scheme used for every row
// in the store.
func newID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
