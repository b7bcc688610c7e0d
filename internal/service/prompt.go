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

// DefaultRecentLimit is how many recently-used prompts the tray projection
// shows when the caller does not say otherwise.
const DefaultRecentLimit = 5

// PromptService implements business logic for the prompt version chain.
// It holds both repos because every save resolves tags, and the tag
// resolver because resolution rules live in TagService.
type PromptService struct {
	prompts  repo.PromptRepo
	tags     repo.TagRepo
	resolver *TagService
	emitter  notify.Emitter
	log      *slog.Logger
}

// NewPromptService constructs a PromptService backed by the provided repos.
func NewPromptService(prompts repo.PromptRepo, tags repo.TagRepo, resolver *TagService, emitter notify.Emitter, log *slog.Logger) *PromptService {
	return &PromptService{prompts: prompts, tags: tags, resolver: resolver, emitter: emitter, log: log}
}

// Create starts a new prompt group at version 1. The new group is not a
// favorite and carries the resolved form of the supplied tags.
func (s *PromptService) Create(ctx context.Context, input domain.VersionInput) (domain.Version, error) {
	if err := validateInput(input); err != nil {
		return domain.Version{}, err
	}

	resolved, err := s.resolver.Resolve(ctx, input.Tags)
	if err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Create: %w", err)
	}

	now := time.Now()
	v := domain.Version{
		ID:        newID(),
		GroupID:   newID(),
		Number:    1,
		IsLatest:  true,
		Title:     input.Title,
		Content:   input.Content,
		SourceURL: input.SourceURL,
		Note:      input.Note,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      resolved,
	}
	if err := s.prompts.InsertVersion(ctx, v); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Create: %w", err)
	}
	if err := s.associate(ctx, v.ID, resolved); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Create: %w", err)
	}
	return v, nil
}

// Update appends version N+1 to an existing group and makes it the latest.
// The group's origin time and favorite flag carry over unchanged; the old
// version keeps its own tag associations as a historical record.
// Returns domain.ErrNotFound when the group has no latest version.
func (s *PromptService) Update(ctx context.Context, groupID uuid.UUID, input domain.VersionInput) (domain.Version, error) {
	if err := validateInput(input); err != nil {
		return domain.Version{}, err
	}

	prev, err := s.prompts.GetLatest(ctx, groupID)
	if err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", err)
	}

	if err := s.prompts.MarkNotLatest(ctx, prev.ID); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", err)
	}

	v := domain.Version{
		ID:         newID(),
		GroupID:    groupID,
		Number:     prev.Number + 1,
		IsLatest:   true,
		Title:      input.Title,
		Content:    input.Content,
		SourceURL:  input.SourceURL,
		Note:       input.Note,
		IsFavorite: prev.IsFavorite,
		CreatedAt:  prev.CreatedAt,
		UpdatedAt:  time.Now(),
	}
	if err := s.prompts.InsertVersion(ctx, v); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", err)
	}

	resolved, err := s.resolver.Resolve(ctx, input.Tags)
	if err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", err)
	}
	if err := s.associate(ctx, v.ID, resolved); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.Update: %w", err)
	}
	v.Tags = resolved
	return v, nil
}

// GetLatest returns the latest version of a group with its tags loaded.
func (s *PromptService) GetLatest(ctx context.Context, groupID uuid.UUID) (domain.Version, error) {
	v, err := s.prompts.GetLatest(ctx, groupID)
	if err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.GetLatest: %w", err)
	}
	if v.Tags, err = s.tags.ListByVersion(ctx, v.ID); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.GetLatest: %w", err)
	}
	return v, nil
}

// GetVersion returns any version row, latest or historical, with its tags.
func (s *PromptService) GetVersion(ctx context.Context, versionID uuid.UUID) (domain.Version, error) {
	v, err := s.prompts.GetByID(ctx, versionID)
	if err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.GetVersion: %w", err)
	}
	if v.Tags, err = s.tags.ListByVersion(ctx, v.ID); err != nil {
		return domain.Version{}, fmt.Errorf("service.PromptService.GetVersion: %w", err)
	}
	return v, nil
}

// History returns every version of a group, newest first. Tags are not
// loaded for historical entries; callers that need the tags of a specific
// version should use GetVersion. An unknown group yields an empty history.
func (s *PromptService) History(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error) {
	versions, err := s.prompts.History(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("service.PromptService.History: %w", err)
	}
	for i := range versions {
		versions[i].Tags = []domain.Tag{}
	}
	return versions, nil
}

// List returns one page of latest versions matching the query, newest
// update first, with tags loaded, plus the total match count.
func (s *PromptService) List(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error) {
	versions, total, err := s.prompts.ListLatest(ctx, q, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.PromptService.List: %w", err)
	}
	if err := s.loadTags(ctx, versions); err != nil {
		return nil, 0, fmt.Errorf("service.PromptService.List: %w", err)
	}
	return versions, total, nil
}

// Recent returns the most recently used prompts for the tray projection.
func (s *PromptService) Recent(ctx context.Context, limit int) ([]domain.Version, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	versions, err := s.prompts.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service.PromptService.Recent: %w", err)
	}
	if err := s.loadTags(ctx, versions); err != nil {
		return nil, fmt.Errorf("service.PromptService.Recent: %w", err)
	}
	return versions, nil
}

// Delete removes the whole group: every version and every tag association
// those versions held. Tags themselves survive. Deleting an unknown group
// is a no-op success, matching the store's lenient single-user contract.
func (s *PromptService) Delete(ctx context.Context, groupID uuid.UUID) (bool, error) {
	if _, err := s.prompts.DeleteGroup(ctx, groupID.String()); err != nil {
		return false, fmt.Errorf("service.PromptService.Delete: %w", err)
	}
	return true, nil
}

// ToggleFavorite flips the group's favorite flag. The flag is read from the
// latest version and written to every version row so the group-level
// semantic holds no matter which row a later read path picks. An unknown
// group is caller misuse, not an error: it logs a warning and reports false.
func (s *PromptService) ToggleFavorite(ctx context.Context, groupID uuid.UUID) (bool, error) {
	latest, err := s.prompts.GetLatest(ctx, groupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("toggle favorite on unknown prompt group", "group_id", groupID)
			return false, nil
		}
		return false, fmt.Errorf("service.PromptService.ToggleFavorite: %w", err)
	}

	next := !latest.IsFavorite
	if _, err := s.prompts.SetFavorite(ctx, groupID, next); err != nil {
		return false, fmt.Errorf("service.PromptService.ToggleFavorite: %w", err)
	}
	return next, nil
}

// MarkUsed stamps the version's last-used time and asks the shell to
// refresh its recent-prompts projection. The refresh is fire-and-forget:
// the stamp succeeds whether or not a shell is listening.
func (s *PromptService) MarkUsed(ctx context.Context, versionID uuid.UUID) (bool, error) {
	v, err := s.prompts.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("mark used on unknown prompt version", "version_id", versionID)
			return false, nil
		}
		return false, fmt.Errorf("service.PromptService.MarkUsed: %w", err)
	}

	ok, err := s.prompts.TouchLastUsed(ctx, versionID, time.Now())
	if err != nil {
		return false, fmt.Errorf("service.PromptService.MarkUsed: %w", err)
	}
	if ok {
		go s.emitter.PromptUsed(v.GroupID)
	}
	return ok, nil
}

// associate links each resolved tag to the version row.
func (s *PromptService) associate(ctx context.Context, versionID uuid.UUID, tags []domain.Tag) error {
	for _, tag := range tags {
		if err := s.tags.Associate(ctx, versionID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// loadTags fills in the tag set of each version in place.
func (s *PromptService) loadTags(ctx context.Context, versions []domain.Version) error {
	for i := range versions {
		tags, err := s.tags.ListByVersion(ctx, versions[i].ID)
		if err != nil {
			return err
		}
		versions[i].Tags = tags
	}
	return nil
}

// validateInput enforces the rules common to Create and Update:
// title and content must be non-empty (whitespace-only is rejected).
func validateInput(input domain.VersionInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	return nil
}
