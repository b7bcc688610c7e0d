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
	"github.com/pkordes/promptgenie/internal/repo"
)

// appVersion and exportedBy identify the producer in export metadata.
const (
	appVersion = "1.0.0"
	exportedBy = "PromptGenie"
)

// ExportService assembles full-store snapshots and reconciles external
// snapshots back into the store.
type ExportService struct {
	prompts repo.PromptRepo
	tags    repo.TagRepo
	log     *slog.Logger
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(prompts repo.PromptRepo, tags repo.TagRepo, log *slog.Logger) *ExportService {
	return &ExportService{prompts: prompts, tags: tags, log: log}
}

// Export returns a self-contained snapshot: every version of every group,
// every tag definition, and the id linkage between them. progress may be
// nil.
func (s *ExportService) Export(ctx context.Context, progress domain.ProgressFunc) (domain.Document, error) {
	latest, err := s.prompts.AllLatest(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	prompts := make([]domain.DocumentPrompt, 0, len(latest))
	for i, head := range latest {
		history, err := s.prompts.History(ctx, head.GroupID)
		if err != nil {
			return domain.Document{}, fmt.Errorf("service.ExportService.Export: %w", err)
		}

		// History is newest-first; the document stores versions ascending.
		versions := make([]domain.DocumentVersion, 0, len(history))
		for j := len(history) - 1; j >= 0; j-- {
			v := history[j]
			versions = append(versions, domain.DocumentVersion{
				ID:        v.ID.String(),
				Number:    v.Number,
				Content:   v.Content,
				SourceURL: v.SourceURL,
				Note:      v.Note,
				IsLatest:  v.IsLatest,
				CreatedAt: v.CreatedAt,
			})
		}

		tags, err := s.tags.ListByVersion(ctx, head.ID)
		if err != nil {
			return domain.Document{}, fmt.Errorf("service.ExportService.Export: %w", err)
		}
		tagIDs := make([]string, 0, len(tags))
		for _, t := range tags {
			tagIDs = append(tagIDs, t.ID.String())
		}

		prompts = append(prompts, domain.DocumentPrompt{
			GroupID:    head.GroupID.String(),
			Title:      head.Title,
			IsFavorite: head.IsFavorite,
			CreatedAt:  head.CreatedAt,
			UpdatedAt:  head.UpdatedAt,
			Versions:   versions,
			Tags:       tagIDs,
		})
		if progress != nil {
			progress("prompts", i+1, len(latest))
		}
	}

	allTags, err := s.tags.ListWithCounts(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	docTags := make([]domain.DocumentTag, 0, len(allTags))
	for i, t := range allTags {
		docTags = append(docTags, domain.DocumentTag{
			ID:        t.ID.String(),
			Name:      t.Name,
			Color:     t.Color,
			CreatedAt: t.CreatedAt,
		})
		if progress != nil {
			progress("tags", i+1, len(allTags))
		}
	}

	return domain.Document{
		FormatVersion: domain.FormatVersion,
		ExportedAt:    time.Now(),
		Metadata: domain.DocumentMetadata{
			AppVersion:  appVersion,
			PromptCount: len(prompts),
			TagCount:    len(docTags),
			ExportedBy:  exportedBy,
		},
		Prompts: prompts,
		Tags:    docTags,
	}, nil
}

// Import reconciles a document into the store under the options' conflict
// mode. Per-record failures are contained in the result's error list; only
// a structural problem (unknown format, bad mode) returns an error, in
// which case nothing has been written.
func (s *ExportService) Import(ctx context.Context, doc domain.Document, opts domain.ImportOptions) (domain.ImportResult, error) {
	if err := checkFormatVersion(doc.FormatVersion); err != nil {
		return domain.ImportResult{}, fmt.Errorf("service.ExportService.Import: %w", err)
	}
	if !opts.Mode.Valid() {
		return domain.ImportResult{}, fmt.Errorf("%w: unknown import mode %q", domain.ErrValidation, opts.Mode)
	}

	res := domain.ImportResult{Success: true, Errors: []string{}}

	if opts.IncludeTags {
		for i, tag := range doc.Tags {
			s.importTag(ctx, tag, opts.Mode, &res)
			if opts.Progress != nil {
				opts.Progress("tags", i+1, len(doc.Tags))
			}
		}
	}

	for i, prompt := range doc.Prompts {
		s.importGroup(ctx, prompt, opts, &res)
		if opts.Progress != nil {
			opts.Progress("prompts", i+1, len(doc.Prompts))
		}
	}

	return res, nil
}

// importTag reconciles one incoming tag definition. Lookup is by name: the
// registry's uniqueness invariant is on name, and a foreign id must never
// shadow a local tag.
func (s *ExportService) importTag(ctx context.Context, tag domain.DocumentTag, mode domain.ImportMode, res *domain.ImportResult) {
	existing, err := s.tags.GetByName(ctx, tag.Name)
	switch {
	case err == nil:
		if mode == domain.ImportOverwrite {
			if _, err := s.tags.UpdateColor(ctx, existing.ID, tag.Color); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("import tag %q: %v", tag.Name, err))
				return
			}
			res.ImportedTags++
			return
		}
		res.SkippedTags++

	case errors.Is(err, domain.ErrNotFound):
		id, parseErr := uuid.Parse(tag.ID)
		if parseErr != nil {
			// Foreign ids are never trusted; a malformed one gets replaced.
			id = newID()
		}
		created := tag.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		insert := domain.Tag{ID: id, Name: tag.Name, Color: tag.Color, CreatedAt: created}
		if err := s.tags.Insert(ctx, insert); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("import tag %q: %v", tag.Name, err))
			return
		}
		res.ImportedTags++

	default:
		res.Errors = append(res.Errors, fmt.Sprintf("import tag %q: %v", tag.Name, err))
	}
}

// importGroup reconciles one incoming prompt group.
func (s *ExportService) importGroup(ctx context.Context, prompt domain.DocumentPrompt, opts domain.ImportOptions, res *domain.ImportResult) {
	if len(prompt.Versions) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("import prompt %q: no versions in document", prompt.Title))
		return
	}

	exists, err := s.prompts.GroupExists(ctx, prompt.GroupID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("import prompt %q: %v", prompt.Title, err))
		return
	}

	if exists && opts.Mode == domain.ImportSkip {
		res.SkippedPrompts++
		return
	}

	targetGroup, err := uuid.Parse(prompt.GroupID)
	if err != nil {
		targetGroup = newID()
	}

	if exists {
		switch opts.Mode {
		case domain.ImportOverwrite:
			if _, err := s.prompts.DeleteGroup(ctx, prompt.GroupID); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("delete existing prompt %q: %v", prompt.Title, err))
				return
			}

		case domain.ImportMerge:
			dup, err := s.prompts.HasLatestContent(ctx, prompt.Title, latestDocVersion(prompt).Content)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("import prompt %q: %v", prompt.Title, err))
				return
			}
			if dup {
				// Content-identical to something already here; treated as
				// already present.
				res.SkippedPrompts++
				return
			}
			// Group id collides but the content is new: re-key and import
			// as a new logical prompt, leaving the existing group alone.
			targetGroup = newID()
		}
	}

	inserted := false
	for _, dv := range prompt.Versions {
		if !opts.IncludeVersionHistory && !dv.IsLatest {
			continue
		}

		number, isLatest := dv.Number, dv.IsLatest
		if !opts.IncludeVersionHistory {
			// History truncated: the surviving version restarts the chain.
			number, isLatest = 1, true
		}

		created := dv.CreatedAt
		if created.IsZero() {
			created = prompt.CreatedAt
		}
		if created.IsZero() {
			created = time.Now()
		}
		updated := prompt.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}

		v := domain.Version{
			ID:         newID(), // imported version ids are never reused
			GroupID:    targetGroup,
			Number:     number,
			IsLatest:   isLatest,
			Title:      prompt.Title,
			Content:    dv.Content,
			SourceURL:  dv.SourceURL,
			Note:       dv.Note,
			IsFavorite: prompt.IsFavorite,
			CreatedAt:  created,
			UpdatedAt:  updated,
		}
		if err := s.prompts.InsertVersion(ctx, v); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("import prompt %q v%d: %v", prompt.Title, dv.Number, err))
			continue
		}
		inserted = true

		s.associateImported(ctx, v.ID, prompt.Tags)
	}

	if inserted {
		res.ImportedPrompts++
	}
}

// associateImported links a freshly inserted version to whichever of the
// document's tag ids resolve in the registry. Unresolvable references are
// dropped silently — they are expected whenever includeTags was off or the
// tag import failed.
func (s *ExportService) associateImported(ctx context.Context, versionID uuid.UUID, tagIDs []string) {
	for _, raw := range tagIDs {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if _, err := s.tags.GetByID(ctx, tagID); err != nil {
			continue
		}
		if err := s.tags.Associate(ctx, versionID, tagID); err != nil {
			s.log.Warn("import: tag association failed", "tag_id", tagID, "error", err)
		}
	}
}

// latestDocVersion picks the latest-flagged version of a document prompt,
// falling back to the first entry when the flag is missing.
func latestDocVersion(prompt domain.DocumentPrompt) domain.DocumentVersion {
	for _, v := range prompt.Versions {
		if v.IsLatest {
			return v
		}
	}
	return prompt.Versions[0]
}

// checkFormatVersion rejects documents whose major format component differs
// from ours. Minor/patch drift is read-compatible.
func checkFormatVersion(version string) error {
	if version == "" {
		return fmt.Errorf("%w: document has no format version", domain.ErrUnsupportedFormat)
	}
	if major(version) != major(domain.FormatVersion) {
		return fmt.Errorf("%w: document format %s, this build reads %s",
			domain.ErrUnsupportedFormat, version, domain.FormatVersion)
	}
	return nil
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
