package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/promptgenie/internal/domain"
)

// TagRepo defines the persistence operations for tags and the prompt_tags
// join table.
type TagRepo interface {
	// GetByID returns the tag with the given id.
	// Returns domain.ErrNotFound if no such tag exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tag, error)

	// GetByName returns the tag with the given name (case-sensitive match).
	// Returns domain.ErrNotFound if no such tag exists.
	GetByName(ctx context.Context, name string) (domain.Tag, error)

	// Insert inserts a new tag row. A duplicate name surfaces as an error
	// for which IsUniqueViolation reports true; the caller decides how to
	// recover.
	Insert(ctx context.Context, tag domain.Tag) error

	// Update renames/recolors a tag in place. Identity and associations are
	// untouched. Returns false when the tag does not exist.
	Update(ctx context.Context, id uuid.UUID, name, color string) (bool, error)

	// UpdateColor changes only the color. Returns false when the tag does
	// not exist. Used by overwrite-mode import.
	UpdateColor(ctx context.Context, id uuid.UUID, color string) (bool, error)

	// Delete removes all associations to the tag, then the tag row itself.
	// Deleting a nonexistent tag is a no-op, not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListWithCounts returns all tags ordered by name, each carrying the
	// number of prompt versions currently associated with it.
	ListWithCounts(ctx context.Context) ([]domain.Tag, error)

	// ListByVersion returns the tags associated with one version row,
	// ordered by name.
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.Tag, error)

	// Associate links a tag to a version row. Idempotent — no error if
	// already linked.
	Associate(ctx context.Context, versionID, tagID uuid.UUID) error
}

// sqliteTagRepo is the SQLite implementation of TagRepo.
type sqliteTagRepo struct {
	db db
}

// NewTagRepo constructs a TagRepo backed by the provided db handle.
func NewTagRepo(db db) TagRepo {
	return &sqliteTagRepo{db: db}
}

func (r *sqliteTagRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Tag, error) {
	const q = `SELECT id, name, color, created_at FROM tags WHERE id = ?`

	row := r.db.QueryRowContext(ctx, q, id.String())
	tag, err := scanTag(row)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("repo.TagRepo.GetByID: %w", err)
	}
	return tag, nil
}

func (r *sqliteTagRepo) GetByName(ctx context.Context, name string) (domain.Tag, error) {
	const q = `SELECT id, name, color, created_at FROM tags WHERE name = ?`

	row := r.db.QueryRowContext(ctx, q, name)
	tag, err := scanTag(row)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("repo.TagRepo.GetByName: %w", err)
	}
	return tag, nil
}

// Insert deliberately does not wrap the driver error: the caller needs the
// raw error for IsUniqueViolation on the tags.name race.
func (r *sqliteTagRepo) Insert(ctx context.Context, tag domain.Tag) error {
	const q = `INSERT INTO tags (id, name, color, created_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		tag.ID.String(), tag.Name, tag.Color, formatTime(tag.CreatedAt))
	return err
}

func (r *sqliteTagRepo) Update(ctx context.Context, id uuid.UUID, name, color string) (bool, error) {
	const q = `UPDATE tags SET name = ?, color = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, q, name, color, id.String())
	if err != nil {
		return false, fmt.Errorf("repo.TagRepo.Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repo.TagRepo.Update: rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *sqliteTagRepo) UpdateColor(ctx context.Context, id uuid.UUID, color string) (bool, error) {
	const q = `UPDATE tags SET color = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, q, color, id.String())
	if err != nil {
		return false, fmt.Errorf("repo.TagRepo.UpdateColor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repo.TagRepo.UpdateColor: rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes associations before the row so the foreign key never
// blocks. Order also keeps a mid-sequence failure recoverable: a tag with
// no associations is valid state, dangling associations are not.
func (r *sqliteTagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM prompt_tags WHERE tag_id = ?`, id.String()); err != nil {
		return fmt.Errorf("repo.TagRepo.Delete: associations: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("repo.TagRepo.Delete: %w", err)
	}
	return nil
}

func (r *sqliteTagRepo) ListWithCounts(ctx context.Context) ([]domain.Tag, error) {
	const q = `
		SELECT t.id, t.name, t.color, t.created_at, COUNT(pt.prompt_id)
		FROM tags t
		LEFT JOIN prompt_tags pt ON pt.tag_id = t.id
		GROUP BY t.id, t.name, t.color, t.created_at
		ORDER BY t.name ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListWithCounts: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var (
			tag     domain.Tag
			id      string
			created string
		)
		if err := rows.Scan(&id, &tag.Name, &tag.Color, &created, &tag.PromptCount); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ListWithCounts: scan: %w", err)
		}
		if tag.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ListWithCounts: parse id: %w", err)
		}
		if tag.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ListWithCounts: parse created_at: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListWithCounts: rows: %w", err)
	}
	return tags, nil
}

func (r *sqliteTagRepo) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.Tag, error) {
	const q = `
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t
		JOIN prompt_tags pt ON pt.tag_id = t.id
		WHERE pt.prompt_id = ?
		ORDER BY t.name ASC`

	rows, err := r.db.QueryContext(ctx, q, versionID.String())
	if err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListByVersion: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TagRepo.ListByVersion: scan: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TagRepo.ListByVersion: rows: %w", err)
	}
	return tags, nil
}

func (r *sqliteTagRepo) Associate(ctx context.Context, versionID, tagID uuid.UUID) error {
	const q = `INSERT OR IGNORE INTO prompt_tags (prompt_id, tag_id) VALUES (?, ?)`

	if _, err := r.db.ExecContext(ctx, q, versionID.String(), tagID.String()); err != nil {
		return fmt.Errorf("repo.TagRepo.Associate: %w", err)
	}
	return nil
}

// scanTag maps a single database row into a domain.Tag.
func scanTag(s scanner) (domain.Tag, error) {
	var (
		tag     domain.Tag
		id      string
		created string
	)
	err := s.Scan(&id, &tag.Name, &tag.Color, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tag{}, domain.ErrNotFound
		}
		return domain.Tag{}, err
	}
	if tag.ID, err = uuid.Parse(id); err != nil {
		return domain.Tag{}, fmt.Errorf("parse id: %w", err)
	}
	if tag.CreatedAt, err = parseTime(created); err != nil {
		return domain.Tag{}, fmt.Errorf("parse created_at: %w", err)
	}
	return tag, nil
}
