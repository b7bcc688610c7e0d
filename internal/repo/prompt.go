package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/promptgenie/internal/domain"
)

// versionColumns is the column list every prompt SELECT uses, in the order
// scanVersion expects.
const versionColumns = `id, prompt_group_id, version, is_latest, title, content,
	source_url, note, is_favorite, created_at, updated_at, last_used_at`

// PromptRepo defines the persistence operations for prompt version rows.
// The service layer depends on this interface, not the SQLite implementation,
// which allows the service to be unit-tested with a mock.
type PromptRepo interface {
	// InsertVersion inserts one version row exactly as given. The caller is
	// responsible for id generation and chain bookkeeping.
	InsertVersion(ctx context.Context, v domain.Version) error

	// GetLatest returns the latest version of a group, without tags.
	// Returns domain.ErrNotFound if the group has no latest row.
	GetLatest(ctx context.Context, groupID uuid.UUID) (domain.Version, error)

	// GetByID returns any version row by its id, latest or historical,
	// without tags. Returns domain.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, versionID uuid.UUID) (domain.Version, error)

	// ListLatest returns one page of latest versions matching the query,
	// ordered by updated_at descending, plus the total match count.
	ListLatest(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error)

	// AllLatest returns every latest version, ordered by updated_at
	// descending. Used by the export pass.
	AllLatest(ctx context.Context) ([]domain.Version, error)

	// History returns all versions of a group, highest version number first.
	History(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error)

	// MarkNotLatest flips is_latest off for one version row.
	MarkNotLatest(ctx context.Context, versionID uuid.UUID) error

	// GroupExists reports whether any version row carries the group id.
	// The id is a raw string because import documents carry foreign ids.
	GroupExists(ctx context.Context, groupID string) (bool, error)

	// HasLatestContent reports whether any latest version system-wide has
	// exactly this title and content. Used by merge-mode import dedup.
	HasLatestContent(ctx context.Context, title, content string) (bool, error)

	// SetFavorite writes the favorite flag onto every version row of the
	// group and returns the number of rows touched.
	SetFavorite(ctx context.Context, groupID uuid.UUID, favorite bool) (int64, error)

	// TouchLastUsed stamps last_used_at on one version row. Returns false
	// when the row does not exist.
	TouchLastUsed(ctx context.Context, versionID uuid.UUID, at time.Time) (bool, error)

	// Recent returns up to limit versions that have been used, most
	// recently used first.
	Recent(ctx context.Context, limit int) ([]domain.Version, error)

	// DeleteGroup removes every version row of the group and every tag
	// association those rows held, atomically. Returns the number of
	// version rows removed. Tags themselves are never deleted.
	DeleteGroup(ctx context.Context, groupID string) (int64, error)
}

// sqlitePromptRepo is the SQLite implementation of PromptRepo.
type sqlitePromptRepo struct {
	db db
}

// NewPromptRepo constructs a PromptRepo backed by the provided db handle.
// In production pass the handle from Open (optionally wrapped by
// NewRetryingDB); in tests pass a *sql.Tx for rollback isolation.
func NewPromptRepo(db db) PromptRepo {
	return &sqlitePromptRepo{db: db}
}

func (r *sqlitePromptRepo) InsertVersion(ctx context.Context, v domain.Version) error {
	const q = `
		INSERT INTO prompts (id, prompt_group_id, version, is_latest, title, content,
			source_url, note, is_favorite, created_at, updated_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var lastUsed any
	if v.LastUsedAt != nil {
		lastUsed = formatTime(*v.LastUsedAt)
	}
	_, err := r.db.ExecContext(ctx, q,
		v.ID.String(), v.GroupID.String(), v.Number, boolToInt(v.IsLatest),
		v.Title, v.Content, nullableString(v.SourceURL), nullableString(v.Note),
		boolToInt(v.IsFavorite), formatTime(v.CreatedAt), formatTime(v.UpdatedAt), lastUsed)
	if err != nil {
		return fmt.Errorf("repo.PromptRepo.InsertVersion: %w", err)
	}
	return nil
}

func (r *sqlitePromptRepo) GetLatest(ctx context.Context, groupID uuid.UUID) (domain.Version, error) {
	q := `SELECT ` + versionColumns + ` FROM prompts WHERE prompt_group_id = ? AND is_latest = 1`

	row := r.db.QueryRowContext(ctx, q, groupID.String())
	v, err := scanVersion(row)
	if err != nil {
		return domain.Version{}, fmt.Errorf("repo.PromptRepo.GetLatest: %w", err)
	}
	return v, nil
}

func (r *sqlitePromptRepo) GetByID(ctx context.Context, versionID uuid.UUID) (domain.Version, error) {
	q := `SELECT ` + versionColumns + ` FROM prompts WHERE id = ?`

	row := r.db.QueryRowContext(ctx, q, versionID.String())
	v, err := scanVersion(row)
	if err != nil {
		return domain.Version{}, fmt.Errorf("repo.PromptRepo.GetByID: %w", err)
	}
	return v, nil
}

func (r *sqlitePromptRepo) ListLatest(ctx context.Context, q domain.ListQuery, p domain.PaginationParams) ([]domain.Version, int64, error) {
	where := `WHERE p.is_latest = 1`
	var args []any

	if q.Term != "" {
		where += ` AND (p.title LIKE ? OR p.content LIKE ? OR p.note LIKE ?)`
		pattern := "%" + q.Term + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if q.FavoriteOnly {
		where += ` AND p.is_favorite = 1`
	}
	if q.TagID != nil {
		where += ` AND EXISTS (SELECT 1 FROM prompt_tags pt WHERE pt.prompt_id = p.id AND pt.tag_id = ?)`
		args = append(args, q.TagID.String())
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM prompts p ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PromptRepo.ListLatest: count: %w", err)
	}

	pageQuery := `SELECT ` + versionColumns + ` FROM prompts p ` + where +
		` ORDER BY p.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset())

	versions, err := r.queryVersions(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PromptRepo.ListLatest: %w", err)
	}
	return versions, total, nil
}

func (r *sqlitePromptRepo) AllLatest(ctx context.Context) ([]domain.Version, error) {
	q := `SELECT ` + versionColumns + ` FROM prompts WHERE is_latest = 1 ORDER BY updated_at DESC`

	versions, err := r.queryVersions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.PromptRepo.AllLatest: %w", err)
	}
	return versions, nil
}

func (r *sqlitePromptRepo) History(ctx context.Context, groupID uuid.UUID) ([]domain.Version, error) {
	q := `SELECT ` + versionColumns + ` FROM prompts WHERE prompt_group_id = ? ORDER BY version DESC`

	versions, err := r.queryVersions(ctx, q, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("repo.PromptRepo.History: %w", err)
	}
	return versions, nil
}

func (r *sqlitePromptRepo) MarkNotLatest(ctx context.Context, versionID uuid.UUID) error {
	const q = `UPDATE prompts SET is_latest = 0 WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, q, versionID.String()); err != nil {
		return fmt.Errorf("repo.PromptRepo.MarkNotLatest: %w", err)
	}
	return nil
}

func (r *sqlitePromptRepo) GroupExists(ctx context.Context, groupID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM prompts WHERE prompt_group_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("repo.PromptRepo.GroupExists: %w", err)
	}
	return exists, nil
}

func (r *sqlitePromptRepo) HasLatestContent(ctx context.Context, title, content string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM prompts WHERE title = ? AND content = ? AND is_latest = 1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, title, content).Scan(&exists); err != nil {
		return false, fmt.Errorf("repo.PromptRepo.HasLatestContent: %w", err)
	}
	return exists, nil
}

func (r *sqlitePromptRepo) SetFavorite(ctx context.Context, groupID uuid.UUID, favorite bool) (int64, error) {
	const q = `UPDATE prompts SET is_favorite = ? WHERE prompt_group_id = ?`

	res, err := r.db.ExecContext(ctx, q, boolToInt(favorite), groupID.String())
	if err != nil {
		return 0, fmt.Errorf("repo.PromptRepo.SetFavorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repo.PromptRepo.SetFavorite: rows affected: %w", err)
	}
	return n, nil
}

func (r *sqlitePromptRepo) TouchLastUsed(ctx context.Context, versionID uuid.UUID, at time.Time) (bool, error) {
	const q = `UPDATE prompts SET last_used_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, q, formatTime(at), versionID.String())
	if err != nil {
		return false, fmt.Errorf("repo.PromptRepo.TouchLastUsed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repo.PromptRepo.TouchLastUsed: rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *sqlitePromptRepo) Recent(ctx context.Context, limit int) ([]domain.Version, error) {
	q := `SELECT ` + versionColumns + ` FROM prompts
		WHERE last_used_at IS NOT NULL ORDER BY last_used_at DESC LIMIT ?`

	versions, err := r.queryVersions(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("repo.PromptRepo.Recent: %w", err)
	}
	return versions, nil
}

// DeleteGroup removes associations first, then version rows, inside a
// transaction when the handle supports one. A concurrent reader therefore
// never observes a half-deleted group.
func (r *sqlitePromptRepo) DeleteGroup(ctx context.Context, groupID string) (int64, error) {
	run := r.db
	var tx *sql.Tx
	if b, ok := r.db.(beginner); ok {
		var err error
		tx, err = b.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("repo.PromptRepo.DeleteGroup: begin: %w", err)
		}
		defer tx.Rollback()
		run = tx
	}

	const deleteAssociations = `
		DELETE FROM prompt_tags WHERE prompt_id IN
			(SELECT id FROM prompts WHERE prompt_group_id = ?)`
	if _, err := run.ExecContext(ctx, deleteAssociations, groupID); err != nil {
		return 0, fmt.Errorf("repo.PromptRepo.DeleteGroup: associations: %w", err)
	}

	res, err := run.ExecContext(ctx, `DELETE FROM prompts WHERE prompt_group_id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("repo.PromptRepo.DeleteGroup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repo.PromptRepo.DeleteGroup: rows affected: %w", err)
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("repo.PromptRepo.DeleteGroup: commit: %w", err)
		}
	}
	return n, nil
}

// queryVersions runs a SELECT over versionColumns and scans all rows.
func (r *sqlitePromptRepo) queryVersions(ctx context.Context, query string, args ...any) ([]domain.Version, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return versions, nil
}

// scanVersion maps a single database row into a domain.Version.
// It handles the UUID, nullable string, and timestamp conversions.
func scanVersion(s scanner) (domain.Version, error) {
	var (
		v                  domain.Version
		id, groupID        string
		isLatest, favorite int
		sourceURL, note    sql.NullString
		created, updated   string
		lastUsed           sql.NullString
	)

	err := s.Scan(&id, &groupID, &v.Number, &isLatest, &v.Title, &v.Content,
		&sourceURL, &note, &favorite, &created, &updated, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Version{}, domain.ErrNotFound
		}
		return domain.Version{}, err
	}

	if v.ID, err = uuid.Parse(id); err != nil {
		return domain.Version{}, fmt.Errorf("parse id: %w", err)
	}
	if v.GroupID, err = uuid.Parse(groupID); err != nil {
		return domain.Version{}, fmt.Errorf("parse group id: %w", err)
	}
	v.IsLatest = isLatest == 1
	v.IsFavorite = favorite == 1
	v.SourceURL = sourceURL.String
	v.Note = note.String
	if v.CreatedAt, err = parseTime(created); err != nil {
		return domain.Version{}, fmt.Errorf("parse created_at: %w", err)
	}
	if v.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Version{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastUsed.Valid {
		t, err := parseTime(lastUsed.String)
		if err != nil {
			return domain.Version{}, fmt.Errorf("parse last_used_at: %w", err)
		}
		v.LastUsedAt = &t
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString maps "" to NULL so optional fields round-trip as absent.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
