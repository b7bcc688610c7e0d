// Package domain contains the core data types for the PromptGenie backend.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Version is one immutable snapshot of a prompt at a point in its edit
// history. All versions of one logical prompt share a GroupID; exactly one
// of them carries IsLatest. Old versions are never edited, only read.
type Version struct {
	ID         uuid.UUID  `json:"id"`
	GroupID    uuid.UUID  `json:"group_id"`
	Number     int        `json:"version"`
	IsLatest   bool       `json:"is_latest"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	SourceURL  string     `json:"source_url,omitempty"`
	Note       string     `json:"note,omitempty"`
	IsFavorite bool       `json:"is_favorite"`
	CreatedAt  time.Time  `json:"created_at"` // origin time of the group, identical across versions
	UpdatedAt  time.Time  `json:"updated_at"` // creation time of this version
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Tags       []Tag      `json:"tags"`
}

// VersionInput carries the caller-supplied fields for creating a prompt or
// appending a new version to an existing group.
type VersionInput struct {
	Title     string
	Content   string
	SourceURL string
	Note      string
	Tags      []TagRef
}

// ListQuery narrows the latest-version listing. The zero value returns
// everything, newest update first.
type ListQuery struct {
	// Term matches case-insensitively against title, content, and note.
	Term string
	// TagID restricts results to prompts whose latest version carries the tag.
	TagID *uuid.UUID
	// FavoriteOnly drops non-favorite prompts.
	FavoriteOnly bool
}
