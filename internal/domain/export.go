package domain

import "time"

// FormatVersion is the export document format written by this build.
// Import rejects documents whose major component differs.
const FormatVersion = "1.0.0"

// Document is a full, self-contained snapshot of the store: every version of
// every prompt group, every tag definition, and the id-based linkage between
// them. It is the unit of export and import.
//
// IDs are carried as plain strings, not uuid.UUID: a document may come from
// another database and its ids are never trusted to be well-formed, let
// alone globally unique. The import path re-keys as needed.
type Document struct {
	FormatVersion string           `json:"version"`
	ExportedAt    time.Time        `json:"exportDate"`
	Metadata      DocumentMetadata `json:"metadata"`
	Prompts       []DocumentPrompt `json:"prompts"`
	Tags          []DocumentTag    `json:"tags"`
}

// DocumentMetadata describes the snapshot for display purposes.
type DocumentMetadata struct {
	AppVersion  string `json:"appVersion"`
	PromptCount int    `json:"totalPrompts"`
	TagCount    int    `json:"totalTags"`
	ExportedBy  string `json:"exportedBy"`
}

// DocumentPrompt is one logical prompt in a document: group-level fields
// plus every version, oldest first. Tags holds the tag ids attached to the
// latest version.
type DocumentPrompt struct {
	GroupID    string            `json:"promptGroupId"`
	Title      string            `json:"title"`
	IsFavorite bool              `json:"isFavorite"`
	CreatedAt  time.Time         `json:"dateCreated"`
	UpdatedAt  time.Time         `json:"dateModified"`
	Versions   []DocumentVersion `json:"versions"`
	Tags       []string          `json:"tags"`
}

// DocumentVersion is one version row inside a DocumentPrompt.
type DocumentVersion struct {
	ID        string    `json:"id"`
	Number    int       `json:"version"`
	Content   string    `json:"content"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Note      string    `json:"note,omitempty"`
	IsLatest  bool      `json:"isLatest"`
	CreatedAt time.Time `json:"dateCreated"`
}

// DocumentTag is one tag definition inside a Document.
type DocumentTag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"dateCreated"`
}

// ImportMode selects how an incoming prompt group is reconciled against
// existing data with the same group id.
type ImportMode string

const (
	// ImportMerge keeps existing data; content-identical incoming groups are
	// skipped, conflicting-but-new groups are re-keyed and imported.
	ImportMerge ImportMode = "merge"
	// ImportOverwrite deletes the existing group and inserts the incoming
	// one verbatim under the same group id.
	ImportOverwrite ImportMode = "overwrite"
	// ImportSkip leaves any group whose id already exists untouched.
	ImportSkip ImportMode = "skip"
)

// Valid reports whether m is one of the three known modes.
func (m ImportMode) Valid() bool {
	return m == ImportMerge || m == ImportOverwrite || m == ImportSkip
}

// ProgressFunc reports incremental progress of a long export or import.
// stage is "tags" or "prompts"; done counts processed records out of total.
// It is a side channel: errors inside it are the caller's problem.
type ProgressFunc func(stage string, done, total int)

// ImportOptions controls an import pass.
type ImportOptions struct {
	Mode ImportMode `json:"mode"`
	// IncludeVersionHistory imports every version of each group. When false
	// only the latest-flagged version is inserted, renumbered to version 1.
	IncludeVersionHistory bool `json:"includeVersionHistory"`
	// IncludeTags imports tag definitions before prompts. When false, tag
	// references only resolve against tags that already exist locally.
	IncludeTags bool `json:"includeTags"`

	// Progress, when set, is called after each processed record.
	Progress ProgressFunc `json:"-"`
}

// ImportResult reports what an import pass did. Success is false only when
// a structural failure prevented processing the document at all; per-record
// failures land in Errors with Success still true.
type ImportResult struct {
	Success         bool     `json:"success"`
	ImportedPrompts int      `json:"importedPrompts"`
	ImportedTags    int      `json:"importedTags"`
	SkippedPrompts  int      `json:"skippedPrompts"`
	SkippedTags     int      `json:"skippedTags"`
	Errors          []string `json:"errors"`
}
