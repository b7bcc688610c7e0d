package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a named, colored label shared across prompts by reference.
// Tags are global — referenced by prompt versions, owned by none of them.
// Name is globally unique and case-sensitive; color is a display hint.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`

	// PromptCount is the number of prompt versions currently carrying the
	// tag. Populated only by the tag listing projection; zero elsewhere.
	PromptCount int `json:"count,omitempty"`
}

// TagRef is a caller-supplied reference to a tag that may or may not exist
// yet. Resolution order: ID when present, then Name, then insert. Once a tag
// exists its stored color is authoritative; Color here only seeds new tags.
type TagRef struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
}
