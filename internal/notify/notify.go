// Package notify carries best-effort notifications from the core to the
// desktop shell (tray menu, tag-dependent UI). Emission is one-way and
// fire-and-forget: a missing or failing subscriber must never fail the
// operation that triggered the event, so nothing here returns an error.
package notify

import (
	"log/slog"

	"github.com/google/uuid"
)

// TagAction describes what happened to a tag in a TagsChanged event.
type TagAction string

const (
	TagCreated TagAction = "created"
	TagUpdated TagAction = "updated"
	TagDeleted TagAction = "deleted"
)

// Emitter receives core events. Implementations must return quickly;
// services call these inline or from short-lived goroutines.
type Emitter interface {
	// PromptUsed signals that a prompt was copied or pasted, so the shell
	// can refresh its recently-used projection.
	PromptUsed(groupID uuid.UUID)

	// TagsChanged signals a tag mutation, so tag-dependent UI can refresh.
	TagsChanged(action TagAction, tagID uuid.UUID)
}

// NewNoopEmitter returns an Emitter that drops every event. It is the
// default wiring for tests and for headless runs without a shell attached.
func NewNoopEmitter() Emitter {
	return noopEmitter{}
}

type noopEmitter struct{}

func (noopEmitter) PromptUsed(uuid.UUID)             {}
func (noopEmitter) TagsChanged(TagAction, uuid.UUID) {}

// NewLogEmitter returns an Emitter that writes each event as a debug log
// line. It stands in for the shell bridge when the server runs standalone.
func NewLogEmitter(log *slog.Logger) Emitter {
	return &logEmitter{log: log}
}

type logEmitter struct {
	log *slog.Logger
}

func (e *logEmitter) PromptUsed(groupID uuid.UUID) {
	e.log.Debug("prompt used", "group_id", groupID)
}

func (e *logEmitter) TagsChanged(action TagAction, tagID uuid.UUID) {
	e.log.Debug("tags changed", "action", string(action), "tag_id", tagID)
}
