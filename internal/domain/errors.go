package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnsupportedFormat is returned by the import service when the document's
// format version has a different major component than the one this build
// writes. No partial import is attempted.
// Handlers should map this to HTTP 400.
var ErrUnsupportedFormat = errors.New("unsupported format")
