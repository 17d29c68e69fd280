// CLAUDE:SUMMARY Sentinel errors for the veille service: unknown competitor, invalid input, missing record.
package veille

import (
	"errors"

	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// ErrUnknownCompetitor is returned when a lookup names a competitor absent from the configuration.
var ErrUnknownCompetitor = errors.New("veille: unknown competitor")

// ErrInvalidInput is returned when configuration or request input fails validation.
var ErrInvalidInput = errors.New("veille: invalid input")

// ErrNotFound is returned when a record looked up by ID does not exist.
var ErrNotFound = store.ErrNotFound
