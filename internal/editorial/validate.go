package editorial

import (
	"fmt"

	"affiliateprograms.wiki/internal/entity"
)

// validateSubmission checks the static shape of a new proposal: a known
// entity kind, a non-empty change set, and only recognized field names.
func validateSubmission(kind entity.Kind, changes map[string]any) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrValidation, kind)
	}
	if len(changes) == 0 {
		return fmt.Errorf("%w: empty change set", ErrValidation)
	}
	for field := range changes {
		if !entity.KnownField(kind, field) {
			return fmt.Errorf("%w: unknown field %q for entity type %q", ErrValidation, field, kind)
		}
	}
	return nil
}
