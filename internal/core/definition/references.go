package definition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Referential Integrity
// =============================================================================

// ErrMissingReference categorizes referential integrity failures so callers
// can classify them with errors.Is.
var ErrMissingReference = errors.New("referenced definition does not exist")

// ReferenceChecker reports whether a sub-definition of the given kind exists.
// Lookup failures abort the check and surface as-is.
type ReferenceChecker func(kind dsl.Kind, name string) (bool, error)

// ReferentialIntegrityError lists every member of a group whose referenced
// definition is missing. It is always a complete report, never the first
// failure alone.
type ReferentialIntegrityError struct {
	GroupName string
	Missing   []MemberReference
}

func (e *ReferentialIntegrityError) Error() string {
	lines := make([]string, 0, len(e.Missing))
	for _, ref := range e.Missing {
		lines = append(lines, missingMessage(ref))
	}
	return strings.Join(lines, "\n")
}

func (e *ReferentialIntegrityError) Unwrap() error {
	return ErrMissingReference
}

// missingMessage renders the per-member report line.
func missingMessage(ref MemberReference) string {
	switch ref.Kind {
	case dsl.KindStream:
		return fmt.Sprintf("Stream definition '%s' does not exist.", ref.Name)
	case dsl.KindTask:
		return fmt.Sprintf("Task definition '%s' does not exist.", ref.Name)
	case dsl.KindStandalone:
		return fmt.Sprintf("Standalone definition '%s' does not exist.", ref.Name)
	case dsl.KindGroup:
		return fmt.Sprintf("Application group definition '%s' does not exist.", ref.Name)
	default:
		return fmt.Sprintf("Definition '%s' of kind '%s' does not exist.", ref.Name, ref.Kind)
	}
}

// CheckReferences looks up every member of the definition and collects ALL
// missing references into one ReferentialIntegrityError. It never fails fast
// on a missing reference; only a checker failure aborts the scan.
func CheckReferences(def GroupDefinition, exists ReferenceChecker) error {
	var missing []MemberReference
	for _, ref := range def.Members {
		ok, err := exists(ref.Kind, ref.Name)
		if err != nil {
			return fmt.Errorf("checking %s definition %q: %w", ref.Kind, ref.Name, err)
		}
		if !ok {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		return &ReferentialIntegrityError{GroupName: def.Name, Missing: missing}
	}
	return nil
}
