package armature

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrCascadeInProgress = errors.New("Armature is being updated, reentrant mutation rejected")

// DegenerateBoneError reports a zero length bone. The bone keeps its previous
// orientation, so callers usually log it and go on.
type DegenerateBoneError struct {
	Bone string
	Err  error
}

func (e *DegenerateBoneError) Error() string {
	return fmt.Sprintf("Degenerate bone %q: %v", e.Bone, e.Err)
}

func (e *DegenerateBoneError) Unwrap() error { return e.Err }

// StructuralError aborts a hierarchy edit or an import; the armature is left
// as it was before the call.
type StructuralError struct {
	Op     string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func structuralf(op string, format string, a ...interface{}) error {
	return errors.WithStack(&StructuralError{Op: op, Reason: fmt.Sprintf(format, a...)})
}

func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

func IsDegenerate(err error) bool {
	var de *DegenerateBoneError
	return errors.As(err, &de)
}
