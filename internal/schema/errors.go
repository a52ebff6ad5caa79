package schema

import (
	"fmt"
	"strings"
)

// IncompleteContentError is the hard validation failure: the document is
// missing more required sections than the tolerance policy allows.
type IncompleteContentError struct {
	MissingSections []string
	Allowed         int
}

func (e *IncompleteContentError) Error() string {
	return fmt.Sprintf("incomplete content: %d required sections missing (tolerance %d): %s",
		len(e.MissingSections), e.Allowed, strings.Join(e.MissingSections, ", "))
}
