package criteria

import "fmt"

// MalformedPathError is returned when a dotted path is empty, has an empty
// segment, or has more segments than allowed.
type MalformedPathError struct {
	Path   string
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed path %q: %s", e.Path, e.Reason)
}

// MissingSelectionError is returned when an operation needs a resource but
// none was started or selected.
type MissingSelectionError struct {
	Op string
}

func (e *MissingSelectionError) Error() string {
	if e.Op == "" {
		return "no resource selected"
	}
	return fmt.Sprintf("%s: no resource selected", e.Op)
}
