package tool

import "unicode"

// ValidateName checks that name can identify a tool: non-empty, no
// whitespace and no control characters.
func ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Reason: "name is empty"}
	}
	for _, r := range name {
		switch {
		case r == unicode.ReplacementChar:
			return &InvalidNameError{Name: name, Reason: "name is not valid UTF-8"}
		case unicode.IsControl(r):
			return &InvalidNameError{Name: name, Reason: "name contains a control character"}
		case unicode.IsSpace(r):
			return &InvalidNameError{Name: name, Reason: "name contains whitespace"}
		}
	}
	return nil
}
