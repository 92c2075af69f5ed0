package validation

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the rule that a field value violated.
type Kind int

const (
	// MissingField is reported for a mandatory field that is empty.
	MissingField Kind = iota + 1
	// DuplicateValue is reported for a value that is already used within its uniqueness scope.
	DuplicateValue
)

// Message returns the user-facing text for the rule violation.
func (k Kind) Message() string {
	switch k {
	case MissingField:
		return "can't be blank"
	case DuplicateValue:
		return "has already been taken"
	default:
		return "is invalid"
	}
}

// String returns the name of the rule.
func (k Kind) String() string {
	switch k {
	case MissingField:
		return "MissingField"
	case DuplicateValue:
		return "DuplicateValue"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrorSet maps a field name to the messages of all rules that the field violated within one
// validation call. Field names are the JSON names of the fields.
type ErrorSet map[string][]string

// Add records a rule violation for a field. Recording the same violation twice has no effect.
func (s ErrorSet) Add(field string, kind Kind) {
	message := kind.Message()
	if slices.Contains(s[field], message) {
		return
	}
	s[field] = append(s[field], message)
}

// Has returns true if the set contains the rule violation for the field.
func (s ErrorSet) Has(field string, kind Kind) bool {
	return slices.Contains(s[field], kind.Message())
}

// Empty returns true if no rule was violated.
func (s ErrorSet) Empty() bool {
	return len(s) == 0
}

// Merge adds all violations of another set to this one.
func (s ErrorSet) Merge(other ErrorSet) {
	for field, messages := range other {
		for _, message := range messages {
			if !slices.Contains(s[field], message) {
				s[field] = append(s[field], message)
			}
		}
	}
}

// Err returns nil for an empty set, and an *Error carrying the set otherwise.
func (s ErrorSet) Err() error {
	if s.Empty() {
		return nil
	}
	return &Error{Errors: s}
}

// Error is the error value of a failed validation. Callers detect it with errors.As and surface
// the contained set, e.g. as form field messages.
type Error struct {
	Errors ErrorSet
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		for _, message := range e.Errors[field] {
			parts = append(parts, field+" "+message)
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
