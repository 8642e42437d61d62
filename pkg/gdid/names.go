package gdid

import (
	"fmt"
	"regexp"
)

// DefaultNamePattern matches scope and sequence names. Names never contain
// '/', which storage backends use as a key separator.
const DefaultNamePattern = `^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`

// NameValidator checks scope and sequence names before any I/O.
type NameValidator struct {
	re *regexp.Regexp
}

var defaultNames = MustNameValidator(DefaultNamePattern)

// NewNameValidator compiles pattern. An empty pattern selects DefaultNamePattern.
func NewNameValidator(pattern string) (*NameValidator, error) {
	if pattern == "" {
		pattern = DefaultNamePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("gdid: name pattern: %w", err)
	}
	return &NameValidator{re: re}, nil
}

// MustNameValidator is like NewNameValidator but panics on a bad pattern.
func MustNameValidator(pattern string) *NameValidator {
	v, err := NewNameValidator(pattern)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns a KindInvalidName AllocationError when either name is rejected.
// A nil validator uses the default pattern.
func (v *NameValidator) Validate(scope, sequence string) error {
	if v == nil {
		v = defaultNames
	}
	if scope == "" || !v.re.MatchString(scope) {
		return NewError(KindInvalidName, scope, sequence, fmt.Errorf("%w: scope %q", ErrInvalidName, scope))
	}
	if sequence == "" || !v.re.MatchString(sequence) {
		return NewError(KindInvalidName, scope, sequence, fmt.Errorf("%w: sequence %q", ErrInvalidName, sequence))
	}
	return nil
}

// ValidateScope checks a scope name alone.
func (v *NameValidator) ValidateScope(scope string) error {
	if v == nil {
		v = defaultNames
	}
	if scope == "" || !v.re.MatchString(scope) {
		return NewError(KindInvalidName, scope, "", fmt.Errorf("%w: scope %q", ErrInvalidName, scope))
	}
	return nil
}

// ValidateNames checks names against DefaultNamePattern.
func ValidateNames(scope, sequence string) error {
	return defaultNames.Validate(scope, sequence)
}
