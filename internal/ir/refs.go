package ir

import (
	"fmt"
	"strings"
)

// EventRef is a reference to an event as written in a model.
// Instance is empty for a bare identifier.
type EventRef struct {
	Instance string `json:"instance,omitempty"`
	Name     string `json:"name"`
}

// Ref builds a dotted reference "instance.name".
func Ref(instance, name string) EventRef {
	return EventRef{Instance: instance, Name: name}
}

// Bare builds a bare (undotted) reference.
func Bare(name string) EventRef {
	return EventRef{Name: name}
}

// IsBare reports whether the reference has no instance qualifier.
func (r EventRef) IsBare() bool {
	return r.Instance == ""
}

// String renders the reference in dotted form.
func (r EventRef) String() string {
	if r.Instance == "" {
		return r.Name
	}
	return r.Instance + "." + r.Name
}

// ParseEventRef parses "name" or "instance.name".
func ParseEventRef(s string) (EventRef, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		if !IsIdentifier(parts[0]) {
			return EventRef{}, fmt.Errorf("invalid event reference %q", s)
		}
		return Bare(parts[0]), nil
	case 2:
		if !IsIdentifier(parts[0]) || !IsIdentifier(parts[1]) {
			return EventRef{}, fmt.Errorf("invalid event reference %q", s)
		}
		return Ref(parts[0], parts[1]), nil
	default:
		return EventRef{}, fmt.Errorf("invalid event reference %q: expected name or instance.name", s)
	}
}

// IsIdentifier reports whether s is a valid model identifier:
// a letter or underscore followed by letters, digits or underscores.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
