package models

import "strings"

// IDKind discriminates deterministic composite ids from random ones.
type IDKind int

const (
	IDComposite IDKind = iota + 1
	IDRandom
)

func (k IDKind) String() string {
	switch k {
	case IDComposite:
		return "composite"
	case IDRandom:
		return "random"
	default:
		return "unknown"
	}
}

// RegistrationID is either Composite(parts) or Random(uuid).
type RegistrationID struct {
	kind  IDKind
	parts []string
	value string
}

// CompositeID joins business fields with underscores, e.g. S1_I1_Monday_15:00.
func CompositeID(parts ...string) RegistrationID {
	cp := append([]string(nil), parts...)
	return RegistrationID{kind: IDComposite, parts: cp, value: strings.Join(cp, "_")}
}

// RandomID wraps a generated unique identifier.
func RandomID(value string) RegistrationID {
	return RegistrationID{kind: IDRandom, value: value}
}

// Kind returns the id discriminant.
func (id RegistrationID) Kind() IDKind { return id.kind }

// Parts returns the composite components; nil for random ids.
func (id RegistrationID) Parts() []string { return append([]string(nil), id.parts...) }

// IsZero reports whether the id was never assigned.
func (id RegistrationID) IsZero() bool { return id.value == "" }

func (id RegistrationID) String() string { return id.value }
