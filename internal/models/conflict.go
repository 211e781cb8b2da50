package models

import "strings"

// ConflictType names the rule a candidate registration violated.
type ConflictType string

const (
	ConflictDuplicate          ConflictType = "duplicate"
	ConflictStudentSchedule    ConflictType = "student_schedule"
	ConflictInstructorSchedule ConflictType = "instructor_schedule"
	ConflictClassCapacity      ConflictType = "class_capacity"
)

// Conflict describes one reason a registration cannot be admitted.
type Conflict struct {
	Type                   ConflictType `json:"type"`
	Message                string       `json:"message"`
	ExistingRegistrationID string       `json:"existing_registration_id,omitempty"`
	CurrentCount           int          `json:"current_count,omitempty"`
	MaxCapacity            int          `json:"max_capacity,omitempty"`
}

// ConflictResult is the outcome of a conflict check.
type ConflictResult struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// Has reports whether a conflict of the given type was found.
func (r ConflictResult) Has(t ConflictType) bool {
	for _, c := range r.Conflicts {
		if c.Type == t {
			return true
		}
	}
	return false
}

// RegistrationConflictError is returned when a candidate collides with existing registrations.
type RegistrationConflictError struct {
	Conflicts []Conflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *RegistrationConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return "registration conflicts: " + strings.Join(msgs, "; ")
}
