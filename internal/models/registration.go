package models

import (
	"strings"
	"time"
)

// Day is a lesson weekday. Lessons only run Monday through Friday.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

// Days lists lesson days in week order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseDay accepts full or three-letter day names in any case.
func ParseDay(raw string) (Day, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if len(v) < 3 {
		return "", false
	}
	for _, d := range Days {
		name := strings.ToLower(string(d))
		if v == name || v == name[:3] {
			return d, true
		}
	}
	return "", false
}

// RegistrationType distinguishes private lessons from group classes.
type RegistrationType string

const (
	RegistrationPrivate RegistrationType = "private"
	RegistrationGroup   RegistrationType = "group"
)

// Valid reports whether t is a known registration type.
func (t RegistrationType) Valid() bool {
	return t == RegistrationPrivate || t == RegistrationGroup
}

// Registration is one student's enrollment in a private lesson or group class for a trimester.
type Registration struct {
	ID                 string           `json:"id"`
	StudentID          string           `json:"student_id"`
	InstructorID       string           `json:"instructor_id"`
	Day                Day              `json:"day"`
	StartTime          string           `json:"start_time"`
	LengthMinutes      int              `json:"length"`
	RegistrationType   RegistrationType `json:"registration_type"`
	RoomID             string           `json:"room_id"`
	Instrument         string           `json:"instrument"`
	TransportationType string           `json:"transportation_type"`
	Notes              string           `json:"notes"`
	ClassID            string           `json:"class_id,omitempty"`
	ClassTitle         string           `json:"class_title,omitempty"`
	ExpectedStartDate  string           `json:"expected_start_date"`
	CreatedAt          time.Time        `json:"created_at"`
	CreatedBy          string           `json:"created_by"`
}

// StartMinutes returns the lesson start as minutes since midnight.
func (r Registration) StartMinutes() (int, error) {
	return ParseClockTime(r.StartTime)
}

// DuplicateKey is the composite identity of the booking, independent of the stored id.
func (r Registration) DuplicateKey() RegistrationID {
	if r.RegistrationType == RegistrationGroup {
		return CompositeID(r.StudentID, r.ClassID)
	}
	start := r.StartTime
	if normalized, err := NormalizeClockTime(r.StartTime); err == nil {
		start = normalized
	}
	return CompositeID(r.StudentID, r.InstructorID, string(r.Day), start)
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	StudentID    string
	InstructorID string
	ClassID      string
	Day          Day
}

// Matches reports whether r satisfies every non-empty filter field.
func (f RegistrationFilter) Matches(r Registration) bool {
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.InstructorID != "" && r.InstructorID != f.InstructorID {
		return false
	}
	if f.ClassID != "" && r.ClassID != f.ClassID {
		return false
	}
	if f.Day != "" && r.Day != f.Day {
		return false
	}
	return true
}
