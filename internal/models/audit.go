package models

import "time"

// AuditRecord is an immutable snapshot written alongside every registration create or delete.
// Its field set is a superset of Registration so history never needs the live table.
type AuditRecord struct {
	ID                 string           `json:"id"`
	RegistrationID     string           `json:"registration_id"`
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
	IsDeleted          bool             `json:"is_deleted"`
	DeletedAt          *time.Time       `json:"deleted_at,omitempty"`
	DeletedBy          string           `json:"deleted_by,omitempty"`
}

// NewAuditSnapshot copies every registration field into a fresh audit record.
func NewAuditSnapshot(id string, r Registration) AuditRecord {
	return AuditRecord{
		ID:                 id,
		RegistrationID:     r.ID,
		StudentID:          r.StudentID,
		InstructorID:       r.InstructorID,
		Day:                r.Day,
		StartTime:          r.StartTime,
		LengthMinutes:      r.LengthMinutes,
		RegistrationType:   r.RegistrationType,
		RoomID:             r.RoomID,
		Instrument:         r.Instrument,
		TransportationType: r.TransportationType,
		Notes:              r.Notes,
		ClassID:            r.ClassID,
		ClassTitle:         r.ClassTitle,
		ExpectedStartDate:  r.ExpectedStartDate,
		CreatedAt:          r.CreatedAt,
		CreatedBy:          r.CreatedBy,
	}
}

// Registration rebuilds the registration as it was when the record was written.
func (a AuditRecord) Registration() Registration {
	return Registration{
		ID:                 a.RegistrationID,
		StudentID:          a.StudentID,
		InstructorID:       a.InstructorID,
		Day:                a.Day,
		StartTime:          a.StartTime,
		LengthMinutes:      a.LengthMinutes,
		RegistrationType:   a.RegistrationType,
		RoomID:             a.RoomID,
		Instrument:         a.Instrument,
		TransportationType: a.TransportationType,
		Notes:              a.Notes,
		ClassID:            a.ClassID,
		ClassTitle:         a.ClassTitle,
		ExpectedStartDate:  a.ExpectedStartDate,
		CreatedAt:          a.CreatedAt,
		CreatedBy:          a.CreatedBy,
	}
}
