package models

// DefaultClassCapacity applies when a class row carries no usable size.
const DefaultClassCapacity = 12

// Class is a group lesson offering from the catalog. It is authoritative for schedule and capacity.
type Class struct {
	ID            string `json:"id"`
	InstructorID  string `json:"instructor_id"`
	Day           Day    `json:"day"`
	StartTime     string `json:"start_time"`
	LengthMinutes int    `json:"length"`
	Instrument    string `json:"instrument"`
	Title         string `json:"title"`
	Size          int    `json:"size"`
	MinGrade      int    `json:"min_grade"`
	MaxGrade      int    `json:"max_grade"`
	RoomID        string `json:"room_id"`
}

// Capacity returns the class size, falling back to fallback (or DefaultClassCapacity) when unknown.
func (c *Class) Capacity(fallback int) int {
	if c != nil && c.Size > 0 {
		return c.Size
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultClassCapacity
}
