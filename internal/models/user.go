package models

// UserRole represents the roles carried in access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleParent     UserRole = "PARENT"
)

// Privileged reports whether the role may bypass class capacity and target any trimester.
func (r UserRole) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Student is a lesson program participant.
type Student struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Grade       int    `json:"grade"`
	ParentEmail string `json:"parent_email"`
}

// FullName joins first and last names.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// DayAvailability is an instructor's teaching window and room on one weekday.
type DayAvailability struct {
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}

// Available reports whether the window is set.
func (a DayAvailability) Available() bool {
	return a.Start != "" && a.End != ""
}

// Instructor teaches private lessons and group classes.
type Instructor struct {
	ID           string                  `json:"id"`
	FirstName    string                  `json:"first_name"`
	LastName     string                  `json:"last_name"`
	Email        string                  `json:"email"`
	Instruments  []string                `json:"instruments"`
	Availability map[Day]DayAvailability `json:"availability"`
}

// FullName joins first and last names.
func (i Instructor) FullName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// RoomFor returns the instructor's room on day, or "" when none is assigned.
func (i Instructor) RoomFor(day Day) string {
	if i.Availability == nil {
		return ""
	}
	return i.Availability[day].RoomID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
