package dto

import (
	"time"

	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// RegistrationListQuery captures the filters of GET /registrations.
type RegistrationListQuery struct {
	Period       string `form:"period"`
	StudentID    string `form:"studentId"`
	InstructorID string `form:"instructorId"`
	ClassID      string `form:"classId"`
	Day          string `form:"day"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// TargetQuery optionally overrides the routed trimester of a write.
type TargetQuery struct {
	Trimester string `form:"trimester"`
}

// TrimesterOverview is the payload of GET /trimesters.
type TrimesterOverview struct {
	Current          string            `json:"current"`
	Enrollment       string            `json:"enrollment"`
	EnrollmentWindow bool              `json:"enrollment_window"`
	AsOf             time.Time         `json:"as_of"`
	Calendar         []TrimesterWindow `json:"calendar"`
}

// TrimesterWindow describes one calendar entry.
type TrimesterWindow struct {
	Trimester       models.Trimester `json:"trimester"`
	Table           string           `json:"table"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	EnrollmentOpens time.Time        `json:"enrollment_opens"`
}

// TokenResponse is returned by the development token command.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
