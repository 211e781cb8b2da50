package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/pkg/config"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

// TrimesterWindow describes one calendar entry as exposed to clients.
type TrimesterWindow struct {
	Trimester       models.Trimester `json:"trimester"`
	Table           string           `json:"table"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	EnrollmentOpens time.Time        `json:"enrollment_opens"`
}

// TrimesterService maps the current and enrollment periods onto registrations tables.
type TrimesterService struct {
	windows []TrimesterWindow
	now     func() time.Time
}

// NewTrimesterService validates the calendar. now defaults to time.Now.
func NewTrimesterService(cal *config.Calendar, now func() time.Time) (*TrimesterService, error) {
	if cal == nil || len(cal.Trimesters) == 0 {
		return nil, fmt.Errorf("calendar has no trimesters")
	}
	if now == nil {
		now = time.Now
	}
	windows := make([]TrimesterWindow, 0, len(cal.Trimesters))
	for _, t := range cal.Trimesters {
		tri := models.Trimester(t.Name)
		if !tri.Valid() {
			return nil, fmt.Errorf("unknown trimester %q in calendar", t.Name)
		}
		windows = append(windows, TrimesterWindow{
			Trimester:       tri,
			Table:           tri.Table(),
			Start:           t.Start,
			End:             t.End,
			EnrollmentOpens: t.EnrollmentOpens,
		})
	}
	return &TrimesterService{windows: windows, now: now}, nil
}

// Windows returns the calendar.
func (s *TrimesterService) Windows() []TrimesterWindow {
	return append([]TrimesterWindow(nil), s.windows...)
}

// Resolve routes the given instant. The current trimester is the latest one that has started
// (or the first, before the calendar begins). Once the next trimester's enrollment opens, new
// registrations target its table.
func (s *TrimesterService) Resolve(at time.Time) models.TrimesterTables {
	current := 0
	for i, w := range s.windows {
		if !at.Before(w.Start) {
			current = i
		}
	}
	out := models.TrimesterTables{
		Current:    s.windows[current].Table,
		Enrollment: s.windows[current].Table,
		AsOf:       at,
	}
	if at.Before(s.windows[current].Start) {
		return out
	}
	if next := current + 1; next < len(s.windows) && !at.Before(s.windows[next].EnrollmentOpens) {
		out.Enrollment = s.windows[next].Table
		out.EnrollmentWindow = out.Enrollment != out.Current
	}
	return out
}

// Tables routes the present moment.
func (s *TrimesterService) Tables() models.TrimesterTables {
	return s.Resolve(s.now())
}

// CurrentTable serves cancellations and reporting.
func (s *TrimesterService) CurrentTable() string {
	return s.Tables().Current
}

// EnrollmentTable receives new registrations and their conflict checks.
func (s *TrimesterService) EnrollmentTable() string {
	return s.Tables().Enrollment
}

// ValidateTable rejects anything other than a registrations_<trimester> table.
func (s *TrimesterService) ValidateTable(table string) error {
	if _, ok := models.TrimesterFromTable(table); !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown trimester table %q", table))
	}
	return nil
}

// TableFor resolves an explicit trimester name, or the period keyword current/enrollment.
func (s *TrimesterService) TableFor(period string) (string, error) {
	switch period {
	case "", "current":
		return s.CurrentTable(), nil
	case "enrollment":
		return s.EnrollmentTable(), nil
	}
	tri := models.Trimester(period)
	if !tri.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown trimester %q", period))
	}
	return tri.Table(), nil
}
