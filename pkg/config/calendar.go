package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const dateLayout = "2006-01-02"

// Calendar lists the trimesters of the program in chronological order.
type Calendar struct {
	Trimesters []TrimesterDates
}

// TrimesterDates bounds one trimester. EnrollmentOpens marks the start of its sign-up window.
type TrimesterDates struct {
	Name            string
	Start           time.Time
	End             time.Time
	EnrollmentOpens time.Time
}

type calendarFile struct {
	Trimesters []struct {
		Name            string `yaml:"name"`
		Start           string `yaml:"start"`
		End             string `yaml:"end"`
		EnrollmentOpens string `yaml:"enrollment_opens"`
	} `yaml:"trimesters"`
}

// LoadCalendar reads a YAML calendar file. Missing enrollment_opens dates default to start minus lead.
func LoadCalendar(path string, lead time.Duration) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}
	return ParseCalendar(raw, lead)
}

// ParseCalendar decodes a YAML calendar document.
func ParseCalendar(raw []byte, lead time.Duration) (*Calendar, error) {
	var doc calendarFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	if len(doc.Trimesters) == 0 {
		return nil, fmt.Errorf("calendar has no trimesters")
	}

	cal := &Calendar{Trimesters: make([]TrimesterDates, 0, len(doc.Trimesters))}
	for i, item := range doc.Trimesters {
		start, err := time.ParseInLocation(dateLayout, item.Start, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("trimester %d start: %w", i, err)
		}
		end, err := time.ParseInLocation(dateLayout, item.End, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("trimester %d end: %w", i, err)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("trimester %d ends before it starts", i)
		}
		opens := start.Add(-lead)
		if item.EnrollmentOpens != "" {
			opens, err = time.ParseInLocation(dateLayout, item.EnrollmentOpens, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("trimester %d enrollment_opens: %w", i, err)
			}
		}
		if i > 0 && !start.After(cal.Trimesters[i-1].Start) {
			return nil, fmt.Errorf("trimester %d is out of order", i)
		}
		cal.Trimesters = append(cal.Trimesters, TrimesterDates{
			Name:            strings.ToLower(strings.TrimSpace(item.Name)),
			Start:           start,
			End:             end,
			EnrollmentOpens: opens,
		})
	}
	return cal, nil
}

// DefaultCalendar synthesises fall/winter/spring terms around the school year containing now,
// plus the following fall so that spring's enrollment window has a target.
func DefaultCalendar(now time.Time, lead time.Duration) *Calendar {
	year := now.Year()
	if now.Month() < time.July {
		year--
	}
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	terms := []TrimesterDates{
		{Name: "fall", Start: day(year, time.September, 1), End: day(year, time.December, 19)},
		{Name: "winter", Start: day(year+1, time.January, 5), End: day(year+1, time.March, 27)},
		{Name: "spring", Start: day(year+1, time.April, 6), End: day(year+1, time.June, 12)},
		{Name: "fall", Start: day(year+1, time.September, 1), End: day(year+1, time.December, 19)},
	}
	for i := range terms {
		terms[i].EnrollmentOpens = terms[i].Start.Add(-lead)
	}
	return &Calendar{Trimesters: terms}
}
