package models

import (
	"strings"
	"time"
)

// Trimester names a school term.
type Trimester string

const (
	TrimesterFall   Trimester = "fall"
	TrimesterWinter Trimester = "winter"
	TrimesterSpring Trimester = "spring"
)

const (
	registrationTablePrefix = "registrations_"
	auditTableSuffix        = "_audit"
)

// Valid reports whether t is one of the three program terms.
func (t Trimester) Valid() bool {
	return t == TrimesterFall || t == TrimesterWinter || t == TrimesterSpring
}

// Table returns the physical registrations table for the trimester.
func (t Trimester) Table() string {
	return registrationTablePrefix + string(t)
}

// TrimesterFromTable parses registrations_<trimester> table names.
func TrimesterFromTable(table string) (Trimester, bool) {
	if !strings.HasPrefix(table, registrationTablePrefix) {
		return "", false
	}
	t := Trimester(strings.TrimPrefix(table, registrationTablePrefix))
	return t, t.Valid()
}

// AuditTable returns the audit companion of a registrations table.
func AuditTable(table string) string {
	return table + auditTableSuffix
}

// TrimesterTables is the routing answer for a given day.
type TrimesterTables struct {
	Current          string    `json:"current"`
	Enrollment       string    `json:"enrollment"`
	EnrollmentWindow bool      `json:"enrollment_window"`
	AsOf             time.Time `json:"as_of"`
}
