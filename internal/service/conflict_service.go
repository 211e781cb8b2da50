package service

import (
	"fmt"

	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// ConflictOptions parameterises one conflict check.
type ConflictOptions struct {
	// GroupClass is the resolved class for group candidates; its size is the capacity.
	GroupClass *models.Class
	// SkipCapacityCheck is set only for privileged callers.
	SkipCapacityCheck bool
	// DefaultCapacity applies when the class size is unknown.
	DefaultCapacity int
	// ExcludeID ignores one existing registration, e.g. the row being updated.
	ExcludeID string
}

type interval struct {
	start, end int
}

func (i interval) overlaps(o interval) bool {
	return i.start < o.end && o.start < i.end
}

func lessonInterval(r models.Registration) (interval, bool) {
	start, err := r.StartMinutes()
	if err != nil || r.LengthMinutes <= 0 {
		return interval{}, false
	}
	return interval{start: start, end: start + r.LengthMinutes}, true
}

// DetectConflicts evaluates every admission rule for candidate against the registrations already
// in its trimester table. All rules run; each contributes at most one conflict.
func DetectConflicts(candidate models.Registration, existing []models.Registration, opts ConflictOptions) models.ConflictResult {
	pool := make([]models.Registration, 0, len(existing))
	for _, e := range existing {
		if opts.ExcludeID != "" && e.ID == opts.ExcludeID {
			continue
		}
		pool = append(pool, e)
	}

	var conflicts []models.Conflict
	duplicate := findDuplicate(candidate, pool)
	if duplicate != nil {
		conflicts = append(conflicts, models.Conflict{
			Type:                   models.ConflictDuplicate,
			Message:                fmt.Sprintf("student %s is already registered (%s)", candidate.StudentID, duplicate.ID),
			ExistingRegistrationID: duplicate.ID,
		})
	}

	// The duplicate itself is not also reported as an overlap.
	others := pool
	if duplicate != nil {
		others = make([]models.Registration, 0, len(pool))
		for _, e := range pool {
			if e.ID != duplicate.ID {
				others = append(others, e)
			}
		}
	}

	if c := studentOverlap(candidate, others); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := instructorOverlap(candidate, others); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := classCapacity(candidate, pool, opts); c != nil {
		conflicts = append(conflicts, *c)
	}

	return models.ConflictResult{HasConflicts: len(conflicts) > 0, Conflicts: conflicts}
}

func findDuplicate(candidate models.Registration, pool []models.Registration) *models.Registration {
	key := candidate.DuplicateKey().String()
	for i := range pool {
		e := pool[i]
		if e.RegistrationType != candidate.RegistrationType {
			continue
		}
		if e.DuplicateKey().String() == key || (candidate.ID != "" && e.ID == candidate.ID) {
			return &pool[i]
		}
	}
	return nil
}

func studentOverlap(candidate models.Registration, pool []models.Registration) *models.Conflict {
	if candidate.RegistrationType != models.RegistrationPrivate {
		return nil
	}
	want, ok := lessonInterval(candidate)
	if !ok {
		return nil
	}
	for _, e := range pool {
		if e.StudentID != candidate.StudentID || e.Day != candidate.Day {
			continue
		}
		if got, ok := lessonInterval(e); ok && want.overlaps(got) {
			return &models.Conflict{
				Type: models.ConflictStudentSchedule,
				Message: fmt.Sprintf("student %s already has a lesson on %s at %s for %d minutes",
					candidate.StudentID, e.Day, e.StartTime, e.LengthMinutes),
				ExistingRegistrationID: e.ID,
			}
		}
	}
	return nil
}

func instructorOverlap(candidate models.Registration, pool []models.Registration) *models.Conflict {
	if candidate.InstructorID == "" {
		return nil
	}
	want, ok := lessonInterval(candidate)
	if !ok {
		return nil
	}
	for _, e := range pool {
		if e.InstructorID != candidate.InstructorID || e.Day != candidate.Day {
			continue
		}
		// Classmates share the instructor's slot.
		if candidate.RegistrationType == models.RegistrationGroup && e.ClassID != "" && e.ClassID == candidate.ClassID {
			continue
		}
		if got, ok := lessonInterval(e); ok && want.overlaps(got) {
			return &models.Conflict{
				Type: models.ConflictInstructorSchedule,
				Message: fmt.Sprintf("instructor %s is already teaching on %s at %s for %d minutes",
					candidate.InstructorID, e.Day, e.StartTime, e.LengthMinutes),
				ExistingRegistrationID: e.ID,
			}
		}
	}
	return nil
}

func classCapacity(candidate models.Registration, pool []models.Registration, opts ConflictOptions) *models.Conflict {
	if candidate.RegistrationType != models.RegistrationGroup || opts.SkipCapacityCheck || candidate.ClassID == "" {
		return nil
	}
	count := 0
	for _, e := range pool {
		if e.ClassID == candidate.ClassID {
			count++
		}
	}
	capacity := opts.GroupClass.Capacity(opts.DefaultCapacity)
	if count < capacity {
		return nil
	}
	return &models.Conflict{
		Type:         models.ConflictClassCapacity,
		Message:      fmt.Sprintf("class %s is full (%d/%d)", candidate.ClassID, count, capacity),
		CurrentCount: count,
		MaxCapacity:  capacity,
	}
}

// IDGenerator produces random unique identifiers.
type IDGenerator interface {
	NewID() string
}

// GenerateRegistrationID returns the composite id of candidate, or a random one when random is set.
func GenerateRegistrationID(candidate models.Registration, random bool, ids IDGenerator) models.RegistrationID {
	if random && ids != nil {
		return models.RandomID(ids.NewID())
	}
	return candidate.DuplicateKey()
}
