package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-registration-api/internal/cache"
	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/notify"
	"github.com/noah-isme/lesson-registration-api/internal/repository"
	"github.com/noah-isme/lesson-registration-api/pkg/config"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

const fallTable = "registrations_fall"

var fixtureNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

type registrationFixture struct {
	store   *datastore.MemoryStore
	cache   *cache.Memory
	regs    *repository.RegistrationRepository
	audits  *repository.AuditRepository
	metrics *MetricsService
	svc     *RegistrationService
}

func newRegistrationFixture(t require.TestingT, cfg RegistrationServiceConfig) *registrationFixture {
	return newRegistrationFixtureAt(t, cfg, fixtureNow)
}

func newRegistrationFixtureAt(t require.TestingT, cfg RegistrationServiceConfig, now time.Time) *registrationFixture {
	ctx := context.Background()
	clock := func() time.Time { return now }

	store := datastore.NewMemoryStore()
	metrics := NewMetricsService()
	tableCache := cache.NewMemory(cache.DefaultTTL, metrics).WithClock(clock)
	reader := repository.NewTableReader(store, tableCache, nil)

	students := repository.NewStudentRepository(store, reader)
	instructors := repository.NewInstructorRepository(store, reader)
	classes := repository.NewClassRepository(store, reader)
	require.NoError(t, students.EnsureTable(ctx))
	require.NoError(t, instructors.EnsureTable(ctx))
	require.NoError(t, classes.EnsureTable(ctx))

	studentRows := make([]map[string]string, 0, 20)
	for i := 1; i <= 20; i++ {
		id := "S" + strconv.Itoa(i)
		studentRows = append(studentRows, map[string]string{"id": id, "firstName": "Student", "lastName": id, "grade": "5"})
	}
	seedRows(t, store, repository.StudentsTable, studentRows...)
	seedRows(t, store, repository.InstructorsTable,
		map[string]string{"id": "I1", "firstName": "Clara", "instruments": "Piano", "mondayStart": "14:00", "mondayEnd": "18:00", "mondayRoomId": "R1"},
		map[string]string{"id": "I2", "firstName": "Pablo", "instruments": "Cello"},
		map[string]string{"id": "I3", "firstName": "Nadia", "instruments": "Violin"},
	)
	seedRows(t, store, repository.ClassesTable,
		map[string]string{"id": "G1", "instructorId": "I3", "day": "Tuesday", "startTime": "4:00 PM", "length": "60",
			"instrument": "Violin", "title": "Beginner Strings", "size": "12", "roomId": "R9"},
	)

	router, err := NewTrimesterService(config.DefaultCalendar(now, 21*24*time.Hour), clock)
	require.NoError(t, err)
	directory := NewDirectoryService(students, instructors, classes, time.Minute, nil)
	regs := repository.NewRegistrationRepository(store, reader)
	audits := repository.NewAuditRepository(store, reader)
	audit := NewAuditService(audits, nil, clock, nil)

	if cfg.Now == nil {
		cfg.Now = clock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics
	}
	svc := NewRegistrationService(regs, directory, router, audit, tableCache, cfg, nil, nil)
	return &registrationFixture{store: store, cache: tableCache, regs: regs, audits: audits, metrics: metrics, svc: svc}
}

func seedRows(t require.TestingT, store datastore.Store, table string, rows ...map[string]string) {
	ctx := context.Background()
	snap, err := store.ReadTable(ctx, table)
	require.NoError(t, err)
	for _, values := range rows {
		row := make([]string, len(snap.Header))
		for i, col := range snap.Header {
			row[i] = values[col]
		}
		require.NoError(t, store.AppendRow(ctx, table, row))
	}
}

func privateRequest(student, instructor, day, start string, length int) CreateRegistrationRequest {
	return CreateRegistrationRequest{
		StudentID:        student,
		RegistrationType: models.RegistrationPrivate,
		InstructorID:     instructor,
		Day:              day,
		StartTime:        start,
		LengthMinutes:    length,
	}
}

func groupRequest(student, class string) CreateRegistrationRequest {
	return CreateRegistrationRequest{StudentID: student, RegistrationType: models.RegistrationGroup, ClassID: class}
}

var office = MutationOptions{Actor: "office@school.test"}

func conflictsOf(t *testing.T, err error) []models.Conflict {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrConflict), "expected conflict error, got %v", err)
	var conflict *models.RegistrationConflictError
	require.True(t, errors.As(err, &conflict))
	return conflict.Conflicts
}

func (f *registrationFixture) rows(t *testing.T) []models.Registration {
	t.Helper()
	regs, err := f.regs.List(context.Background(), fallTable)
	require.NoError(t, err)
	return regs
}

func TestRegistrationServiceCreatePrivateLesson(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	assert.Equal(t, "S1_I1_Monday_15:00", reg.ID)
	assert.Equal(t, "R1", reg.RoomID)
	assert.Equal(t, "office@school.test", reg.CreatedBy)
	assert.Equal(t, fixtureNow, reg.CreatedAt)

	presence, err := f.cache.Probe(ctx, fallTable)
	require.NoError(t, err)
	assert.True(t, presence.Empty(), "table must be absent from both the value and the timestamp maps")
	presence, err = f.cache.Probe(ctx, models.AuditTable(fallTable))
	require.NoError(t, err)
	assert.True(t, presence.Empty())

	stored := f.rows(t)
	require.Len(t, stored, 1)
	assert.Equal(t, *reg, stored[0])

	records, err := f.audits.List(ctx, fallTable)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, reg.ID, records[0].RegistrationID)
	assert.False(t, records[0].IsDeleted)
	assert.NotEqual(t, reg.ID, records[0].ID)

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.RegistrationsCreated)
}

func TestRegistrationServiceRejectsDuplicate(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	conflicts := conflictsOf(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDuplicate, conflicts[0].Type)
	assert.Equal(t, "S1_I1_Monday_15:00", conflicts[0].ExistingRegistrationID)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, conflicts, appErr.Details)

	assert.Len(t, f.rows(t), 1)
	records, err := f.audits.List(ctx, fallTable)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().ConflictsRejected)
}

func TestRegistrationServiceTwelveHourTimeIsSameSlot(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "mon", "3:00 PM", 30), office)
	require.NoError(t, err)
	assert.Equal(t, "S1_I1_Monday_15:00", reg.ID)
	assert.Equal(t, "15:00", reg.StartTime)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	conflicts := conflictsOf(t, err)
	assert.Equal(t, models.ConflictDuplicate, conflicts[0].Type)
}

func TestRegistrationServiceRejectsStudentOverlap(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I2", "Monday", "15:15", 30), office)
	conflicts := conflictsOf(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictStudentSchedule, conflicts[0].Type)
	assert.Len(t, f.rows(t), 1)

	// back-to-back lessons do not overlap
	_, err = f.svc.Create(ctx, privateRequest("S1", "I2", "Monday", "15:30", 30), office)
	require.NoError(t, err)
}

func TestRegistrationServiceRejectsInstructorOverlap(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 60), office)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, privateRequest("S2", "I1", "Monday", "15:45", 30), office)
	conflicts := conflictsOf(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictInstructorSchedule, conflicts[0].Type)
}

func TestRegistrationServiceClassCapacity(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		reg, err := f.svc.Create(ctx, groupRequest("S"+strconv.Itoa(i), "G1"), office)
		require.NoError(t, err)
		assert.Equal(t, "S"+strconv.Itoa(i)+"_G1", reg.ID)
		assert.Equal(t, models.Tuesday, reg.Day)
		assert.Equal(t, "16:00", reg.StartTime)
		assert.Equal(t, "I3", reg.InstructorID)
		assert.Equal(t, "Beginner Strings", reg.ClassTitle)
		assert.Equal(t, "R9", reg.RoomID)
	}

	_, err := f.svc.Create(ctx, groupRequest("S13", "G1"), office)
	conflicts := conflictsOf(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictClassCapacity, conflicts[0].Type)
	assert.Equal(t, 12, conflicts[0].CurrentCount)
	assert.Equal(t, 12, conflicts[0].MaxCapacity)

	admin := MutationOptions{Actor: "admin@school.test", Privileged: true}
	_, err = f.svc.Create(ctx, groupRequest("S13", "G1"), admin)
	require.NoError(t, err)
	assert.Len(t, f.rows(t), 13)
}

func TestRegistrationServiceValidatesBeforeIO(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()
	studentReads := f.store.Reads(repository.StudentsTable)
	instructorReads := f.store.Reads(repository.InstructorsTable)

	cases := map[string]CreateRegistrationRequest{
		"missing student":    privateRequest("", "I1", "Monday", "15:00", 30),
		"missing start":      privateRequest("S1", "I1", "Monday", "", 30),
		"missing length":     privateRequest("S1", "I1", "Monday", "15:00", 0),
		"missing instructor": privateRequest("S1", "", "Monday", "15:00", 30),
		"missing class":      groupRequest("S1", ""),
		"unknown type":       {StudentID: "S1", RegistrationType: "duet"},
		"hour out of range":  privateRequest("S1", "I1", "Monday", "25:00", 30),
		"signed hour":        privateRequest("S1", "I1", "Monday", "+9:30", 30),
		"weekend day":        privateRequest("S1", "I1", "Saturday", "15:00", 30),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, req, office)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.Equal(t, studentReads, f.store.Reads(repository.StudentsTable))
	assert.Equal(t, instructorReads, f.store.Reads(repository.InstructorsTable))
	assert.Zero(t, f.store.Reads(fallTable))

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), MutationOptions{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegistrationServiceRejectsMalformedSchedule(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Saturday", "15:00", 30), office)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "25:00", 30), office)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.rows(t))
}

func TestRegistrationServiceUnknownReferences(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S404", "I1", "Monday", "15:00", 30), office)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I404", "Monday", "15:00", 30), office)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Create(ctx, groupRequest("S1", "G404"), office)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewID() string {
	s.n++
	return "rand-" + strconv.Itoa(s.n)
}

func TestRegistrationServiceRandomIDsStillDetectDuplicates(t *testing.T) {
	ids := &sequenceIDs{}
	f := newRegistrationFixture(t, RegistrationServiceConfig{RandomIDs: true, IDs: ids})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	assert.Equal(t, "rand-1", reg.ID)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	conflicts := conflictsOf(t, err)
	assert.Equal(t, models.ConflictDuplicate, conflicts[0].Type)
	assert.Equal(t, "rand-1", conflicts[0].ExistingRegistrationID)
}

func TestRegistrationServiceDelete(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, reg.ID, MutationOptions{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	// warm the cache so the delete has something to invalidate
	_, _, err = f.svc.List(ctx, "current", models.RegistrationFilter{})
	require.NoError(t, err)

	removed, err := f.svc.Delete(ctx, reg.ID, MutationOptions{Actor: "parent@home.test"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, removed.ID)
	assert.Empty(t, f.rows(t))

	presence, err := f.cache.Probe(ctx, fallTable)
	require.NoError(t, err)
	assert.False(t, presence.Value)
	records, err := f.audits.List(ctx, fallTable)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[1].IsDeleted)
	assert.Equal(t, "parent@home.test", records[1].DeletedBy)
	require.NotNil(t, records[1].DeletedAt)
	assert.Equal(t, fixtureNow, *records[1].DeletedAt)

	_, err = f.svc.Delete(ctx, reg.ID, MutationOptions{Actor: "parent@home.test"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RegistrationsCancelled)
}

func TestRegistrationServiceDeleteFreesTheSlot(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, reg.ID, office)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, privateRequest("S2", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
}

func TestRegistrationServiceUpdate(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	_, _, err = f.svc.List(ctx, "", models.RegistrationFilter{})
	require.NoError(t, err)

	notes := "bring rosin"
	room := "R7"
	updated, err := f.svc.Update(ctx, reg.ID, UpdateRegistrationRequest{Notes: &notes, RoomID: &room}, office)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, updated.ID)
	assert.Equal(t, "bring rosin", updated.Notes)
	assert.Equal(t, "R7", updated.RoomID)
	assert.Equal(t, reg.StartTime, updated.StartTime)

	presence, err := f.cache.Probe(ctx, fallTable)
	require.NoError(t, err)
	assert.True(t, presence.Empty())
	stored := f.rows(t)
	require.Len(t, stored, 1)
	assert.Equal(t, *updated, stored[0])

	_, err = f.svc.Update(ctx, reg.ID, UpdateRegistrationRequest{}, office)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	bad := "next week"
	_, err = f.svc.Update(ctx, reg.ID, UpdateRegistrationRequest{ExpectedStartDate: &bad}, office)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.Update(ctx, "missing", UpdateRegistrationRequest{Notes: &notes}, office)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRegistrationServiceBulkCreate(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	req := BulkCreateRegistrationsRequest{Items: []CreateRegistrationRequest{
		privateRequest("S1", "I1", "Monday", "15:00", 30),
		privateRequest("S2", "I1", "Monday", "15:15", 30),
		privateRequest("S2", "I2", "Monday", "15:15", 30),
		privateRequest("", "I2", "Monday", "15:15", 30),
	}}

	result, err := f.svc.BulkCreate(ctx, req, office)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, models.ConflictInstructorSchedule, result.Rejected[0].Conflicts[0].Type)
	assert.Equal(t, 3, result.Rejected[1].Index)
	assert.Empty(t, f.rows(t))

	req.PartialOnError = true
	result, err = f.svc.BulkCreate(ctx, req, office)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Len(t, result.Rejected, 2)
	assert.Len(t, f.rows(t), 2)

	records, err := f.audits.List(ctx, fallTable)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	presence, err := f.cache.Probe(ctx, fallTable)
	require.NoError(t, err)
	assert.True(t, presence.Empty())
}

func TestRegistrationServiceBulkChecksEarlierItems(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	req := BulkCreateRegistrationsRequest{PartialOnError: true, Items: []CreateRegistrationRequest{
		privateRequest("S1", "I1", "Monday", "15:00", 30),
		privateRequest("S1", "I1", "Monday", "15:00", 30),
	}}
	result, err := f.svc.BulkCreate(context.Background(), req, office)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, models.ConflictDuplicate, result.Rejected[0].Conflicts[0].Type)
}

func TestRegistrationServiceTableOverride(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30),
		MutationOptions{Actor: "office@school.test", Table: "registrations_spring"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30),
		MutationOptions{Actor: "admin@school.test", Table: "registrations_summer", Privileged: true})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30),
		MutationOptions{Actor: "admin@school.test", Table: "registrations_spring", Privileged: true})
	require.NoError(t, err)

	spring, table, err := f.svc.List(ctx, "spring", models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Equal(t, "registrations_spring", table)
	require.Len(t, spring, 1)
	assert.Equal(t, reg.ID, spring[0].ID)
	assert.Empty(t, f.rows(t))
}

func TestRegistrationServiceListFiltersAndSorts(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()

	for _, req := range []CreateRegistrationRequest{
		privateRequest("S2", "I2", "Wednesday", "14:00", 30),
		privateRequest("S1", "I1", "Monday", "16:00", 30),
		privateRequest("S3", "I1", "Monday", "15:00", 30),
	} {
		_, err := f.svc.Create(ctx, req, office)
		require.NoError(t, err)
	}

	all, table, err := f.svc.List(ctx, "enrollment", models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Equal(t, fallTable, table)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"S3", "S1", "S2"}, []string{all[0].StudentID, all[1].StudentID, all[2].StudentID})

	mine, _, err := f.svc.List(ctx, "current", models.RegistrationFilter{InstructorID: "I1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, _, err = f.svc.List(ctx, "summer", models.RegistrationFilter{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	got, err := f.svc.Get(ctx, "current", "S1_I1_Monday_16:00")
	require.NoError(t, err)
	assert.Equal(t, "S1", got.StudentID)
}

type failingAudit struct{}

func (failingAudit) RecordCreate(context.Context, string, models.Registration) (models.AuditRecord, error) {
	return models.AuditRecord{}, errors.New("audit sheet unavailable")
}

func (failingAudit) RecordDelete(context.Context, string, models.Registration, string) (models.AuditRecord, error) {
	return models.AuditRecord{}, errors.New("audit sheet unavailable")
}

type notifierStub struct{ events []notify.Event }

func (n *notifierStub) Notify(_ context.Context, event notify.Event) { n.events = append(n.events, event) }

func TestRegistrationServiceAuditFailureIsNonFatal(t *testing.T) {
	notifier := &notifierStub{}
	f := newRegistrationFixture(t, RegistrationServiceConfig{Notifier: notifier})
	ctx := context.Background()
	f.svc.audit = failingAudit{}

	reg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	assert.Len(t, f.rows(t), 1)

	_, err = f.svc.Delete(ctx, reg.ID, office)
	require.NoError(t, err)
	assert.Empty(t, f.rows(t))

	require.Len(t, notifier.events, 2)
	assert.Equal(t, notify.EventRegistrationCreated, notifier.events[0].Type)
	assert.Equal(t, notify.EventRegistrationCancelled, notifier.events[1].Type)
	assert.Equal(t, fallTable, notifier.events[1].Table)
}

type unreachableCache struct{ *cache.Memory }

func (unreachableCache) Invalidate(context.Context, string) error {
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func TestRegistrationServiceCountsFailedInvalidation(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()
	f.svc.cache = unreachableCache{f.cache}

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	assert.Len(t, f.rows(t), 1)
	assert.Equal(t, uint64(2), f.metrics.Snapshot().InvalidationFailures)
}

func TestRegistrationServiceEnrollmentWindowTargetsNextTrimester(t *testing.T) {
	const winterTable = "registrations_winter"
	f := newRegistrationFixtureAt(t, RegistrationServiceConfig{}, time.Date(2026, time.December, 16, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	inFall := office
	inFall.Table = fallTable
	fallReg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), inFall)
	require.NoError(t, err)

	// the same slot in the current trimester does not block next trimester's sign-up
	winterReg, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.NoError(t, err)
	assert.Equal(t, fallReg.ID, winterReg.ID)
	presence, err := f.cache.Probe(ctx, winterTable)
	require.NoError(t, err)
	assert.True(t, presence.Empty())

	winter, err := f.regs.List(ctx, winterTable)
	require.NoError(t, err)
	require.Len(t, winter, 1)
	assert.Len(t, f.rows(t), 1)

	_, err = f.svc.Create(ctx, privateRequest("S1", "I2", "Monday", "15:15", 30), office)
	conflicts := conflictsOf(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictStudentSchedule, conflicts[0].Type)
	winter, err = f.regs.List(ctx, winterTable)
	require.NoError(t, err)
	assert.Len(t, winter, 1)
	assert.Len(t, f.rows(t), 1)

	// cancellations default to the current trimester
	_, err = f.svc.Delete(ctx, fallReg.ID, office)
	require.NoError(t, err)
	assert.Empty(t, f.rows(t))
	winter, err = f.regs.List(ctx, winterTable)
	require.NoError(t, err)
	assert.Len(t, winter, 1)

	fallAudit, err := f.audits.List(ctx, fallTable)
	require.NoError(t, err)
	require.Len(t, fallAudit, 2)
	assert.True(t, fallAudit[1].IsDeleted)
	winterAudit, err := f.audits.List(ctx, winterTable)
	require.NoError(t, err)
	require.Len(t, winterAudit, 1)
	assert.False(t, winterAudit[0].IsDeleted)
}

type failingStore struct {
	*datastore.MemoryStore
	appendErr error
}

func (s *failingStore) AppendRow(ctx context.Context, table string, row []string) error {
	if table == fallTable && s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.AppendRow(ctx, table, row)
}

func TestRegistrationServiceStoreFailure(t *testing.T) {
	f := newRegistrationFixture(t, RegistrationServiceConfig{})
	ctx := context.Background()
	store := &failingStore{MemoryStore: f.store, appendErr: errors.New("quota exceeded")}
	reader := repository.NewTableReader(store, f.cache, nil)
	f.svc.repo = repository.NewRegistrationRepository(store, reader)

	_, err := f.svc.Create(ctx, privateRequest("S1", "I1", "Monday", "15:00", 30), office)
	require.ErrorIs(t, err, appErrors.ErrStore)
	assert.Contains(t, err.Error(), "quota exceeded")

	presence, err := f.cache.Probe(ctx, fallTable)
	require.NoError(t, err)
	assert.True(t, presence.Empty())
}
