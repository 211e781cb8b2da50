package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/lesson-registration-api/internal/cache"
	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/notify"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

type registrationRepository interface {
	List(ctx context.Context, table string) ([]models.Registration, error)
	FindByID(ctx context.Context, table, id string) (*models.Registration, error)
	Insert(ctx context.Context, table string, reg models.Registration) error
	Update(ctx context.Context, table string, reg models.Registration) error
	Delete(ctx context.Context, table, id string) error
}

type registrationDirectory interface {
	Student(ctx context.Context, id string) (*models.Student, error)
	Instructor(ctx context.Context, id string) (*models.Instructor, error)
	Class(ctx context.Context, id string) (*models.Class, error)
}

type trimesterRouter interface {
	CurrentTable() string
	EnrollmentTable() string
	ValidateTable(table string) error
	TableFor(period string) (string, error)
}

type auditWriter interface {
	RecordCreate(ctx context.Context, table string, reg models.Registration) (models.AuditRecord, error)
	RecordDelete(ctx context.Context, table string, reg models.Registration, performedBy string) (models.AuditRecord, error)
}

type registrationNotifier interface {
	Notify(ctx context.Context, event notify.Event)
}

type registrationMetrics interface {
	RecordRegistration(action, table string)
	RecordConflicts(conflicts []models.Conflict)
	RecordInvalidationFailure(table string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Event) {}

type nopRegistrationMetrics struct{}

func (nopRegistrationMetrics) RecordRegistration(string, string) {}
func (nopRegistrationMetrics) RecordConflicts([]models.Conflict) {}
func (nopRegistrationMetrics) RecordInvalidationFailure(string)  {}

// MutationOptions carries the caller context of a registration write.
type MutationOptions struct {
	// Table overrides the routed trimester table.
	Table string
	// Actor is recorded as createdBy / deletedBy.
	Actor string
	// Privileged callers skip the class capacity check and may target any trimester.
	Privileged bool
}

// CreateRegistrationRequest is the candidate registration submitted by a caller. Group lessons
// take their schedule from the class.
type CreateRegistrationRequest struct {
	StudentID          string                  `json:"student_id" validate:"required"`
	RegistrationType   models.RegistrationType `json:"registration_type" validate:"required,oneof=private group"`
	InstructorID       string                  `json:"instructor_id" validate:"required_if=RegistrationType private"`
	ClassID            string                  `json:"class_id" validate:"required_if=RegistrationType group"`
	Day                string                  `json:"day" validate:"required_if=RegistrationType private"`
	StartTime          string                  `json:"start_time" validate:"required_if=RegistrationType private"`
	LengthMinutes      int                     `json:"length" validate:"required_if=RegistrationType private,gte=0,lte=480"`
	RoomID             string                  `json:"room_id" validate:"max=64"`
	Instrument         string                  `json:"instrument" validate:"max=64"`
	TransportationType string                  `json:"transportation_type" validate:"max=64"`
	Notes              string                  `json:"notes" validate:"max=1000"`
	ExpectedStartDate  string                  `json:"expected_start_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateRegistrationRequest lists the fields that may change after creation.
type UpdateRegistrationRequest struct {
	RoomID             *string `json:"room_id" validate:"omitempty,max=64"`
	Instrument         *string `json:"instrument" validate:"omitempty,max=64"`
	TransportationType *string `json:"transportation_type" validate:"omitempty,max=64"`
	Notes              *string `json:"notes" validate:"omitempty,max=1000"`
	ExpectedStartDate  *string `json:"expected_start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r UpdateRegistrationRequest) empty() bool {
	return r.RoomID == nil && r.Instrument == nil && r.TransportationType == nil && r.Notes == nil && r.ExpectedStartDate == nil
}

// BulkCreateRegistrationsRequest submits several candidates against one table.
type BulkCreateRegistrationsRequest struct {
	Items          []CreateRegistrationRequest `json:"items" validate:"required,min=1,max=200"`
	PartialOnError bool                        `json:"partial_on_error"`
}

// BulkRejection explains why one bulk item was not written.
type BulkRejection struct {
	Index     int               `json:"index"`
	Error     string            `json:"error"`
	Conflicts []models.Conflict `json:"conflicts,omitempty"`
}

// BulkCreateResult reports the outcome of a bulk create.
type BulkCreateResult struct {
	Table    string                `json:"table"`
	Created  []models.Registration `json:"created"`
	Rejected []BulkRejection       `json:"rejected"`
}

// RegistrationServiceConfig tunes identity and capacity behaviour and supplies optional collaborators.
type RegistrationServiceConfig struct {
	RandomIDs       bool
	DefaultCapacity int
	IDs             IDGenerator
	Now             func() time.Time
	Notifier        registrationNotifier
	Metrics         registrationMetrics
}

// RegistrationService admits, updates and cancels registrations. It is the only writer of
// registrations tables and the only caller that invalidates their cache entries.
type RegistrationService struct {
	repo      registrationRepository
	directory registrationDirectory
	router    trimesterRouter
	audit     auditWriter
	cache     cache.TableCache
	notifier  registrationNotifier
	metrics   registrationMetrics
	ids       IDGenerator
	now       func() time.Time
	randomIDs bool
	capacity  int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, directory registrationDirectory, router trimesterRouter, audit auditWriter, tableCache cache.TableCache, cfg RegistrationServiceConfig, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDGenerator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRegistrationMetrics{}
	}
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = models.DefaultClassCapacity
	}
	return &RegistrationService{
		repo:      repo,
		directory: directory,
		router:    router,
		audit:     audit,
		cache:     tableCache,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		ids:       cfg.IDs,
		now:       cfg.Now,
		randomIDs: cfg.RandomIDs,
		capacity:  cfg.DefaultCapacity,
		validator: validate,
		logger:    logger,
	}
}

// Create admits a new registration into the enrollment table (or opts.Table).
func (s *RegistrationService) Create(ctx context.Context, req CreateRegistrationRequest, opts MutationOptions) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration payload")
	}
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "createdBy is required")
	}
	table, err := s.resolveTable(opts.Table, s.router.EnrollmentTable(), opts.Privileged)
	if err != nil {
		return nil, err
	}

	candidate, class, err := s.buildCandidate(ctx, req, opts.Actor)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load registrations")
	}
	result := DetectConflicts(candidate, existing, s.conflictOptions(class, opts))
	if result.HasConflicts {
		s.metrics.RecordConflicts(result.Conflicts)
		return nil, conflictError(result.Conflicts)
	}
	candidate.ID = GenerateRegistrationID(candidate, s.randomIDs, s.ids).String()

	defer s.invalidate(ctx, table)
	if err := s.insert(ctx, table, candidate); err != nil {
		return nil, err
	}
	s.afterCreate(ctx, table, candidate)
	return &candidate, nil
}

// BulkCreate admits items in order, each checked against the table plus the items admitted
// before it. Unless PartialOnError is set, any rejection leaves the table untouched.
func (s *RegistrationService) BulkCreate(ctx context.Context, req BulkCreateRegistrationsRequest, opts MutationOptions) (*BulkCreateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid bulk registration payload")
	}
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "createdBy is required")
	}
	table, err := s.resolveTable(opts.Table, s.router.EnrollmentTable(), opts.Privileged)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load registrations")
	}

	result := &BulkCreateResult{Table: table, Created: []models.Registration{}, Rejected: []BulkRejection{}}
	pool := append(make([]models.Registration, 0, len(existing)+len(req.Items)), existing...)
	var admitted []admittedItem
	for i, item := range req.Items {
		candidate, rejection, err := s.evaluate(ctx, item, opts, pool)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			rejection.Index = i
			result.Rejected = append(result.Rejected, *rejection)
			continue
		}
		pool = append(pool, candidate)
		admitted = append(admitted, admittedItem{index: i, reg: candidate})
	}

	if len(result.Rejected) > 0 && !req.PartialOnError {
		return result, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "bulk registration rejected; nothing was written"), result.Rejected)
	}
	if len(admitted) == 0 {
		return result, nil
	}

	defer s.invalidate(ctx, table)
	for _, item := range admitted {
		if err := s.insert(ctx, table, item.reg); err != nil {
			if !req.PartialOnError && !errors.Is(err, appErrors.ErrConflict) {
				s.logger.Error("bulk registration stopped after partial write",
					zap.String("table", table), zap.Int("written", len(result.Created)), zap.Error(err))
				return result, err
			}
			result.Rejected = append(result.Rejected, bulkRejection(item.index, err))
			continue
		}
		s.afterCreate(ctx, table, item.reg)
		result.Created = append(result.Created, item.reg)
	}
	return result, nil
}

type admittedItem struct {
	index int
	reg   models.Registration
}

// Update rewrites the mutable fields of a registration in the current table (or opts.Table).
func (s *RegistrationService) Update(ctx context.Context, id string, req UpdateRegistrationRequest, opts MutationOptions) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid registration update")
	}
	if req.empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no updatable fields supplied")
	}
	table, err := s.resolveTable(opts.Table, s.router.CurrentTable(), opts.Privileged)
	if err != nil {
		return nil, err
	}
	reg, err := s.find(ctx, table, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(reg, req)
	defer s.invalidate(ctx, table)
	if err := s.repo.Update(ctx, table, *reg); err != nil {
		if errors.Is(err, datastore.ErrRowNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Store(err, "failed to update registration")
	}
	s.logger.Info("registration updated", zap.String("table", table), zap.String("registration_id", id), zap.String("actor", opts.Actor))
	return reg, nil
}

// Delete cancels a registration in the current table (or opts.Table). Cancellation is always
// permitted once the registration is found.
func (s *RegistrationService) Delete(ctx context.Context, id string, opts MutationOptions) (*models.Registration, error) {
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "performedBy is required")
	}
	table, err := s.resolveTable(opts.Table, s.router.CurrentTable(), opts.Privileged)
	if err != nil {
		return nil, err
	}
	reg, err := s.find(ctx, table, id)
	if err != nil {
		return nil, err
	}

	defer s.invalidate(ctx, table)
	if err := s.repo.Delete(ctx, table, id); err != nil {
		if errors.Is(err, datastore.ErrRowNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Store(err, "failed to delete registration")
	}

	if _, err := s.audit.RecordDelete(ctx, table, *reg, opts.Actor); err != nil {
		s.logger.Error("registration deleted without audit record",
			zap.String("table", table), zap.String("registration_id", id), zap.String("action", "delete"), zap.Error(err))
	}
	s.metrics.RecordRegistration("cancelled", table)
	s.notifier.Notify(ctx, notify.Event{
		Type:         notify.EventRegistrationCancelled,
		Table:        table,
		Registration: *reg,
		PerformedBy:  opts.Actor,
		OccurredAt:   s.now().UTC(),
	})
	s.logger.Info("registration cancelled", zap.String("table", table), zap.String("registration_id", id), zap.String("actor", opts.Actor))
	return reg, nil
}

// List returns the registrations of a period (current, enrollment or a trimester name) that
// match filter, ordered by day then start time.
func (s *RegistrationService) List(ctx context.Context, period string, filter models.RegistrationFilter) ([]models.Registration, string, error) {
	table, err := s.router.TableFor(period)
	if err != nil {
		return nil, "", err
	}
	regs, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, "", appErrors.Store(err, "failed to load registrations")
	}
	out := make([]models.Registration, 0, len(regs))
	for _, r := range regs {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	SortRegistrations(out)
	return out, table, nil
}

// Get returns one registration of a period.
func (s *RegistrationService) Get(ctx context.Context, period, id string) (*models.Registration, error) {
	table, err := s.router.TableFor(period)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, table, id)
}

// SortRegistrations orders registrations by weekday, start time, then student.
func SortRegistrations(regs []models.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		a, b := regs[i], regs[j]
		if da, db := dayIndex(a.Day), dayIndex(b.Day); da != db {
			return da < db
		}
		ma, _ := a.StartMinutes()
		mb, _ := b.StartMinutes()
		if ma != mb {
			return ma < mb
		}
		return a.StudentID < b.StudentID
	})
}

func dayIndex(d models.Day) int {
	for i, day := range models.Days {
		if day == d {
			return i
		}
	}
	return len(models.Days)
}

func (s *RegistrationService) resolveTable(requested, fallback string, privileged bool) (string, error) {
	if requested == "" {
		return fallback, nil
	}
	if err := s.router.ValidateTable(requested); err != nil {
		return "", err
	}
	if privileged || requested == s.router.CurrentTable() || requested == s.router.EnrollmentTable() {
		return requested, nil
	}
	return "", appErrors.Clone(appErrors.ErrForbidden, "only administrators may target an inactive trimester")
}

// buildCandidate resolves the referenced student, instructor and class and returns the
// normalised registration that conflict checks run against. A private lesson's schedule is
// parsed before any directory read; a group lesson takes its schedule from the class.
func (s *RegistrationService) buildCandidate(ctx context.Context, req CreateRegistrationRequest, actor string) (models.Registration, *models.Class, error) {
	candidate := models.Registration{
		StudentID:          req.StudentID,
		InstructorID:       req.InstructorID,
		RegistrationType:   req.RegistrationType,
		RoomID:             req.RoomID,
		Instrument:         req.Instrument,
		TransportationType: req.TransportationType,
		Notes:              req.Notes,
		ExpectedStartDate:  req.ExpectedStartDate,
		CreatedAt:          s.now().UTC(),
		CreatedBy:          actor,
	}
	group := req.RegistrationType == models.RegistrationGroup
	if !group {
		if err := applySchedule(&candidate, req.Day, req.StartTime, req.LengthMinutes); err != nil {
			return models.Registration{}, nil, err
		}
	}

	var (
		instructor *models.Instructor
		class      *models.Class
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.directory.Student(gctx, req.StudentID)
		return err
	})
	if group {
		g.Go(func() error {
			var err error
			class, err = s.directory.Class(gctx, req.ClassID)
			return err
		})
	} else {
		g.Go(func() error {
			var err error
			instructor, err = s.directory.Instructor(gctx, req.InstructorID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.Registration{}, nil, err
	}

	if class != nil {
		candidate.InstructorID = class.InstructorID
		candidate.ClassID = class.ID
		candidate.ClassTitle = class.Title
		if candidate.Instrument == "" {
			candidate.Instrument = class.Instrument
		}
		if candidate.RoomID == "" {
			candidate.RoomID = class.RoomID
		}
		if err := applySchedule(&candidate, string(class.Day), class.StartTime, class.LengthMinutes); err != nil {
			return models.Registration{}, nil, err
		}
	}

	if candidate.RoomID == "" && instructor != nil {
		candidate.RoomID = instructor.RoomFor(candidate.Day)
	}
	return candidate, class, nil
}

func applySchedule(reg *models.Registration, day, start string, length int) error {
	parsedDay, ok := models.ParseDay(day)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid lesson day %q", day))
	}
	normalized, err := models.NormalizeClockTime(start)
	if err != nil {
		return appErrors.Validation(err, fmt.Sprintf("invalid start time %q", start))
	}
	if length <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "lesson length must be positive")
	}
	reg.Day = parsedDay
	reg.StartTime = normalized
	reg.LengthMinutes = length
	return nil
}

// evaluate resolves and checks one bulk item. Client-side failures become a rejection; store
// failures abort the batch.
func (s *RegistrationService) evaluate(ctx context.Context, item CreateRegistrationRequest, opts MutationOptions, pool []models.Registration) (models.Registration, *BulkRejection, error) {
	if err := s.validator.Struct(item); err != nil {
		return models.Registration{}, &BulkRejection{Error: err.Error()}, nil
	}
	candidate, class, err := s.buildCandidate(ctx, item, opts.Actor)
	if err != nil {
		if errors.Is(err, appErrors.ErrStore) {
			return models.Registration{}, nil, err
		}
		return models.Registration{}, &BulkRejection{Error: err.Error()}, nil
	}
	result := DetectConflicts(candidate, pool, s.conflictOptions(class, opts))
	if result.HasConflicts {
		s.metrics.RecordConflicts(result.Conflicts)
		return models.Registration{}, &BulkRejection{Error: "registration conflicts with existing registrations", Conflicts: result.Conflicts}, nil
	}
	candidate.ID = GenerateRegistrationID(candidate, s.randomIDs, s.ids).String()
	return candidate, nil, nil
}

func (s *RegistrationService) conflictOptions(class *models.Class, opts MutationOptions) ConflictOptions {
	return ConflictOptions{
		GroupClass:        class,
		SkipCapacityCheck: opts.Privileged,
		DefaultCapacity:   s.capacity,
	}
}

func (s *RegistrationService) insert(ctx context.Context, table string, reg models.Registration) error {
	if err := s.repo.Insert(ctx, table, reg); err != nil {
		if errors.Is(err, datastore.ErrDuplicateRow) {
			conflicts := []models.Conflict{{
				Type:                   models.ConflictDuplicate,
				Message:                fmt.Sprintf("registration %s already exists", reg.ID),
				ExistingRegistrationID: reg.ID,
			}}
			s.metrics.RecordConflicts(conflicts)
			return conflictError(conflicts)
		}
		return appErrors.Store(err, "failed to write registration")
	}
	return nil
}

// afterCreate runs the follow-ups of a written registration. An audit failure leaves the
// registration in place and is logged as an inconsistency.
func (s *RegistrationService) afterCreate(ctx context.Context, table string, reg models.Registration) {
	if _, err := s.audit.RecordCreate(ctx, table, reg); err != nil {
		s.logger.Error("registration written without audit record",
			zap.String("table", table), zap.String("registration_id", reg.ID), zap.String("action", "create"), zap.Error(err))
	}
	s.metrics.RecordRegistration("created", table)
	s.notifier.Notify(ctx, notify.Event{
		Type:         notify.EventRegistrationCreated,
		Table:        table,
		Registration: reg,
		PerformedBy:  reg.CreatedBy,
		OccurredAt:   reg.CreatedAt,
	})
	s.logger.Info("registration created", zap.String("table", table), zap.String("registration_id", reg.ID), zap.String("actor", reg.CreatedBy))
}

func (s *RegistrationService) find(ctx context.Context, table, id string) (*models.Registration, error) {
	reg, err := s.repo.FindByID(ctx, table, id)
	if err != nil {
		if errors.Is(err, datastore.ErrRowNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Store(err, "failed to load registration")
	}
	return reg, nil
}

// invalidate drops the cached snapshots of table and its audit companion.
func (s *RegistrationService) invalidate(ctx context.Context, table string) {
	if s.cache == nil {
		return
	}
	for _, t := range []string{table, models.AuditTable(table)} {
		if err := s.cache.Invalidate(ctx, t); err != nil {
			s.metrics.RecordInvalidationFailure(t)
			s.logger.Error("failed to invalidate table cache", zap.String("table", t), zap.Error(err))
		}
	}
}

func applyUpdate(reg *models.Registration, req UpdateRegistrationRequest) {
	if req.RoomID != nil {
		reg.RoomID = *req.RoomID
	}
	if req.Instrument != nil {
		reg.Instrument = *req.Instrument
	}
	if req.TransportationType != nil {
		reg.TransportationType = *req.TransportationType
	}
	if req.Notes != nil {
		reg.Notes = *req.Notes
	}
	if req.ExpectedStartDate != nil {
		reg.ExpectedStartDate = *req.ExpectedStartDate
	}
}

func conflictError(conflicts []models.Conflict) error {
	cause := &models.RegistrationConflictError{Conflicts: conflicts}
	err := appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "registration conflicts with existing registrations")
	return appErrors.WithDetails(err, conflicts)
}

func bulkRejection(index int, err error) BulkRejection {
	rejection := BulkRejection{Index: index, Error: err.Error()}
	var conflict *models.RegistrationConflictError
	if errors.As(err, &conflict) {
		rejection.Conflicts = conflict.Conflicts
	}
	return rejection
}
