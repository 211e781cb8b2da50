package repository

import (
	"context"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
)

var auditSchema = datastore.NewSchema(
	"registrationId", "studentId", "instructorId", "day", "startTime", "length", "registrationType",
	"roomId", "instrument", "transportationType", "notes", "classId", "classTitle",
	"expectedStartDate", "createdAt", "createdBy", "isDeleted", "deletedAt", "deletedBy",
)

// AuditRepository appends to and reads the audit companion of each registrations table.
// Records are never updated or removed.
type AuditRepository struct {
	store  datastore.Store
	binder *tableBinder
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(store datastore.Store, reader *TableReader) *AuditRepository {
	return &AuditRepository{store: store, binder: newTableBinder(store, reader, auditSchema)}
}

// EnsureTable creates the audit table for a registrations table.
func (r *AuditRepository) EnsureTable(ctx context.Context, registrationTable string) error {
	_, err := r.binder.ensure(ctx, models.AuditTable(registrationTable))
	return err
}

// Append writes one audit record for a registrations table.
func (r *AuditRepository) Append(ctx context.Context, registrationTable string, record models.AuditRecord) error {
	table := models.AuditTable(registrationTable)
	binding, err := r.binder.ensure(ctx, table)
	if err != nil {
		return err
	}
	w := binding.NewRow().
		Set(datastore.IDColumn, record.ID).
		Set("registrationId", record.RegistrationID).
		Set("studentId", record.StudentID).
		Set("instructorId", record.InstructorID).
		Set("day", string(record.Day)).
		Set("startTime", record.StartTime).
		SetInt("length", record.LengthMinutes).
		Set("registrationType", string(record.RegistrationType)).
		Set("roomId", record.RoomID).
		Set("instrument", record.Instrument).
		Set("transportationType", record.TransportationType).
		Set("notes", record.Notes).
		Set("classId", record.ClassID).
		Set("classTitle", record.ClassTitle).
		Set("expectedStartDate", record.ExpectedStartDate).
		SetTime("createdAt", record.CreatedAt).
		Set("createdBy", record.CreatedBy).
		SetBool("isDeleted", record.IsDeleted).
		Set("deletedBy", record.DeletedBy)
	if record.DeletedAt != nil {
		w.SetTime("deletedAt", *record.DeletedAt)
	}
	return r.store.AppendRow(ctx, table, w.Cells())
}

// List returns the audit records of a registrations table in append order.
func (r *AuditRepository) List(ctx context.Context, registrationTable string) ([]models.AuditRecord, error) {
	snap, binding, err := r.binder.snapshot(ctx, models.AuditTable(registrationTable))
	if err != nil || snap == nil {
		return []models.AuditRecord{}, err
	}
	out := make([]models.AuditRecord, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		record, err := decodeAudit(binding.Reader(row))
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func decodeAudit(row datastore.RowReader) (models.AuditRecord, error) {
	length, err := row.Int("length")
	if err != nil {
		return models.AuditRecord{}, err
	}
	createdAt, err := row.Time("createdAt")
	if err != nil {
		return models.AuditRecord{}, err
	}
	deletedAt, err := row.Time("deletedAt")
	if err != nil {
		return models.AuditRecord{}, err
	}
	record := models.AuditRecord{
		ID:                 row.String(datastore.IDColumn),
		RegistrationID:     row.String("registrationId"),
		StudentID:          row.String("studentId"),
		InstructorID:       row.String("instructorId"),
		Day:                models.Day(row.String("day")),
		StartTime:          row.String("startTime"),
		LengthMinutes:      length,
		RegistrationType:   models.RegistrationType(row.String("registrationType")),
		RoomID:             row.String("roomId"),
		Instrument:         row.String("instrument"),
		TransportationType: row.String("transportationType"),
		Notes:              row.String("notes"),
		ClassID:            row.String("classId"),
		ClassTitle:         row.String("classTitle"),
		ExpectedStartDate:  row.String("expectedStartDate"),
		CreatedAt:          createdAt,
		CreatedBy:          row.String("createdBy"),
		IsDeleted:          row.Bool("isDeleted"),
		DeletedBy:          row.String("deletedBy"),
	}
	if !deletedAt.IsZero() {
		record.DeletedAt = &deletedAt
	}
	return record, nil
}
