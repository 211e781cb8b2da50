package repository

import (
	"context"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// registrationSchema is the header of every registrations_<trimester> table.
var registrationSchema = datastore.NewSchema(
	"studentId", "instructorId", "day", "startTime", "length", "registrationType",
	"roomId", "instrument", "transportationType", "notes", "classId", "classTitle",
	"expectedStartDate", "createdAt", "createdBy",
)

// RegistrationRepository reads and writes registration rows in trimester tables.
type RegistrationRepository struct {
	store  datastore.Store
	binder *tableBinder
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(store datastore.Store, reader *TableReader) *RegistrationRepository {
	return &RegistrationRepository{store: store, binder: newTableBinder(store, reader, registrationSchema)}
}

// EnsureTable creates the table when absent and validates its columns.
func (r *RegistrationRepository) EnsureTable(ctx context.Context, table string) error {
	_, err := r.binder.ensure(ctx, table)
	return err
}

// List returns every registration in the table; a table that does not exist yet is empty.
func (r *RegistrationRepository) List(ctx context.Context, table string) ([]models.Registration, error) {
	snap, binding, err := r.binder.snapshot(ctx, table)
	if err != nil || snap == nil {
		return []models.Registration{}, err
	}
	out := make([]models.Registration, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		reg, err := decodeRegistration(binding.Reader(row))
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, nil
}

// FindByID returns datastore.ErrRowNotFound when the id is absent.
func (r *RegistrationRepository) FindByID(ctx context.Context, table, id string) (*models.Registration, error) {
	snap, binding, err := r.binder.snapshot(ctx, table)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, datastore.ErrRowNotFound
	}
	for _, row := range snap.Rows {
		reader := binding.Reader(row)
		if reader.String(datastore.IDColumn) != id {
			continue
		}
		reg, err := decodeRegistration(reader)
		if err != nil {
			return nil, err
		}
		return &reg, nil
	}
	return nil, datastore.ErrRowNotFound
}

// Insert appends a new registration row.
func (r *RegistrationRepository) Insert(ctx context.Context, table string, reg models.Registration) error {
	binding, err := r.binder.ensure(ctx, table)
	if err != nil {
		return err
	}
	return r.store.AppendRow(ctx, table, encodeRegistration(binding.NewRow(), reg))
}

// Update overwrites the whole row keyed by reg.ID. Columns outside the schema keep their values.
func (r *RegistrationRepository) Update(ctx context.Context, table string, reg models.Registration) error {
	binding, err := r.binder.ensure(ctx, table)
	if err != nil {
		return err
	}
	writer := binding.NewRow()
	if snap, _, err := r.binder.snapshot(ctx, table); err == nil && snap != nil {
		idx := snap.IDIndex()
		for _, row := range snap.Rows {
			if idx >= 0 && idx < len(row) && row[idx] == reg.ID {
				writer = binding.Rewrite(row)
				break
			}
		}
	}
	return r.store.UpdateRow(ctx, table, reg.ID, encodeRegistration(writer, reg))
}

// Delete removes the row keyed by id.
func (r *RegistrationRepository) Delete(ctx context.Context, table, id string) error {
	return r.store.DeleteRow(ctx, table, id)
}

func decodeRegistration(row datastore.RowReader) (models.Registration, error) {
	length, err := row.Int("length")
	if err != nil {
		return models.Registration{}, err
	}
	createdAt, err := row.Time("createdAt")
	if err != nil {
		return models.Registration{}, err
	}
	day := models.Day(row.String("day"))
	if parsed, ok := models.ParseDay(string(day)); ok {
		day = parsed
	}
	return models.Registration{
		ID:                 row.String(datastore.IDColumn),
		StudentID:          row.String("studentId"),
		InstructorID:       row.String("instructorId"),
		Day:                day,
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
	}, nil
}

func encodeRegistration(w *datastore.RowWriter, reg models.Registration) []string {
	return w.
		Set(datastore.IDColumn, reg.ID).
		Set("studentId", reg.StudentID).
		Set("instructorId", reg.InstructorID).
		Set("day", string(reg.Day)).
		Set("startTime", reg.StartTime).
		SetInt("length", reg.LengthMinutes).
		Set("registrationType", string(reg.RegistrationType)).
		Set("roomId", reg.RoomID).
		Set("instrument", reg.Instrument).
		Set("transportationType", reg.TransportationType).
		Set("notes", reg.Notes).
		Set("classId", reg.ClassID).
		Set("classTitle", reg.ClassTitle).
		Set("expectedStartDate", reg.ExpectedStartDate).
		SetTime("createdAt", reg.CreatedAt).
		Set("createdBy", reg.CreatedBy).
		Cells()
}
