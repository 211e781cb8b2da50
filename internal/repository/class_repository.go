package repository

import (
	"context"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// ClassesTable holds the group class catalog.
const ClassesTable = "classes"

var classSchema = datastore.NewSchema(
	"instructorId", "day", "startTime", "length", "instrument", "title", "size", "minGrade", "maxGrade", "roomId",
)

// ClassRepository decodes the classes table.
type ClassRepository struct {
	binder *tableBinder
}

// NewClassRepository constructs the repository.
func NewClassRepository(store datastore.Store, reader *TableReader) *ClassRepository {
	return &ClassRepository{binder: newTableBinder(store, reader, classSchema)}
}

// EnsureTable creates the classes table when absent and validates its columns.
func (r *ClassRepository) EnsureTable(ctx context.Context) error {
	_, err := r.binder.ensure(ctx, ClassesTable)
	return err
}

// List returns the whole catalog.
func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	snap, binding, err := r.binder.snapshot(ctx, ClassesTable)
	if err != nil || snap == nil {
		return []models.Class{}, err
	}
	out := make([]models.Class, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		class, err := decodeClass(binding.Reader(row))
		if err != nil {
			return nil, err
		}
		out = append(out, class)
	}
	return out, nil
}

// FindByID returns datastore.ErrRowNotFound when the class does not exist.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	classes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range classes {
		if classes[i].ID == id {
			return &classes[i], nil
		}
	}
	return nil, datastore.ErrRowNotFound
}

func decodeClass(row datastore.RowReader) (models.Class, error) {
	var (
		class = models.Class{
			ID:           row.String(datastore.IDColumn),
			InstructorID: row.String("instructorId"),
			Day:          models.Day(row.String("day")),
			StartTime:    row.String("startTime"),
			Instrument:   row.String("instrument"),
			Title:        row.String("title"),
			RoomID:       row.String("roomId"),
		}
		err error
	)
	if day, ok := models.ParseDay(string(class.Day)); ok {
		class.Day = day
	}
	if class.LengthMinutes, err = row.Int("length"); err != nil {
		return models.Class{}, err
	}
	if class.Size, err = row.Int("size"); err != nil {
		return models.Class{}, err
	}
	if class.MinGrade, err = row.Int("minGrade"); err != nil {
		return models.Class{}, err
	}
	if class.MaxGrade, err = row.Int("maxGrade"); err != nil {
		return models.Class{}, err
	}
	return class, nil
}
