package repository

import (
	"context"
	"strings"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// InstructorsTable holds the instructor directory.
const InstructorsTable = "instructors"

var instructorSchema = datastore.NewSchema(instructorColumns()...)

func instructorColumns() []string {
	cols := []string{"firstName", "lastName", "email", "instruments"}
	for _, day := range models.Days {
		prefix := strings.ToLower(string(day))
		cols = append(cols, prefix+"Start", prefix+"End", prefix+"RoomId")
	}
	return cols
}

// InstructorRepository decodes the instructors table, including per-day availability.
type InstructorRepository struct {
	binder *tableBinder
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(store datastore.Store, reader *TableReader) *InstructorRepository {
	return &InstructorRepository{binder: newTableBinder(store, reader, instructorSchema)}
}

// EnsureTable creates the instructors table when absent and validates its columns.
func (r *InstructorRepository) EnsureTable(ctx context.Context) error {
	_, err := r.binder.ensure(ctx, InstructorsTable)
	return err
}

// List returns every instructor.
func (r *InstructorRepository) List(ctx context.Context) ([]models.Instructor, error) {
	snap, binding, err := r.binder.snapshot(ctx, InstructorsTable)
	if err != nil || snap == nil {
		return []models.Instructor{}, err
	}
	out := make([]models.Instructor, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		reader := binding.Reader(row)
		instructor := models.Instructor{
			ID:           reader.String(datastore.IDColumn),
			FirstName:    reader.String("firstName"),
			LastName:     reader.String("lastName"),
			Email:        reader.String("email"),
			Instruments:  splitList(reader.String("instruments")),
			Availability: make(map[models.Day]models.DayAvailability),
		}
		for _, day := range models.Days {
			prefix := strings.ToLower(string(day))
			slot := models.DayAvailability{
				Start:  reader.String(prefix + "Start"),
				End:    reader.String(prefix + "End"),
				RoomID: reader.String(prefix + "RoomId"),
			}
			if slot != (models.DayAvailability{}) {
				instructor.Availability[day] = slot
			}
		}
		out = append(out, instructor)
	}
	return out, nil
}

// FindByID returns datastore.ErrRowNotFound when the instructor does not exist.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	instructors, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range instructors {
		if instructors[i].ID == id {
			return &instructors[i], nil
		}
	}
	return nil, datastore.ErrRowNotFound
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
