package repository

import (
	"context"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// StudentsTable holds the student directory.
const StudentsTable = "students"

var studentSchema = datastore.NewSchema("firstName", "lastName", "grade", "parentEmail")

// StudentRepository decodes the students table.
type StudentRepository struct {
	binder *tableBinder
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(store datastore.Store, reader *TableReader) *StudentRepository {
	return &StudentRepository{binder: newTableBinder(store, reader, studentSchema)}
}

// EnsureTable creates the students table when absent and validates its columns.
func (r *StudentRepository) EnsureTable(ctx context.Context) error {
	_, err := r.binder.ensure(ctx, StudentsTable)
	return err
}

// List returns every student.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	snap, binding, err := r.binder.snapshot(ctx, StudentsTable)
	if err != nil || snap == nil {
		return []models.Student{}, err
	}
	out := make([]models.Student, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		reader := binding.Reader(row)
		grade, err := reader.Int("grade")
		if err != nil {
			return nil, err
		}
		out = append(out, models.Student{
			ID:          reader.String(datastore.IDColumn),
			FirstName:   reader.String("firstName"),
			LastName:    reader.String("lastName"),
			Grade:       grade,
			ParentEmail: reader.String("parentEmail"),
		})
	}
	return out, nil
}

// FindByID returns datastore.ErrRowNotFound when the student does not exist.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	students, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], nil
		}
	}
	return nil, datastore.ErrRowNotFound
}
