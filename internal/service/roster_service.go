package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/models"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
	"github.com/noah-isme/lesson-registration-api/pkg/export"
)

type registrationLister interface {
	List(ctx context.Context, period string, filter models.RegistrationFilter) ([]models.Registration, string, error)
}

type rosterDirectory interface {
	Student(ctx context.Context, id string) (*models.Student, error)
	Instructor(ctx context.Context, id string) (*models.Instructor, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// RosterRequest selects the registrations that make up a roster.
type RosterRequest struct {
	Period       string        `form:"period"`
	InstructorID string        `form:"instructorId"`
	Format       export.Format `form:"format"`
}

// RosterFile is a rendered roster ready to be streamed.
type RosterFile struct {
	Filename    string
	ContentType string
	Table       string
	Rows        int
	Content     []byte
}

// RosterService renders trimester rosters for instructors and the front office.
type RosterService struct {
	registrations registrationLister
	directory     rosterDirectory
	renderers     map[export.Format]datasetRenderer
	logger        *zap.Logger
}

// NewRosterService constructs the roster service. Nil renderers fall back to the pkg/export defaults.
func NewRosterService(registrations registrationLister, directory rosterDirectory, csv, pdf datasetRenderer, logger *zap.Logger) *RosterService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		registrations: registrations,
		directory:     directory,
		renderers:     map[export.Format]datasetRenderer{export.FormatCSV: csv, export.FormatPDF: pdf},
		logger:        logger,
	}
}

var rosterHeaders = []string{"Day", "Start", "Length", "Type", "Student", "Grade", "Instructor", "Instrument", "Room", "Class", "Transportation", "Notes"}

var rosterWidths = []float64{1.2, 0.8, 0.8, 0.9, 2, 0.7, 1.8, 1.2, 0.8, 1.8, 1.3, 2.5}

// Export renders the roster of a period, optionally restricted to one instructor.
func (s *RosterService) Export(ctx context.Context, req RosterRequest) (*RosterFile, error) {
	format := req.Format
	if format == "" {
		format = export.FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported roster format %q", format))
	}

	regs, table, err := s.registrations.List(ctx, req.Period, models.RegistrationFilter{InstructorID: req.InstructorID})
	if err != nil {
		return nil, err
	}

	subtitle := table
	if req.InstructorID != "" {
		instructor, err := s.directory.Instructor(ctx, req.InstructorID)
		if err != nil {
			return nil, err
		}
		subtitle = fmt.Sprintf("%s - %s", table, instructor.FullName())
	}

	rows := make([][]string, 0, len(regs))
	names := map[string]string{}
	for _, reg := range regs {
		student, grade := s.studentName(ctx, reg.StudentID)
		instructor, ok := names[reg.InstructorID]
		if !ok {
			instructor = s.instructorName(ctx, reg.InstructorID)
			names[reg.InstructorID] = instructor
		}
		rows = append(rows, []string{
			string(reg.Day),
			reg.StartTime,
			strconv.Itoa(reg.LengthMinutes),
			string(reg.RegistrationType),
			student,
			grade,
			instructor,
			reg.Instrument,
			reg.RoomID,
			reg.ClassTitle,
			reg.TransportationType,
			reg.Notes,
		})
	}

	data := export.Dataset{
		Title:    "Lesson roster",
		Subtitle: subtitle,
		Headers:  rosterHeaders,
		Rows:     rows,
		Widths:   rosterWidths,
	}
	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := table
	if req.InstructorID != "" {
		filename += "_" + req.InstructorID
	}
	s.logger.Debug("roster rendered", zap.String("table", table), zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &RosterFile{
		Filename:    filename + "." + string(format),
		ContentType: renderer.ContentType(),
		Table:       table,
		Rows:        len(rows),
		Content:     content,
	}, nil
}

// studentName falls back to the raw id when the student row has gone missing since registration.
func (s *RosterService) studentName(ctx context.Context, id string) (string, string) {
	student, err := s.directory.Student(ctx, id)
	if err != nil {
		s.logger.Warn("roster student lookup failed", zap.String("student_id", id), zap.Error(err))
		return id, ""
	}
	grade := ""
	if student.Grade > 0 {
		grade = strconv.Itoa(student.Grade)
	}
	return student.FullName(), grade
}

func (s *RosterService) instructorName(ctx context.Context, id string) string {
	instructor, err := s.directory.Instructor(ctx, id)
	if err != nil {
		s.logger.Warn("roster instructor lookup failed", zap.String("instructor_id", id), zap.Error(err))
		return id
	}
	return instructor.FullName()
}
