package service

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/datastore"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type instructorReader interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// DirectoryService resolves students, instructors and classes, memoising hits for a short TTL.
type DirectoryService struct {
	students    studentReader
	instructors instructorReader
	classes     classReader
	memo        *gocache.Cache
	logger      *zap.Logger
}

// NewDirectoryService constructs the directory. A non-positive ttl disables memoisation.
func NewDirectoryService(students studentReader, instructors instructorReader, classes classReader, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	var memo *gocache.Cache
	if ttl > 0 {
		memo = gocache.New(ttl, 2*ttl)
	}
	return &DirectoryService{students: students, instructors: instructors, classes: classes, memo: memo, logger: logger}
}

// Student returns a NotFound error when the id is unknown.
func (s *DirectoryService) Student(ctx context.Context, id string) (*models.Student, error) {
	if v, ok := s.lookup("student:" + id); ok {
		if student, ok := v.(*models.Student); ok {
			return student, nil
		}
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "student not found", "failed to load student")
	}
	s.remember("student:"+id, student)
	return student, nil
}

// Instructor returns a NotFound error when the id is unknown.
func (s *DirectoryService) Instructor(ctx context.Context, id string) (*models.Instructor, error) {
	if v, ok := s.lookup("instructor:" + id); ok {
		if instructor, ok := v.(*models.Instructor); ok {
			return instructor, nil
		}
	}
	instructor, err := s.instructors.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "instructor not found", "failed to load instructor")
	}
	s.remember("instructor:"+id, instructor)
	return instructor, nil
}

// Class returns a NotFound error when the id is unknown.
func (s *DirectoryService) Class(ctx context.Context, id string) (*models.Class, error) {
	if v, ok := s.lookup("class:" + id); ok {
		if class, ok := v.(*models.Class); ok {
			return class, nil
		}
	}
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "class not found", "failed to load class")
	}
	s.remember("class:"+id, class)
	return class, nil
}

// Flush drops every memoised entry.
func (s *DirectoryService) Flush() {
	if s.memo != nil {
		s.memo.Flush()
	}
}

func (s *DirectoryService) lookup(key string) (interface{}, bool) {
	if s.memo == nil {
		return nil, false
	}
	return s.memo.Get(key)
}

func (s *DirectoryService) remember(key string, value interface{}) {
	if s.memo != nil {
		s.memo.SetDefault(key, value)
	}
}

func (s *DirectoryService) mapError(err error, notFound, failed string) error {
	if errors.Is(err, datastore.ErrRowNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	s.logger.Warn(failed, zap.Error(err))
	return appErrors.Store(err, failed)
}
