package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/models"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

type auditRepository interface {
	Append(ctx context.Context, registrationTable string, record models.AuditRecord) error
	List(ctx context.Context, registrationTable string) ([]models.AuditRecord, error)
}

// AuditService writes and replays the append-only audit trail of each registrations table.
type AuditService struct {
	repo   auditRepository
	ids    IDGenerator
	now    func() time.Time
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditRepository, ids IDGenerator, now func() time.Time, logger *zap.Logger) *AuditService {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, ids: ids, now: now, logger: logger}
}

// RecordCreate appends the creation snapshot of reg.
func (s *AuditService) RecordCreate(ctx context.Context, table string, reg models.Registration) (models.AuditRecord, error) {
	record := models.NewAuditSnapshot(s.ids.NewID(), reg)
	if err := s.repo.Append(ctx, table, record); err != nil {
		return models.AuditRecord{}, err
	}
	return record, nil
}

// RecordDelete appends the cancellation snapshot of reg.
func (s *AuditService) RecordDelete(ctx context.Context, table string, reg models.Registration, performedBy string) (models.AuditRecord, error) {
	deletedAt := s.now().UTC()
	record := models.NewAuditSnapshot(s.ids.NewID(), reg)
	record.IsDeleted = true
	record.DeletedAt = &deletedAt
	record.DeletedBy = performedBy
	if err := s.repo.Append(ctx, table, record); err != nil {
		return models.AuditRecord{}, err
	}
	return record, nil
}

// History returns every record of one registration in write order.
func (s *AuditService) History(ctx context.Context, table, registrationID string) ([]models.AuditRecord, error) {
	records, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load audit trail")
	}
	out := make([]models.AuditRecord, 0)
	for _, r := range records {
		if r.RegistrationID == registrationID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no audit history for registration")
	}
	return out, nil
}

// Reconstruct replays the trail and returns the registrations it leaves active, ordered by
// their latest creation.
func (s *AuditService) Reconstruct(ctx context.Context, table string) ([]models.Registration, error) {
	records, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load audit trail")
	}
	active := make(map[string]models.Registration)
	latest := make(map[string]int)
	for i, r := range records {
		if r.IsDeleted {
			delete(active, r.RegistrationID)
			continue
		}
		active[r.RegistrationID] = r.Registration()
		latest[r.RegistrationID] = i
	}
	out := make([]models.Registration, 0, len(active))
	for _, reg := range active {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return latest[out[i].ID] < latest[out[j].ID] })
	return out, nil
}
