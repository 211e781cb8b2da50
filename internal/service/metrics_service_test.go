package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-registration-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheInvalidation("registrations_fall")
	m.RecordInvalidationFailure("registrations_fall_audit")
	m.RecordRegistration("created", "registrations_fall")
	m.RecordRegistration("cancelled", "registrations_fall")
	m.RecordConflicts([]models.Conflict{{Type: models.ConflictDuplicate}, {Type: models.ConflictStudentSchedule}})
	m.RecordConflicts(nil)
	m.ObserveDBQuery("read:registrations_fall", 4*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/registrations", http.StatusCreated, 10*time.Millisecond)
	m.RecordNotification("registration.created", nil)
	m.RecordNotification("registration.created", errors.New("down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.CacheInvalidations)
	assert.Equal(t, uint64(1), snap.InvalidationFailures)
	assert.Equal(t, uint64(1), snap.RegistrationsCreated)
	assert.Equal(t, uint64(1), snap.RegistrationsCancelled)
	assert.Equal(t, uint64(1), snap.ConflictsRejected)
	assert.Equal(t, uint64(1), snap.StoreCallCount)
	assert.InDelta(t, 4.0, snap.AverageStoreCallMs, 0.001)
	assert.Equal(t, uint64(1), snap.RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `registration_conflicts_total{type="duplicate"} 1`)
	assert.Contains(t, body, `table_cache_invalidation_failures_total{table="registrations_fall_audit"} 1`)
	assert.Contains(t, body, `registration_notifications_total{event="registration.created",outcome="failed"} 1`)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordRegistration("created", "registrations_fall")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `registrations_total{action="created",table="registrations_fall"} 1`)

	var nilMetrics *MetricsService
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	nilMetrics.RecordRegistration("created", "registrations_fall")
}
