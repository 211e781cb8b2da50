package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-registration-api/internal/middleware"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/internal/service"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

type registrationServiceMock struct {
	createReq service.CreateRegistrationRequest
	opts      service.MutationOptions
	filter    models.RegistrationFilter
	period    string
	reg       *models.Registration
	regs      []models.Registration
	bulk      *service.BulkCreateResult
	deletedID string
	err       error
}

func (m *registrationServiceMock) Create(ctx context.Context, req service.CreateRegistrationRequest, opts service.MutationOptions) (*models.Registration, error) {
	m.createReq, m.opts = req, opts
	return m.reg, m.err
}

func (m *registrationServiceMock) BulkCreate(ctx context.Context, req service.BulkCreateRegistrationsRequest, opts service.MutationOptions) (*service.BulkCreateResult, error) {
	m.opts = opts
	return m.bulk, m.err
}

func (m *registrationServiceMock) Update(ctx context.Context, id string, req service.UpdateRegistrationRequest, opts service.MutationOptions) (*models.Registration, error) {
	m.opts = opts
	return m.reg, m.err
}

func (m *registrationServiceMock) Delete(ctx context.Context, id string, opts service.MutationOptions) (*models.Registration, error) {
	m.deletedID, m.opts = id, opts
	return m.reg, m.err
}

func (m *registrationServiceMock) List(ctx context.Context, period string, filter models.RegistrationFilter) ([]models.Registration, string, error) {
	m.period, m.filter = period, filter
	return m.regs, "registrations_fall", m.err
}

type auditHistoryMock struct {
	table, id string
	records   []models.AuditRecord
	err       error
}

func (m *auditHistoryMock) History(ctx context.Context, table, registrationID string) ([]models.AuditRecord, error) {
	m.table, m.id = table, registrationID
	return m.records, m.err
}

type rosterMock struct {
	req  service.RosterRequest
	file *service.RosterFile
	err  error
}

func (m *rosterMock) Export(ctx context.Context, req service.RosterRequest) (*service.RosterFile, error) {
	m.req = req
	return m.file, m.err
}

type routerStub struct{}

func (routerStub) TableFor(period string) (string, error) {
	switch period {
	case "", "current":
		return "registrations_fall", nil
	case "enrollment":
		return "registrations_winter", nil
	case "fall", "winter", "spring":
		return "registrations_" + period, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "unknown trimester")
}

var (
	adminClaims      = &models.JWTClaims{UserID: "u1", Email: "office@school.test", Role: models.RoleAdmin}
	parentClaims     = &models.JWTClaims{UserID: "p1", Email: "parent@home.test", Role: models.RoleParent}
	instructorClaims = &models.JWTClaims{UserID: "I1", Role: models.RoleInstructor}
)

func newContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegistrationHandlerCreate(t *testing.T) {
	svc := &registrationServiceMock{reg: &models.Registration{ID: "S1_I1_Monday_15:00"}}
	h := NewRegistrationHandler(svc, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	body := []byte(`{"student_id":"S1","registration_type":"private","instructor_id":"I1","day":"Monday","start_time":"15:00","length":30}`)
	c, w := newContext(http.MethodPost, "/registrations?trimester=spring", body, adminClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "S1", svc.createReq.StudentID)
	assert.Equal(t, 30, svc.createReq.LengthMinutes)
	assert.Equal(t, service.MutationOptions{Table: "registrations_spring", Actor: "office@school.test", Privileged: true}, svc.opts)
}

func TestRegistrationHandlerCreateRequiresClaims(t *testing.T) {
	h := NewRegistrationHandler(&registrationServiceMock{}, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodPost, "/registrations", []byte(`{}`), nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationHandlerCreateBadPayloadAndTrimester(t *testing.T) {
	h := NewRegistrationHandler(&registrationServiceMock{}, &auditHistoryMock{}, &rosterMock{}, routerStub{})

	c, w := newContext(http.MethodPost, "/registrations", []byte(`{"length":"thirty"}`), parentClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext(http.MethodPost, "/registrations?trimester=summer", []byte(`{}`), parentClaims)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerCreateConflictCarriesDetails(t *testing.T) {
	conflicts := []models.Conflict{{Type: models.ConflictDuplicate, ExistingRegistrationID: "S1_I1_Monday_15:00"}}
	svc := &registrationServiceMock{err: appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "registration conflicts"), conflicts)}
	h := NewRegistrationHandler(svc, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodPost, "/registrations", []byte(`{"student_id":"S1"}`), parentClaims)

	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	out := decode(t, w)
	require.NotNil(t, out.Error)
	assert.Equal(t, "CONFLICT", out.Error.Code)
	assert.NotNil(t, out.Error.Details)
	assert.False(t, svc.opts.Privileged)
}

func TestRegistrationHandlerBulkRejectedReturnsResult(t *testing.T) {
	result := &service.BulkCreateResult{Table: "registrations_fall", Rejected: []service.BulkRejection{{Index: 1, Error: "duplicate"}}}
	svc := &registrationServiceMock{bulk: result, err: appErrors.Clone(appErrors.ErrConflict, "bulk registration rejected")}
	h := NewRegistrationHandler(svc, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodPost, "/registrations/bulk", []byte(`{"items":[{"student_id":"S1"}]}`), adminClaims)

	h.BulkCreate(c)

	require.Equal(t, http.StatusConflict, w.Code)
	out := decode(t, w)
	assert.Contains(t, string(out.Data), `"rejected"`)
}

func TestRegistrationHandlerBulkCreated(t *testing.T) {
	result := &service.BulkCreateResult{Table: "registrations_fall", Created: []models.Registration{{ID: "a"}, {ID: "b"}}}
	h := NewRegistrationHandler(&registrationServiceMock{bulk: result}, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodPost, "/registrations/bulk", []byte(`{"items":[{},{}]}`), adminClaims)

	h.BulkCreate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(2), decode(t, w).Meta["created"])
}

func TestRegistrationHandlerUpdateAndDelete(t *testing.T) {
	svc := &registrationServiceMock{reg: &models.Registration{ID: "r1"}}
	h := NewRegistrationHandler(svc, &auditHistoryMock{}, &rosterMock{}, routerStub{})

	c, w := newContext(http.MethodPatch, "/registrations/r1", []byte(`{"notes":"bring music"}`), adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Update(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodDelete, "/registrations/r1", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Delete(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", svc.deletedID)
	assert.Equal(t, "office@school.test", svc.opts.Actor)

	svc.err = appErrors.ErrNotFound
	c, w = newContext(http.MethodDelete, "/registrations/r2", nil, adminClaims)
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistrationHandlerListPaginatesAndFilters(t *testing.T) {
	regs := make([]models.Registration, 5)
	for i := range regs {
		regs[i] = models.Registration{ID: string(rune('a' + i))}
	}
	svc := &registrationServiceMock{regs: regs}
	h := NewRegistrationHandler(svc, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodGet, "/registrations?period=enrollment&day=tue&instructorId=I3&page=2&pageSize=2", nil, adminClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "enrollment", svc.period)
	assert.Equal(t, models.RegistrationFilter{InstructorID: "I3", Day: models.Tuesday}, svc.filter)

	out := decode(t, w)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 5}, out.Pagination)
	assert.Equal(t, "registrations_fall", out.Meta["table"])
	var page []models.Registration
	require.NoError(t, json.Unmarshal(out.Data, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
}

func TestRegistrationHandlerListRejectsWeekend(t *testing.T) {
	h := NewRegistrationHandler(&registrationServiceMock{}, &auditHistoryMock{}, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodGet, "/registrations?day=Saturday", nil, adminClaims)

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerHistory(t *testing.T) {
	audit := &auditHistoryMock{records: []models.AuditRecord{{ID: "a1", RegistrationID: "r1"}}}
	h := NewRegistrationHandler(&registrationServiceMock{}, audit, &rosterMock{}, routerStub{})
	c, w := newContext(http.MethodGet, "/registrations/r1/history?period=winter", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "registrations_winter", audit.table)
	assert.Equal(t, "r1", audit.id)
}

func TestRegistrationHandlerExport(t *testing.T) {
	roster := &rosterMock{file: &service.RosterFile{Filename: "registrations_fall.csv", ContentType: "text/csv", Content: []byte("Day\n")}}
	h := NewRegistrationHandler(&registrationServiceMock{}, &auditHistoryMock{}, roster, routerStub{})
	c, w := newContext(http.MethodGet, "/registrations/export?format=csv&instructorId=I2", nil, adminClaims)

	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "registrations_fall.csv")
	assert.Equal(t, "I2", roster.req.InstructorID)
}

func TestRegistrationHandlerExportScopesInstructors(t *testing.T) {
	roster := &rosterMock{file: &service.RosterFile{Filename: "x.csv", ContentType: "text/csv"}}
	h := NewRegistrationHandler(&registrationServiceMock{}, &auditHistoryMock{}, roster, routerStub{})

	c, w := newContext(http.MethodGet, "/registrations/export", nil, instructorClaims)
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "I1", roster.req.InstructorID)

	c, w = newContext(http.MethodGet, "/registrations/export?instructorId=I2", nil, instructorClaims)
	h.Export(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
