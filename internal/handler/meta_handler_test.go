package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

type fakeMetaSrv struct {
	gradeReq  dto.GradeRequest
	updatedID string
	deleteErr error
	createErr error
}

func (f *fakeMetaSrv) ListGrades(context.Context) ([]models.Grade, error) {
	return []models.Grade{{ID: "g1", GradeLevel: "Grade 1", GradeNumber: 1}}, nil
}

func (f *fakeMetaSrv) CreateGrade(_ context.Context, req dto.GradeRequest) (*models.Grade, error) {
	f.gradeReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Grade{ID: "g2", GradeLevel: req.GradeLevel, GradeNumber: req.GradeNumber}, nil
}

func (f *fakeMetaSrv) UpdateGrade(_ context.Context, id string, req dto.GradeRequest) (*models.Grade, error) {
	f.updatedID = id
	return &models.Grade{ID: id, GradeLevel: req.GradeLevel}, nil
}

func (f *fakeMetaSrv) DeleteGrade(context.Context, string) error { return f.deleteErr }

func (f *fakeMetaSrv) ListSubjects(context.Context) ([]models.Subject, error) { return nil, nil }
func (f *fakeMetaSrv) CreateSubject(context.Context, dto.SubjectRequest) (*models.Subject, error) {
	return &models.Subject{}, nil
}
func (f *fakeMetaSrv) UpdateSubject(context.Context, string, dto.SubjectRequest) (*models.Subject, error) {
	return &models.Subject{}, nil
}
func (f *fakeMetaSrv) DeleteSubject(context.Context, string) error { return f.deleteErr }

func (f *fakeMetaSrv) ListResourceTypes(context.Context) ([]models.ResourceType, error) {
	return nil, nil
}
func (f *fakeMetaSrv) CreateResourceType(context.Context, dto.ResourceTypeRequest) (*models.ResourceType, error) {
	return &models.ResourceType{}, nil
}
func (f *fakeMetaSrv) UpdateResourceType(context.Context, string, dto.ResourceTypeRequest) (*models.ResourceType, error) {
	return &models.ResourceType{}, nil
}
func (f *fakeMetaSrv) DeleteResourceType(context.Context, string) error { return f.deleteErr }

func (f *fakeMetaSrv) ListTags(context.Context) ([]models.Tag, error) { return []models.Tag{}, nil }
func (f *fakeMetaSrv) CreateTag(context.Context, dto.TagRequest) (*models.Tag, error) {
	return &models.Tag{}, nil
}
func (f *fakeMetaSrv) UpdateTag(context.Context, string, dto.TagRequest) (*models.Tag, error) {
	return &models.Tag{}, nil
}
func (f *fakeMetaSrv) DeleteTag(context.Context, string) error { return f.deleteErr }

func (f *fakeMetaSrv) Stats(context.Context) (*models.Stats, error) {
	return &models.Stats{TotalResources: 7}, nil
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMetaHandlerListGrades(t *testing.T) {
	h := NewMetaHandler(&fakeMetaSrv{})

	rec := serve(h.ListGrades, httptest.NewRequest(http.MethodGet, "/meta/grades", nil), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var grades []models.Grade
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &grades))
	require.Len(t, grades, 1)
	assert.Equal(t, "Grade 1", grades[0].GradeLevel)
}

func TestMetaHandlerCreateGrade(t *testing.T) {
	svc := &fakeMetaSrv{}
	h := NewMetaHandler(svc)

	rec := serve(h.CreateGrade, jsonRequest(http.MethodPost, "/meta/grades", `{"grade_level":"Grade 2","grade_number":2}`), adminClaims)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Grade created successfully", env.Message)
	assert.Equal(t, 2, svc.gradeReq.GradeNumber)
}

func TestMetaHandlerRejectsMalformedJSON(t *testing.T) {
	h := NewMetaHandler(&fakeMetaSrv{})

	rec := serve(h.CreateTag, jsonRequest(http.MethodPost, "/meta/tags", `{"tag_name":`), adminClaims)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Code)
}

func TestMetaHandlerConflictPassesThrough(t *testing.T) {
	h := NewMetaHandler(&fakeMetaSrv{createErr: appErrors.Clone(appErrors.ErrConflict, "grade level already exists")})

	rec := serve(h.CreateGrade, jsonRequest(http.MethodPost, "/meta/grades", `{"grade_level":"Grade 1","grade_number":1}`), adminClaims)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "grade level already exists", env.Message)
	assert.Equal(t, appErrors.ErrConflict.Code, env.Code)
}

func TestMetaHandlerUpdateUsesPathID(t *testing.T) {
	svc := &fakeMetaSrv{}
	h := NewMetaHandler(svc)

	rec := serve(h.UpdateGrade, jsonRequest(http.MethodPut, "/meta/grades/g9", `{"grade_level":"Grade 9","grade_number":9}`), adminClaims, gin.Param{Key: "id", Value: "g9"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g9", svc.updatedID)
}

func TestMetaHandlerDelete(t *testing.T) {
	h := NewMetaHandler(&fakeMetaSrv{})
	rec := serve(h.DeleteSubject, httptest.NewRequest(http.MethodDelete, "/meta/subjects/s1", nil), adminClaims, gin.Param{Key: "id", Value: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Subject deleted successfully", decodeEnvelope(t, rec).Message)

	h = NewMetaHandler(&fakeMetaSrv{deleteErr: appErrors.Clone(appErrors.ErrConflict, "subject is used by existing resources")})
	rec = serve(h.DeleteSubject, httptest.NewRequest(http.MethodDelete, "/meta/subjects/s1", nil), adminClaims, gin.Param{Key: "id", Value: "s1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetaHandlerStats(t *testing.T) {
	h := NewMetaHandler(&fakeMetaSrv{})

	rec := serve(h.Stats, httptest.NewRequest(http.MethodGet, "/meta/stats", nil), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Stats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.EqualValues(t, 7, stats.TotalResources)
}
