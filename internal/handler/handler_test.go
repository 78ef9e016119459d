package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/middleware"
	"github.com/noah-isme/edu-resource-api/internal/models"
)

type responseEnvelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Code       string             `json:"code"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
}

var (
	adminClaims  = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	schoolClaims = &models.JWTClaims{UserID: "school-1", Role: models.RoleSchool}
)

// serve runs h against req with optional claims and path params.
func serve(h gin.HandlerFunc, req *http.Request, claims *models.JWTClaims, params ...gin.Param) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	h(c)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
