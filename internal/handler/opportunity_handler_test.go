package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/models"
)

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestOpportunityHandlerCreateInvalidBody(t *testing.T) {
	handler := NewOpportunityHandler(nil)
	c, w := testContext(t, http.MethodPost, "/opportunities", []byte(`not json`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "gov-1", Role: models.RoleGovernment})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpportunityHandlerChangeStatusInvalidBody(t *testing.T) {
	handler := NewOpportunityHandler(nil)
	c, w := testContext(t, http.MethodPost, "/opportunities/opp-1/status", []byte(`{`))
	c.Params = gin.Params{{Key: "id", Value: "opp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.ChangeStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpportunityHandlerAddNoteInvalidBody(t *testing.T) {
	handler := NewOpportunityHandler(nil)
	c, w := testContext(t, http.MethodPost, "/opportunities/opp-1/notes", []byte(`[]`))
	c.Params = gin.Params{{Key: "id", Value: "opp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "gov-1", Role: models.RoleGovernment})

	handler.AddNote(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
