package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/models"
)

func TestProposalHandlerCreateInvalidBody(t *testing.T) {
	handler := NewProposalHandler(nil)
	c, w := testContext(t, http.MethodPost, "/proposals", []byte(`{"opportunityId":`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "vendor-1", Role: models.RoleVendor})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandlerScoreInvalidBody(t *testing.T) {
	handler := NewProposalHandler(nil)
	c, w := testContext(t, http.MethodPost, "/proposals/prop-1/score", []byte(`"ninety"`))
	c.Params = gin.Params{{Key: "id", Value: "prop-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.UpdateScore(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := testContext(t, http.MethodGet, "/auth/me", nil)

	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
