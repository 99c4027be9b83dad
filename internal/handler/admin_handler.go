package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/marketplace-api/internal/service"
	"github.com/procurehub/marketplace-api/pkg/response"
)

// AdminHandler exposes maintenance endpoints meant to be hit by operators or
// an external scheduler.
type AdminHandler struct {
	opportunities *service.OpportunityService
	exports       *service.ExportService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(opportunities *service.OpportunityService, exports *service.ExportService) *AdminHandler {
	return &AdminHandler{opportunities: opportunities, exports: exports}
}

// CloseLapsed godoc
// @Summary Close opportunities whose proposal deadline has passed
// @Tags Admin
// @Produce json
// @Param format query string false "Optional report export format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Router /admin/opportunities/close-lapsed [post]
func (h *AdminHandler) CloseLapsed(c *gin.Context) {
	report, err := h.opportunities.CloseLapsed(c.Request.Context(), claimsFromContext(c), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	if format := c.Query("format"); format != "" && h.exports != nil {
		result, err := h.exports.CloseRunSummary(report, service.ExportFormat(format))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+result.Filename)
		c.Data(http.StatusOK, result.ContentType, result.Data)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}
