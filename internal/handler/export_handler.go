package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/marketplace-api/internal/service"
	"github.com/procurehub/marketplace-api/pkg/response"
)

// ExportHandler serves downloadable reports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// AwardSummary godoc
// @Summary Download the award summary for an opportunity
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Opportunity ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /opportunities/{id}/award-summary [get]
func (h *ExportHandler) AwardSummary(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.AwardSummary(c.Request.Context(), claimsFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
