package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/marketplace-api/internal/dto"
	"github.com/procurehub/marketplace-api/internal/models"
	"github.com/procurehub/marketplace-api/internal/service"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
	"github.com/procurehub/marketplace-api/pkg/response"
)

// OpportunityHandler exposes opportunity endpoints.
type OpportunityHandler struct {
	opportunities *service.OpportunityService
}

// NewOpportunityHandler constructs OpportunityHandler.
func NewOpportunityHandler(opportunities *service.OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities}
}

// List godoc
// @Summary List opportunities
// @Tags Opportunities
// @Produce json
// @Param status query string false "Comma separated status filter (admin only)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /opportunities [get]
func (h *OpportunityHandler) List(c *gin.Context) {
	var query dto.OpportunityQuery
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				query.Statuses = append(query.Statuses, models.OpportunityStatus(strings.ToUpper(part)))
			}
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	views, err := h.opportunities.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get opportunity detail
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {object} response.Envelope
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) Get(c *gin.Context) {
	view, err := h.opportunities.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Create opportunity
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param payload body dto.CreateOpportunityRequest true "Opportunity payload"
// @Success 201 {object} response.Envelope
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(c *gin.Context) {
	var req dto.CreateOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.opportunities.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Edit godoc
// @Summary Edit opportunity (appends a new version)
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param payload body dto.EditOpportunityRequest true "Replacement snapshot"
// @Success 200 {object} response.Envelope
// @Router /opportunities/{id} [put]
func (h *OpportunityHandler) Edit(c *gin.Context) {
	var req dto.EditOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.opportunities.Edit(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ChangeStatus godoc
// @Summary Transition opportunity status
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param payload body dto.ChangeOpportunityStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /opportunities/{id}/status [post]
func (h *OpportunityHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeOpportunityStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.opportunities.ChangeStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// AddAddendum godoc
// @Summary Append an addendum
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param payload body dto.AddAddendumRequest true "Addendum"
// @Success 201 {object} response.Envelope
// @Router /opportunities/{id}/addenda [post]
func (h *OpportunityHandler) AddAddendum(c *gin.Context) {
	var req dto.AddAddendumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.opportunities.AddAddendum(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// AddNote godoc
// @Summary Record an internal note
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param payload body dto.AddNoteRequest true "Note"
// @Success 201 {object} response.Envelope
// @Router /opportunities/{id}/notes [post]
func (h *OpportunityHandler) AddNote(c *gin.Context) {
	var req dto.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.opportunities.AddNote(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Watch godoc
// @Summary Subscribe to opportunity updates
// @Tags Opportunities
// @Param id path string true "Opportunity ID"
// @Success 204
// @Router /opportunities/{id}/watch [post]
func (h *OpportunityHandler) Watch(c *gin.Context) {
	if err := h.opportunities.Watch(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unwatch godoc
// @Summary Unsubscribe from opportunity updates
// @Tags Opportunities
// @Param id path string true "Opportunity ID"
// @Success 204
// @Router /opportunities/{id}/watch [delete]
func (h *OpportunityHandler) Unwatch(c *gin.Context) {
	if err := h.opportunities.Unwatch(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete opportunity
// @Tags Opportunities
// @Param id path string true "Opportunity ID"
// @Success 204
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(c *gin.Context) {
	if err := h.opportunities.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
