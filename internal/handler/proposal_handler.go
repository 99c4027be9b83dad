package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/marketplace-api/internal/dto"
	"github.com/procurehub/marketplace-api/internal/service"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
	"github.com/procurehub/marketplace-api/pkg/response"
)

// ProposalHandler exposes proposal endpoints.
type ProposalHandler struct {
	proposals *service.ProposalService
}

// NewProposalHandler constructs ProposalHandler.
func NewProposalHandler(proposals *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

// List godoc
// @Summary List proposals visible to the caller
// @Tags Proposals
// @Produce json
// @Param opportunityId query string false "Filter by opportunity"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /proposals [get]
func (h *ProposalHandler) List(c *gin.Context) {
	var query dto.ProposalQuery
	query.OpportunityID = c.Query("opportunityId")
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	views, err := h.proposals.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get proposal detail
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id} [get]
func (h *ProposalHandler) Get(c *gin.Context) {
	view, err := h.proposals.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Open a draft proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param payload body dto.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /proposals [post]
func (h *ProposalHandler) Create(c *gin.Context) {
	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.proposals.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Replace draft proposal content
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.UpdateProposalRequest true "Replacement content"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id} [put]
func (h *ProposalHandler) Update(c *gin.Context) {
	var req dto.UpdateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.proposals.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ChangeStatus godoc
// @Summary Transition proposal status (submit, withdraw, review moves)
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ChangeProposalStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/status [post]
func (h *ProposalHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeProposalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.proposals.ChangeStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Award godoc
// @Summary Award the proposal and settle its siblings
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.AwardProposalRequest true "Award note"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/award [post]
func (h *ProposalHandler) Award(c *gin.Context) {
	var req dto.AwardProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.proposals.Award(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UpdateScore godoc
// @Summary Record an evaluation score
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ScoreProposalRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/score [post]
func (h *ProposalHandler) UpdateScore(c *gin.Context) {
	var req dto.ScoreProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.proposals.UpdateScore(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete proposal
// @Tags Proposals
// @Param id path string true "Proposal ID"
// @Success 204
// @Router /proposals/{id} [delete]
func (h *ProposalHandler) Delete(c *gin.Context) {
	if err := h.proposals.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
