package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
	"github.com/noah-isme/exam-proctor-api/pkg/response"
)

type plannerService interface {
	Plan(ctx context.Context, examID string, req dto.PlanAssignmentRequest, actor *models.JWTClaims) (*dto.PlanResult, error)
}

// AssignmentHandler exposes the planning endpoint.
type AssignmentHandler struct {
	planner plannerService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(planner plannerService) *AssignmentHandler {
	return &AssignmentHandler{planner: planner}
}

// Plan godoc
// @Summary Plan proctor assignments for an exam
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.PlanAssignmentRequest true "Planning payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/plan [post]
func (h *AssignmentHandler) Plan(c *gin.Context) {
	var req dto.PlanAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid planning payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.planner.Plan(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
