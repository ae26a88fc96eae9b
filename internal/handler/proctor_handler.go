package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
	"github.com/noah-isme/exam-proctor-api/pkg/response"
)

type proctorService interface {
	Get(ctx context.Context, id string) (*models.Proctor, error)
	ForUser(ctx context.Context, userID string) (*models.Proctor, error)
	List(ctx context.Context, filter models.ProctorFilter) ([]models.Proctor, int, error)
	Roster(ctx context.Context, proctorID string) ([]models.AssignmentDetail, error)
	Workload(ctx context.Context, proctorID, termID string) (*models.WorkloadRecord, error)
	Constraints(ctx context.Context, proctorID string) ([]models.ProctorConstraint, error)
	AddConstraint(ctx context.Context, constraint *models.ProctorConstraint) error
	RemoveConstraint(ctx context.Context, id string) error
	CheckEligibility(ctx context.Context, proctorID, examID string) (*models.EligibilityVerdict, error)
}

// ProctorHandler exposes REST endpoints for the proctor directory, rosters
// and constraints.
type ProctorHandler struct {
	service proctorService
}

// NewProctorHandler constructs the handler.
func NewProctorHandler(service proctorService) *ProctorHandler {
	return &ProctorHandler{service: service}
}

// List godoc
// @Summary List proctors
// @Tags Proctors
// @Produce json
// @Param department query string false "Department code"
// @Param level query string false "Academic level"
// @Success 200 {object} response.Envelope
// @Router /proctors [get]
func (h *ProctorHandler) List(c *gin.Context) {
	filter := models.ProctorFilter{
		DepartmentCode: strings.TrimSpace(c.Query("department")),
		Search:         strings.TrimSpace(c.Query("search")),
	}
	if level := strings.ToUpper(strings.TrimSpace(c.Query("level"))); level != "" {
		filter.AcademicLevel = models.AcademicLevel(level)
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	proctors, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proctors, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Fetch one proctor
// @Tags Proctors
// @Produce json
// @Param id path string true "Proctor ID"
// @Success 200 {object} response.Envelope
// @Router /proctors/{id} [get]
func (h *ProctorHandler) Get(c *gin.Context) {
	proctor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proctor, nil)
}

// Roster godoc
// @Summary Upcoming duty roster for one proctor
// @Tags Proctors
// @Produce json
// @Param id path string true "Proctor ID"
// @Success 200 {object} response.Envelope
// @Router /proctors/{id}/roster [get]
func (h *ProctorHandler) Roster(c *gin.Context) {
	duties, err := h.service.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, duties, nil)
}

// MyRoster godoc
// @Summary Upcoming duty roster for the caller
// @Tags Proctors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/roster [get]
func (h *ProctorHandler) MyRoster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	proctor, err := h.service.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	duties, err := h.service.Roster(c.Request.Context(), proctor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, duties, nil)
}

// Workload godoc
// @Summary Committed workload for one proctor in a term
// @Tags Proctors
// @Produce json
// @Param id path string true "Proctor ID"
// @Param term_id query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /proctors/{id}/workload [get]
func (h *ProctorHandler) Workload(c *gin.Context) {
	termID := strings.TrimSpace(c.Query("term_id"))
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term_id is required"))
		return
	}
	record, err := h.service.Workload(c.Request.Context(), c.Param("id"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Constraints godoc
// @Summary Stored constraints for one proctor
// @Tags Proctors
// @Produce json
// @Param id path string true "Proctor ID"
// @Success 200 {object} response.Envelope
// @Router /proctors/{id}/constraints [get]
func (h *ProctorHandler) Constraints(c *gin.Context) {
	constraints, err := h.service.Constraints(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, constraints, nil)
}

type createConstraintRequest struct {
	Type        string  `json:"type" binding:"required"`
	ExamID      *string `json:"exam_id"`
	Date        *string `json:"date"`
	CanOverride bool    `json:"can_override"`
	Note        string  `json:"note"`
}

// AddConstraint godoc
// @Summary Store a constraint for one proctor
// @Tags Proctors
// @Accept json
// @Produce json
// @Param id path string true "Proctor ID"
// @Success 201 {object} response.Envelope
// @Router /proctors/{id}/constraints [post]
func (h *ProctorHandler) AddConstraint(c *gin.Context) {
	var req createConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid constraint payload"))
		return
	}
	constraint := &models.ProctorConstraint{
		ProctorID:   c.Param("id"),
		Type:        models.ConstraintType(strings.ToUpper(req.Type)),
		ExamID:      req.ExamID,
		CanOverride: req.CanOverride,
		Note:        req.Note,
	}
	if req.Date != nil {
		date, err := time.ParseInLocation("2006-01-02", *req.Date, time.UTC)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid constraint date, expected YYYY-MM-DD"))
			return
		}
		constraint.Date = &date
	}
	if err := h.service.AddConstraint(c.Request.Context(), constraint); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, constraint, nil)
}

// RemoveConstraint godoc
// @Summary Delete a stored constraint
// @Tags Proctors
// @Param id path string true "Proctor ID"
// @Param constraintId path string true "Constraint ID"
// @Success 204
// @Router /proctors/{id}/constraints/{constraintId} [delete]
func (h *ProctorHandler) RemoveConstraint(c *gin.Context) {
	if err := h.service.RemoveConstraint(c.Request.Context(), c.Param("constraintId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Eligibility godoc
// @Summary Preview an eligibility verdict
// @Tags Proctors
// @Produce json
// @Param id path string true "Proctor ID"
// @Param exam_id query string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /proctors/{id}/eligibility [get]
func (h *ProctorHandler) Eligibility(c *gin.Context) {
	examID := strings.TrimSpace(c.Query("exam_id"))
	if examID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_id is required"))
		return
	}
	verdict, err := h.service.CheckEligibility(c.Request.Context(), c.Param("id"), examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}
