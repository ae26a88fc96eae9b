package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
	"github.com/noah-isme/exam-proctor-api/pkg/response"
)

type examService interface {
	Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error)
	Get(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error)
	Assignments(ctx context.Context, examID string) ([]models.ProctorAssignment, error)
	AssignmentHistory(ctx context.Context, assignmentID string) ([]models.SwapHistoryEntry, error)
}

// ExamHandler exposes REST endpoints for the exam catalog.
type ExamHandler struct {
	service examService
}

// NewExamHandler constructs the handler.
func NewExamHandler(service examService) *ExamHandler {
	return &ExamHandler{service: service}
}

// Create godoc
// @Summary Register an exam instance
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid exam payload"))
		return
	}
	exam, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, exam, nil)
}

// Get godoc
// @Summary Fetch one exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param term_id query string false "Term"
// @Param status query string false "Status"
// @Param department query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	filter := models.ExamFilter{
		TermID:     strings.TrimSpace(c.Query("term_id")),
		Department: strings.TrimSpace(c.Query("department")),
	}
	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
		filter.Status = models.ExamStatus(status)
	}
	if raw := c.Query("date_from"); raw != "" {
		if from, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			filter.DateFrom = &from
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if to, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			filter.DateTo = &to
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	exams, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// Assignments godoc
// @Summary List an exam's assignments
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/assignments [get]
func (h *ExamHandler) Assignments(c *gin.Context) {
	assignments, err := h.service.Assignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// AssignmentHistory godoc
// @Summary Swap trail for one assignment
// @Tags Exams
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/history [get]
func (h *ExamHandler) AssignmentHistory(c *gin.Context) {
	history, err := h.service.AssignmentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
