package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
	"github.com/noah-isme/exam-proctor-api/pkg/response"
)

type swapService interface {
	Create(ctx context.Context, req dto.CreateSwapRequest, requesterID string, actor *models.JWTClaims) (*dto.SwapResult, error)
	Claim(ctx context.Context, requestID, claimerID string, actor *models.JWTClaims) (*dto.SwapResult, error)
	Force(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.SwapResult, error)
	Cancel(ctx context.Context, requestID, requesterID string) (*models.SwapRequest, error)
	Get(ctx context.Context, requestID string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error)
	ListAvailable(ctx context.Context, proctorID string) ([]models.SwapRequest, error)
}

type proctorResolver interface {
	ForUser(ctx context.Context, userID string) (*models.Proctor, error)
}

// SwapHandler exposes REST endpoints for the swap workflow.
type SwapHandler struct {
	service  swapService
	proctors proctorResolver
}

// NewSwapHandler constructs the handler.
func NewSwapHandler(service swapService, proctors proctorResolver) *SwapHandler {
	return &SwapHandler{service: service, proctors: proctors}
}

func (h *SwapHandler) requester(c *gin.Context) (*models.Proctor, *models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, nil, false
	}
	proctor, err := h.proctors.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	return proctor, claims, true
}

// Create godoc
// @Summary Open a swap request
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.CreateSwapRequest true "Swap payload"
// @Success 201 {object} response.Envelope
// @Router /swaps [post]
func (h *SwapHandler) Create(c *gin.Context) {
	var req dto.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid swap payload"))
		return
	}
	proctor, claims, ok := h.requester(c)
	if !ok {
		return
	}
	result, err := h.service.Create(c.Request.Context(), req, proctor.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Claim godoc
// @Summary Claim an open swap request
// @Tags Swaps
// @Produce json
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/claim [post]
func (h *SwapHandler) Claim(c *gin.Context) {
	proctor, claims, ok := h.requester(c)
	if !ok {
		return
	}
	result, err := h.service.Claim(c.Request.Context(), c.Param("id"), proctor.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Force godoc
// @Summary Force-resolve a pending swap request
// @Tags Swaps
// @Produce json
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/force [post]
func (h *SwapHandler) Force(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Force(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel an unresolved swap request
// @Tags Swaps
// @Produce json
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id} [delete]
func (h *SwapHandler) Cancel(c *gin.Context) {
	proctor, _, ok := h.requester(c)
	if !ok {
		return
	}
	request, err := h.service.Cancel(c.Request.Context(), c.Param("id"), proctor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Fetch one swap request
// @Tags Swaps
// @Produce json
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id} [get]
func (h *SwapHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List swap requests
// @Tags Swaps
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param mine query bool false "Only the caller's requests"
// @Success 200 {object} response.Envelope
// @Router /swaps [get]
func (h *SwapHandler) List(c *gin.Context) {
	filter := models.SwapFilter{}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			filter.Status = append(filter.Status, models.SwapStatus(part))
		}
	}
	if c.Query("mine") == "true" {
		proctor, _, ok := h.requester(c)
		if !ok {
			return
		}
		filter.RequestingProctorID = proctor.ID
	}
	requests, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Available godoc
// @Summary List the open swap board
// @Tags Swaps
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /swaps/available [get]
func (h *SwapHandler) Available(c *gin.Context) {
	proctor, _, ok := h.requester(c)
	if !ok {
		return
	}
	requests, err := h.service.ListAvailable(c.Request.Context(), proctor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}
