package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
	"github.com/noah-isme/cutroom-api/pkg/response"
)

type deliveryService interface {
	SubmitDelivery(ctx context.Context, req dto.SubmitDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error)
	ApproveDelivery(ctx context.Context, deliveryID string, req dto.ReviewDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error)
	RequestRevision(ctx context.Context, deliveryID string, req dto.ReviewDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error)
	GetDelivery(ctx context.Context, deliveryID string, actor *models.JWTClaims) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, query dto.DeliveryHistoryQuery, actor *models.JWTClaims) ([]models.Delivery, error)
	AvailableActions(ctx context.Context, projectID string, batchVideoID *string, actor *models.JWTClaims) (*dto.AvailableActionsResponse, error)
}

type deliveryDetailer interface {
	DeliveryDetail(ctx context.Context, delivery *models.Delivery, actor *models.JWTClaims) (*dto.DeliveryDetail, error)
}

// DeliveryHandler exposes the delivery ledger.
type DeliveryHandler struct {
	service  deliveryService
	detailer deliveryDetailer
}

// NewDeliveryHandler constructs the handler.
func NewDeliveryHandler(service deliveryService, detailer deliveryDetailer) *DeliveryHandler {
	return &DeliveryHandler{service: service, detailer: detailer}
}

// Submit godoc
// @Summary Submit a new delivery version
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body dto.SubmitDeliveryRequest true "Delivery payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/deliveries [post]
func (h *DeliveryHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid delivery payload"))
		return
	}
	req.ProjectID = c.Param("id")
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}
	delivery, err := h.service.SubmitDelivery(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, delivery)
}

// List godoc
// @Summary List the version history of a project or batch video
// @Tags Deliveries
// @Produce json
// @Param id path string true "Project ID"
// @Param batchVideoId query string false "Batch video ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/deliveries [get]
func (h *DeliveryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.DeliveryHistoryQuery{ProjectID: c.Param("id"), BatchVideoID: optionalQuery(c, "batchVideoId")}
	deliveries, err := h.service.ListDeliveries(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliveries, map[string]interface{}{"count": len(deliveries)})
}

// Actions godoc
// @Summary List lifecycle actions available for a unit of work
// @Tags Deliveries
// @Produce json
// @Param id path string true "Project ID"
// @Param batchVideoId query string false "Batch video ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/actions [get]
func (h *DeliveryHandler) Actions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	actions, err := h.service.AvailableActions(c.Request.Context(), c.Param("id"), optionalQuery(c, "batchVideoId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, actions)
}

// Get godoc
// @Summary Get a delivery with its comments
// @Tags Deliveries
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deliveries/{id} [get]
func (h *DeliveryHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	delivery, err := h.service.GetDelivery(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.detailer == nil {
		response.OK(c, dto.DeliveryDetail{Delivery: delivery, Comments: []models.Comment{}})
		return
	}
	detail, err := h.detailer.DeliveryDetail(c.Request.Context(), delivery, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Approve godoc
// @Summary Approve a delivery
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.ReviewDeliveryRequest false "Optional feedback"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deliveries/{id}/approve [post]
func (h *DeliveryHandler) Approve(c *gin.Context) {
	h.review(c, h.service.ApproveDelivery)
}

// RequestRevision godoc
// @Summary Request a revision of a delivery
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.ReviewDeliveryRequest false "Optional feedback"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /deliveries/{id}/revisions [post]
func (h *DeliveryHandler) RequestRevision(c *gin.Context) {
	h.review(c, h.service.RequestRevision)
}

type reviewFunc func(ctx context.Context, deliveryID string, req dto.ReviewDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error)

func (h *DeliveryHandler) review(c *gin.Context, fn reviewFunc) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewDeliveryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
			return
		}
	}
	delivery, err := fn(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, delivery)
}

func optionalQuery(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}
