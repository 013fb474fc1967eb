package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
	"github.com/noah-isme/cutroom-api/pkg/response"
)

type annotationService interface {
	ListComments(ctx context.Context, deliveryID string, actor *models.JWTClaims) ([]models.Comment, error)
	AddComment(ctx context.Context, deliveryID string, req dto.CreateCommentRequest, actor *models.JWTClaims) (*models.Comment, error)
	SetResolved(ctx context.Context, commentID string, req dto.SetResolvedRequest, actor *models.JWTClaims) (*models.Comment, error)
	AddReply(ctx context.Context, commentID string, req dto.CreateReplyRequest, actor *models.JWTClaims) (*models.Reply, error)
	DeleteReply(ctx context.Context, replyID string, actor *models.JWTClaims) error
	DeleteComment(ctx context.Context, commentID string, actor *models.JWTClaims) error
}

// CommentHandler exposes delivery annotations.
type CommentHandler struct {
	service annotationService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service annotationService) *CommentHandler {
	return &CommentHandler{service: service}
}

// List godoc
// @Summary List comments on a delivery
// @Tags Comments
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	comments, err := h.service.ListComments(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, comments)
}

// Create godoc
// @Summary Add a timestamped comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deliveries/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment payload"))
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// SetResolved godoc
// @Summary Resolve or reopen a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param payload body dto.SetResolvedRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Router /comments/{id}/resolved [put]
func (h *CommentHandler) SetResolved(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SetResolvedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	comment, err := h.service.SetResolved(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, comment)
}

// Delete godoc
// @Summary Delete a comment and its replies
// @Tags Comments
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteComment(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reply godoc
// @Summary Reply to a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param payload body dto.CreateReplyRequest true "Reply payload"
// @Success 201 {object} response.Envelope
// @Router /comments/{id}/replies [post]
func (h *CommentHandler) Reply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reply payload"))
		return
	}
	reply, err := h.service.AddReply(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reply)
}

// DeleteReply godoc
// @Summary Delete a reply
// @Tags Comments
// @Param id path string true "Reply ID"
// @Success 204
// @Router /replies/{id} [delete]
func (h *CommentHandler) DeleteReply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteReply(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
