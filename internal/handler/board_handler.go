package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
	"github.com/noah-isme/cutroom-api/pkg/response"
)

type boardService interface {
	ProjectBoard(ctx context.Context, projectID string, actor *models.JWTClaims) (*models.ProjectBoard, error)
	ExportBoard(ctx context.Context, projectID string, format dto.BoardExportFormat, actor *models.JWTClaims) (*dto.BoardExport, error)
}

// BoardHandler serves the batch kanban board.
type BoardHandler struct {
	service boardService
}

// NewBoardHandler constructs the handler.
func NewBoardHandler(service boardService) *BoardHandler {
	return &BoardHandler{service: service}
}

// Board godoc
// @Summary Kanban board and progress of a batch project
// @Tags Boards
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/board [get]
func (h *BoardHandler) Board(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	board, err := h.service.ProjectBoard(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, board)
}

// Export godoc
// @Summary Export the batch board
// @Tags Boards
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /projects/{id}/board/export [get]
func (h *BoardHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := dto.BoardExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv"))))
	result, err := h.service.ExportBoard(c.Request.Context(), c.Param("id"), format, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, result.Filename, result.ContentType, result.Body)
}
