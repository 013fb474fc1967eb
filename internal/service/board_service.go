package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
	"github.com/noah-isme/cutroom-api/pkg/export"
)

var boardColumns = []export.Column{
	{Key: "sequence", Label: "Sequence", Width: 24},
	{Key: "video", Label: "Video"},
	{Key: "column", Label: "Column", Width: 40},
	{Key: "status", Label: "Status", Width: 40},
	{Key: "revisions", Label: "Revisions", Width: 26},
	{Key: "version", Label: "Version", Width: 24},
}

// BoardService projects batch projects onto the kanban read model.
type BoardService struct {
	projects      projectReader
	authorizer    ProjectAuthorizer
	csv           *export.CSVExporter
	pdf           *export.PDFExporter
	exportEnabled bool
	logger        *zap.Logger
	now           func() time.Time
}

// BoardServiceOption configures the board service.
type BoardServiceOption func(*BoardService)

// WithBoardAuthorizer overrides the membership authorizer.
func WithBoardAuthorizer(authorizer ProjectAuthorizer) BoardServiceOption {
	return func(s *BoardService) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

// WithBoardExport toggles CSV/PDF export.
func WithBoardExport(enabled bool) BoardServiceOption {
	return func(s *BoardService) {
		s.exportEnabled = enabled
	}
}

// WithBoardClock overrides time.Now.
func WithBoardClock(now func() time.Time) BoardServiceOption {
	return func(s *BoardService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBoardService constructs the service.
func NewBoardService(projects projectReader, logger *zap.Logger, opts ...BoardServiceOption) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BoardService{
		projects:      projects,
		authorizer:    MembershipAuthorizer{},
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		exportEnabled: true,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ProjectBoard loads the batch fresh and groups it into columns.
func (s *BoardService) ProjectBoard(ctx context.Context, projectID string, actor *models.JWTClaims) (*models.ProjectBoard, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, mapLookupError(err, "project not found", "failed to load project")
	}
	if err := s.authorizer.Authorize(ctx, actor, AccessRequest{Project: project, Capability: CapabilityView}); err != nil {
		return nil, err
	}
	if !project.IsBatch {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the board is only available for batch projects")
	}
	videos, err := s.projects.ListBatchVideos(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch videos")
	}

	board := &models.ProjectBoard{
		ProjectID: project.ID,
		Title:     project.Title,
		Status:    project.Status,
		Lanes:     BuildBoard(videos),
	}
	// Without a deadline nothing can be late.
	deadlineDays := 0
	if project.Deadline != nil {
		deadlineDays = DeadlineDays(*project.Deadline, s.now())
		days := deadlineDays
		board.DeadlineDays = &days
	}
	board.Progress = ComputeProgress(videos, deadlineDays)
	return board, nil
}

// ExportBoard renders the board as CSV or PDF.
func (s *BoardService) ExportBoard(ctx context.Context, projectID string, format dto.BoardExportFormat, actor *models.JWTClaims) (*dto.BoardExport, error) {
	if !s.exportEnabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "board export is disabled")
	}
	if format == "" {
		format = dto.BoardExportCSV
	}
	if format != dto.BoardExportCSV && format != dto.BoardExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	board, err := s.ProjectBoard(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	sheet := boardSheet(board)
	stamp := s.now().UTC().Format("20060102")
	result := &dto.BoardExport{}
	switch format {
	case dto.BoardExportPDF:
		body, err := s.pdf.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render board")
		}
		result.Body = body
		result.ContentType = "application/pdf"
		result.Filename = fmt.Sprintf("board-%s-%s.pdf", board.ProjectID, stamp)
	default:
		body, err := s.csv.Render(sheet)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render board")
		}
		result.Body = body
		result.ContentType = "text/csv"
		result.Filename = fmt.Sprintf("board-%s-%s.csv", board.ProjectID, stamp)
	}
	s.logger.Debug("board exported", zap.String("project_id", board.ProjectID), zap.String("format", string(format)))
	return result, nil
}

func boardSheet(board *models.ProjectBoard) export.Sheet {
	p := board.Progress
	summary := []string{
		fmt.Sprintf("Progress: %d of %d videos completed (%d%%)", p.Completed, p.Total, p.Percentage),
		fmt.Sprintf("In review: %d, in progress: %d", p.InReview, p.InProgress),
	}
	if board.DeadlineDays != nil {
		line := fmt.Sprintf("Deadline in %d days", *board.DeadlineDays)
		if *board.DeadlineDays < 0 {
			line = fmt.Sprintf("Deadline passed %d days ago", -*board.DeadlineDays)
		}
		summary = append(summary, line)
	}

	sheet := export.Sheet{Title: board.Title, Summary: summary, Columns: boardColumns}
	for _, lane := range board.Lanes {
		for _, video := range lane.Videos {
			sheet.Rows = append(sheet.Rows, map[string]string{
				"sequence":  strconv.Itoa(video.SequenceOrder),
				"video":     video.Title,
				"column":    string(lane.Column),
				"status":    string(video.Status),
				"revisions": strconv.Itoa(video.RevisionCount),
				"version":   strconv.Itoa(video.CurrentVersion),
			})
		}
	}
	return sheet
}
