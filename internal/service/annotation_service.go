package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	"github.com/noah-isme/cutroom-api/internal/repository"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

type annotationStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.AnnotationTx) error) error
	ListByDelivery(ctx context.Context, deliveryID string) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	CountUnresolved(ctx context.Context, deliveryID string) (int, error)
}

type deliveryReader interface {
	GetByID(ctx context.Context, id string) (*models.Delivery, error)
}

// AnnotationService manages comments and replies on a delivery. Every write
// share-locks the delivery so a concurrent review waits for it, and is
// rejected once the delivery left pending_review.
type AnnotationService struct {
	store      annotationStore
	deliveries deliveryReader
	projects   projectReader
	authorizer ProjectAuthorizer
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// AnnotationServiceOption configures the service.
type AnnotationServiceOption func(*AnnotationService)

// WithAnnotationAuthorizer overrides the membership authorizer.
func WithAnnotationAuthorizer(authorizer ProjectAuthorizer) AnnotationServiceOption {
	return func(s *AnnotationService) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

// WithAnnotationAudit sets the audit trail writer.
func WithAnnotationAudit(audit auditLogger) AnnotationServiceOption {
	return func(s *AnnotationService) {
		s.audit = audit
	}
}

// WithAnnotationClock overrides time.Now.
func WithAnnotationClock(now func() time.Time) AnnotationServiceOption {
	return func(s *AnnotationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAnnotationService constructs the tracker.
func NewAnnotationService(store annotationStore, deliveries deliveryReader, projects projectReader, validate *validator.Validate, logger *zap.Logger, opts ...AnnotationServiceOption) *AnnotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &AnnotationService{
		store:      store,
		deliveries: deliveries,
		projects:   projects,
		authorizer: MembershipAuthorizer{},
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// PendingCorrections counts unresolved comments through the caller's
// transaction so the count and the review decision see the same rows.
func (s *AnnotationService) PendingCorrections(ctx context.Context, counter unresolvedCounter, deliveryID string) (int, error) {
	if counter == nil {
		return s.store.CountUnresolved(ctx, deliveryID)
	}
	return counter.CountUnresolvedComments(ctx, deliveryID)
}

// ListComments returns a delivery's comments with replies, by media offset.
func (s *AnnotationService) ListComments(ctx context.Context, deliveryID string, actor *models.JWTClaims) ([]models.Comment, error) {
	delivery, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, mapLookupError(err, "delivery not found", "failed to load delivery")
	}
	if err := s.authorize(ctx, actor, delivery, CapabilityView); err != nil {
		return nil, err
	}
	comments, err := s.store.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// DeliveryDetail bundles a delivery with its annotations and open count.
func (s *AnnotationService) DeliveryDetail(ctx context.Context, delivery *models.Delivery, actor *models.JWTClaims) (*dto.DeliveryDetail, error) {
	comments, err := s.ListComments(ctx, delivery.ID, actor)
	if err != nil {
		return nil, err
	}
	unresolved := 0
	for _, comment := range comments {
		if !comment.Resolved {
			unresolved++
		}
	}
	return &dto.DeliveryDetail{Delivery: delivery, Comments: comments, Unresolved: unresolved}, nil
}

// AddComment annotates a delivery that is still under review.
func (s *AnnotationService) AddComment(ctx context.Context, deliveryID string, req dto.CreateCommentRequest, actor *models.JWTClaims) (*models.Comment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment content must not be blank")
	}

	var comment *models.Comment
	err := s.store.WithinTx(ctx, func(tx repository.AnnotationTx) error {
		if _, err := s.lockEditable(ctx, tx, deliveryID, actor, "comments cannot be added"); err != nil {
			return err
		}
		record := &models.Comment{
			DeliveryID:    deliveryID,
			AuthorID:      actor.UserID,
			AuthorRole:    actor.Role,
			Content:       content,
			OffsetSeconds: req.OffsetSeconds,
			CreatedAt:     s.now(),
			Replies:       []models.Reply{},
		}
		if req.Tag != "" {
			tag := models.CommentTag(req.Tag)
			record.Tag = &tag
		}
		if err := tx.InsertComment(ctx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save comment")
		}
		comment = record
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	s.logger.Debug("comment added", zap.String("delivery_id", deliveryID), zap.String("comment_id", comment.ID))
	return comment, nil
}

// SetResolved moves a comment to the requested resolution state. Asking
// for the state the comment is already in is a no-op, so a retried request
// never flips it back.
func (s *AnnotationService) SetResolved(ctx context.Context, commentID string, req dto.SetResolvedRequest, actor *models.JWTClaims) (*models.Comment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "resolved must be true or false")
	}
	target := *req.Resolved

	var changed bool
	err := s.store.WithinTx(ctx, func(tx repository.AnnotationTx) error {
		comment, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return mapLookupError(err, "comment not found", "failed to load comment")
		}
		delivery, err := s.lockEditable(ctx, tx, comment.DeliveryID, actor, "comments cannot be resolved")
		if err != nil {
			return err
		}
		if err := s.canResolve(ctx, actor, delivery, comment); err != nil {
			return err
		}
		if comment.Resolved == target {
			return nil
		}

		params := repository.ResolveCommentParams{ID: comment.ID, Expected: comment.Resolved, Resolved: target}
		if target {
			now := s.now()
			params.ResolvedBy = &actor.UserID
			params.ResolvedAt = &now
		}
		err = tx.UpdateResolved(ctx, params)
		if errors.Is(err, sql.ErrNoRows) {
			latest, getErr := tx.GetComment(ctx, commentID)
			if getErr == nil && latest.Resolved == target {
				return nil
			}
			return appErrors.Clone(appErrors.ErrConflict, "comment was changed concurrently, reload and retry")
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update comment")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, mapLookupError(err, "comment not found", "failed to load comment")
	}
	if changed {
		s.emitAudit(ctx, actor.UserID, models.AuditActionCommentResolve, comment.ID, comment)
	}
	return comment, nil
}

// AddReply threads an answer under a comment.
func (s *AnnotationService) AddReply(ctx context.Context, commentID string, req dto.CreateReplyRequest, actor *models.JWTClaims) (*models.Reply, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reply content must not be blank")
	}

	var reply *models.Reply
	err := s.store.WithinTx(ctx, func(tx repository.AnnotationTx) error {
		comment, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return mapLookupError(err, "comment not found", "failed to load comment")
		}
		if _, err := s.lockEditable(ctx, tx, comment.DeliveryID, actor, "replies cannot be added"); err != nil {
			return err
		}
		record := &models.Reply{
			CommentID:  comment.ID,
			AuthorID:   actor.UserID,
			AuthorRole: actor.Role,
			Content:    content,
			CreatedAt:  s.now(),
		}
		if err := tx.InsertReply(ctx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reply")
		}
		reply = record
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return reply, nil
}

// DeleteReply removes a reply. Only its author or an admin may do so.
func (s *AnnotationService) DeleteReply(ctx context.Context, replyID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	err := s.store.WithinTx(ctx, func(tx repository.AnnotationTx) error {
		reply, err := tx.GetReply(ctx, replyID)
		if err != nil {
			return mapLookupError(err, "reply not found", "failed to load reply")
		}
		comment, err := tx.GetComment(ctx, reply.CommentID)
		if err != nil {
			return mapLookupError(err, "comment not found", "failed to load comment")
		}
		if _, err := s.lockEditable(ctx, tx, comment.DeliveryID, actor, "replies cannot be deleted"); err != nil {
			return err
		}
		if reply.AuthorID != actor.UserID && !actor.IsAdmin() {
			return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this reply")
		}
		if err := tx.DeleteReply(ctx, replyID); err != nil {
			return mapLookupError(err, "reply not found", "failed to delete reply")
		}
		return nil
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// DeleteComment removes a comment and its replies. Only its author or an
// admin may do so.
func (s *AnnotationService) DeleteComment(ctx context.Context, commentID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	var deleted *models.Comment
	err := s.store.WithinTx(ctx, func(tx repository.AnnotationTx) error {
		comment, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return mapLookupError(err, "comment not found", "failed to load comment")
		}
		if _, err := s.lockEditable(ctx, tx, comment.DeliveryID, actor, "comments cannot be deleted"); err != nil {
			return err
		}
		if comment.AuthorID != actor.UserID && !actor.IsAdmin() {
			return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this comment")
		}
		if err := tx.DeleteComment(ctx, commentID); err != nil {
			return mapLookupError(err, "comment not found", "failed to delete comment")
		}
		deleted = comment
		return nil
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionCommentDelete, deleted.ID, deleted)
	return nil
}

// lockEditable share-locks the delivery and checks it still accepts
// annotations.
func (s *AnnotationService) lockEditable(ctx context.Context, tx repository.AnnotationTx, deliveryID string, actor *models.JWTClaims, blocked string) (*models.Delivery, error) {
	delivery, err := tx.ShareLockDelivery(ctx, deliveryID)
	if err != nil {
		return nil, mapLookupError(err, "delivery not found", "failed to load delivery")
	}
	if err := s.authorize(ctx, actor, delivery, CapabilityAnnotate); err != nil {
		return nil, err
	}
	if !delivery.Editable() {
		return nil, appErrors.Clone(appErrors.ErrDeliveryNotEditable,
			"version was already reviewed ("+string(delivery.Status)+"), "+blocked)
	}
	return delivery, nil
}

// canResolve allows the delivery's reviewer and the comment's author.
func (s *AnnotationService) canResolve(ctx context.Context, actor *models.JWTClaims, delivery *models.Delivery, comment *models.Comment) error {
	if actor.IsAdmin() || comment.AuthorID == actor.UserID {
		return nil
	}
	if err := s.authorize(ctx, actor, delivery, CapabilityReview); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "only the reviewer or the comment author can change its resolution")
	}
	return nil
}

func (s *AnnotationService) authorize(ctx context.Context, actor *models.JWTClaims, delivery *models.Delivery, capability Capability) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	project, err := s.projects.GetProject(ctx, delivery.ProjectID)
	if err != nil {
		return mapLookupError(err, "project not found", "failed to load project")
	}
	unit := project.Unit()
	if delivery.BatchVideoID != nil {
		video, err := s.projects.GetBatchVideo(ctx, project.ID, *delivery.BatchVideoID)
		if err != nil {
			return mapLookupError(err, "batch video not found", "failed to load batch video")
		}
		unit = video.Unit(project)
	}
	return s.authorizer.Authorize(ctx, actor, AccessRequest{Project: project, Unit: &unit, Capability: capability})
}

func (s *AnnotationService) emitAudit(ctx context.Context, userID, action, commentID string, comment *models.Comment) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(comment)
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.AuditResourceComment,
		ResourceID: &commentID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "annotation-service",
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// mapLookupError turns sql.ErrNoRows into NotFound and keeps typed errors.
func mapLookupError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
