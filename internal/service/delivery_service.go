package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	"github.com/noah-isme/cutroom-api/internal/repository"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

type deliveryStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error
	GetByID(ctx context.Context, id string) (*models.Delivery, error)
	ListByScope(ctx context.Context, scopeKey string) ([]models.Delivery, error)
}

type unresolvedCounter interface {
	CountUnresolvedComments(ctx context.Context, deliveryID string) (int, error)
}

// correctionGate answers whether a delivery carries actionable feedback.
type correctionGate interface {
	PendingCorrections(ctx context.Context, counter unresolvedCounter, deliveryID string) (int, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, event models.LifecycleEvent)
}

// DeliveryServiceConfig tunes the ledger.
type DeliveryServiceConfig struct {
	VersionConflictRetries int
	AllowedSchemes         []string
}

// DeliveryService is the delivery ledger: the only writer of deliveries and
// of the unit-of-work status they drive.
type DeliveryService struct {
	store      deliveryStore
	projects   projectReader
	gate       correctionGate
	authorizer ProjectAuthorizer
	payments   PaymentGateway
	events     eventEmitter
	audit      auditLogger
	metrics    *MetricsService
	projector  *StatusProjector
	allocator  *VersionAllocator
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        DeliveryServiceConfig
	now        func() time.Time
}

// DeliveryServiceOption configures the service.
type DeliveryServiceOption func(*DeliveryService)

// WithDeliveryAuthorizer overrides the membership authorizer.
func WithDeliveryAuthorizer(authorizer ProjectAuthorizer) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

// WithPaymentGateway sets the payment collaborator.
func WithPaymentGateway(gateway PaymentGateway) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if gateway != nil {
			s.payments = gateway
		}
	}
}

// WithEventEmitter sets the notification sink.
func WithEventEmitter(emitter eventEmitter) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if emitter != nil {
			s.events = emitter
		}
	}
}

// WithDeliveryAudit sets the audit trail writer.
func WithDeliveryAudit(audit auditLogger) DeliveryServiceOption {
	return func(s *DeliveryService) {
		s.audit = audit
	}
}

// WithDeliveryMetrics sets the metrics sink.
func WithDeliveryMetrics(metrics *MetricsService) DeliveryServiceOption {
	return func(s *DeliveryService) {
		s.metrics = metrics
	}
}

// WithTransitionTable replaces the canonical transition table.
func WithTransitionTable(table TransitionTable) DeliveryServiceOption {
	return func(s *DeliveryService) {
		s.projector = NewStatusProjector(table, s.logger)
	}
}

// WithDeliveryConfig overrides retry and URL settings.
func WithDeliveryConfig(cfg DeliveryServiceConfig) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if cfg.VersionConflictRetries >= 0 {
			s.cfg.VersionConflictRetries = cfg.VersionConflictRetries
		}
		if len(cfg.AllowedSchemes) > 0 {
			s.cfg.AllowedSchemes = cfg.AllowedSchemes
		}
	}
}

// WithDeliveryClock overrides time.Now.
func WithDeliveryClock(now func() time.Time) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDeliveryService constructs the ledger with defaults.
func NewDeliveryService(store deliveryStore, projects projectReader, gate correctionGate, validate *validator.Validate, logger *zap.Logger, opts ...DeliveryServiceOption) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &DeliveryService{
		store:      store,
		projects:   projects,
		gate:       gate,
		authorizer: MembershipAuthorizer{},
		payments:   NoopPaymentGateway{},
		events:     noopEmitter{},
		validator:  validate,
		logger:     logger,
		allocator:  NewVersionAllocator(),
		cfg: DeliveryServiceConfig{
			VersionConflictRetries: 1,
			AllowedSchemes:         []string{"https", "http"},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	svc.projector = NewStatusProjector(DefaultTransitionTable(), logger)
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// lockedScope is the row-locked state of one unit of work.
type lockedScope struct {
	project *models.Project
	video   *models.BatchVideo
	unit    models.UnitOfWork
}

func (l *lockedScope) isBatch() bool {
	return l.video != nil
}

// SubmitDelivery records a new delivery and advances the unit of work.
func (s *DeliveryService) SubmitDelivery(ctx context.Context, req dto.SubmitDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delivery payload")
	}
	artifactURL, err := s.validateArtifactURL(req.ArtifactURL)
	if err != nil {
		return nil, s.reject(err)
	}
	scope := models.NewDeliveryScope(strings.TrimSpace(req.ProjectID), req.BatchVideoID)
	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)

	var (
		delivery *models.Delivery
		replayed bool
		batch    bool
	)
	err = s.withVersionRetry(ctx, func() error {
		delivery, replayed, batch = nil, false, false
		return s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
			locked, err := s.lockScope(ctx, tx, scope)
			if err != nil {
				return err
			}
			if err := s.authorizer.Authorize(ctx, actor, AccessRequest{Project: locked.project, Unit: &locked.unit, Capability: CapabilityDeliver}); err != nil {
				return err
			}
			batch = locked.isBatch()

			if idempotencyKey != "" {
				existing, err := tx.FindByIdempotencyKey(ctx, scope.Key(), idempotencyKey)
				if err == nil {
					delivery, replayed = existing, true
					return nil
				}
				if !errors.Is(err, sql.ErrNoRows) {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check idempotency key")
				}
			}

			action, err := s.projector.ResolveAction(locked.unit.Status, models.ActionSubmitForReview, models.ActionSubmitCorrections)
			if errors.Is(err, appErrors.ErrTransitionNotAllowed) {
				return appErrors.Clone(appErrors.ErrTransitionNotAllowed,
					fmt.Sprintf("cannot submit a delivery while the %s is %s", unitNoun(locked), locked.unit.Status))
			}
			if err != nil {
				return err
			}
			version, err := s.allocator.Next(ctx, tx, locked.project, scope)
			if err != nil {
				return err
			}
			next, _, err := s.projector.Apply(locked.unit, action)
			if err != nil {
				return err
			}
			next.CurrentVersion = version

			record := &models.Delivery{
				ProjectID:      locked.project.ID,
				ScopeKey:       scope.Key(),
				ProducerID:     actor.UserID,
				ArtifactURL:    artifactURL,
				Version:        version,
				Status:         models.DeliveryStatusPendingReview,
				Note:           optionalString(req.Note),
				IdempotencyKey: optionalString(idempotencyKey),
				SubmittedAt:    s.now(),
			}
			if locked.video != nil {
				videoID := locked.video.ID
				record.BatchVideoID = &videoID
			}
			if err := tx.InsertDelivery(ctx, record); err != nil {
				return err
			}
			if err := s.persistUnit(ctx, tx, locked, next); err != nil {
				return err
			}
			delivery = record
			return nil
		})
	})
	if err != nil {
		return nil, s.reject(err)
	}
	if replayed {
		s.logger.Info("delivery submission replayed",
			zap.String("delivery_id", delivery.ID),
			zap.String("idempotency_key", idempotencyKey),
		)
		return delivery, nil
	}

	s.metrics.IncDeliverySubmitted(batch)
	s.logger.Info("delivery submitted",
		zap.String("delivery_id", delivery.ID),
		zap.String("scope", delivery.ScopeKey),
		zap.Int("version", delivery.Version),
	)
	s.events.Emit(ctx, models.LifecycleEvent{
		Type:       models.EventDeliveryReceived,
		Scope:      models.RefOf(scope),
		DeliveryID: delivery.ID,
		Batch:      batch,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionDeliverySubmit, delivery.ID, delivery)
	return delivery, nil
}

// ApproveDelivery accepts a pending delivery and completes its unit of work.
// The payment release happens before the status write; a failed release
// leaves every row untouched.
func (s *DeliveryService) ApproveDelivery(ctx context.Context, deliveryID string, req dto.ReviewDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	var (
		delivery *models.Delivery
		batch    bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		locked, current, err := s.lockForReview(ctx, tx, deliveryID, actor)
		if err != nil {
			return err
		}
		batch = locked.isBatch()

		action, err := s.projector.ResolveAction(locked.unit.Status, models.ActionApproveFirstVersion, models.ActionApproveProject)
		if err != nil {
			return err
		}
		next, transition, err := s.projector.Apply(locked.unit, action)
		if err != nil {
			return err
		}
		if transition.RequiresPayment {
			if err := s.charge(ctx, current, locked, next); err != nil {
				return err
			}
		}
		if err := s.payments.Release(ctx, PaymentRequest{
			IdempotencyKey: "release:" + current.ID,
			Scope:          models.RefOf(current.Scope()),
			DeliveryID:     current.ID,
			Reason:         string(action),
		}); err != nil {
			s.logger.Warn("payment release failed", zap.String("delivery_id", current.ID), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status,
				"payment release failed, the delivery was not approved")
		}

		reviewed, err := s.closeDelivery(ctx, tx, current, models.DeliveryStatusApproved, req.Feedback, actor.UserID)
		if err != nil {
			return err
		}
		if err := s.persistUnit(ctx, tx, locked, next); err != nil {
			return err
		}
		delivery = reviewed
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.IncReviewDecision("approved")
	s.logger.Info("delivery approved", zap.String("delivery_id", delivery.ID), zap.Int("version", delivery.Version))
	s.events.Emit(ctx, models.LifecycleEvent{
		Type:       models.EventDeliveryApproved,
		Scope:      models.RefOf(delivery.Scope()),
		DeliveryID: delivery.ID,
		Batch:      batch,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionDeliveryApprove, delivery.ID, delivery)
	return delivery, nil
}

// RequestRevision sends a pending delivery back to the editor. It requires at
// least one unresolved comment. From pending_approval the extra revision is
// charged first and bumps the revision counter.
func (s *DeliveryService) RequestRevision(ctx context.Context, deliveryID string, req dto.ReviewDeliveryRequest, actor *models.JWTClaims) (*models.Delivery, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	var (
		delivery *models.Delivery
		batch    bool
		pending  int
	)
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		locked, current, err := s.lockForReview(ctx, tx, deliveryID, actor)
		if err != nil {
			return err
		}
		batch = locked.isBatch()

		action, err := s.projector.ResolveAction(locked.unit.Status, models.ActionRequestRevision, models.ActionPayNewRevision)
		if err != nil {
			return err
		}
		pending, err = s.gate.PendingCorrections(ctx, tx, current.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count open comments")
		}
		if pending == 0 {
			return appErrors.Clone(appErrors.ErrNoPendingCorrections,
				"add at least one unresolved comment before requesting corrections")
		}
		next, transition, err := s.projector.Apply(locked.unit, action)
		if err != nil {
			return err
		}
		if transition.RequiresPayment {
			if err := s.charge(ctx, current, locked, next); err != nil {
				return err
			}
		}

		reviewed, err := s.closeDelivery(ctx, tx, current, models.DeliveryStatusRevisionRequested, req.Feedback, actor.UserID)
		if err != nil {
			return err
		}
		if err := s.persistUnit(ctx, tx, locked, next); err != nil {
			return err
		}
		delivery = reviewed
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.IncReviewDecision("revision_requested")
	s.logger.Info("revision requested",
		zap.String("delivery_id", delivery.ID),
		zap.Int("version", delivery.Version),
		zap.Int("pending_comments", pending),
	)
	count := pending
	s.events.Emit(ctx, models.LifecycleEvent{
		Type:                models.EventRevisionRequested,
		Scope:               models.RefOf(delivery.Scope()),
		DeliveryID:          delivery.ID,
		Batch:               batch,
		PendingCommentCount: &count,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionRevisionRequest, delivery.ID, delivery)
	return delivery, nil
}

// GetDelivery returns one delivery after checking project access.
func (s *DeliveryService) GetDelivery(ctx context.Context, deliveryID string, actor *models.JWTClaims) (*models.Delivery, error) {
	delivery, err := s.store.GetByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	if _, err := s.authorizeRead(ctx, delivery.ProjectID, delivery.BatchVideoID, actor); err != nil {
		return nil, err
	}
	return delivery, nil
}

// ListDeliveries returns the version history of a scope, oldest first.
func (s *DeliveryService) ListDeliveries(ctx context.Context, query dto.DeliveryHistoryQuery, actor *models.JWTClaims) ([]models.Delivery, error) {
	project, err := s.authorizeRead(ctx, query.ProjectID, query.BatchVideoID, actor)
	if err != nil {
		return nil, err
	}
	scope := models.NewDeliveryScope(project.ID, query.BatchVideoID)
	if err := s.allocator.CheckScope(project, scope); err != nil {
		return nil, err
	}
	deliveries, err := s.store.ListByScope(ctx, scope.Key())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deliveries")
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	return deliveries, nil
}

// AvailableActions lists what may happen next to a unit of work.
func (s *DeliveryService) AvailableActions(ctx context.Context, projectID string, batchVideoID *string, actor *models.JWTClaims) (*dto.AvailableActionsResponse, error) {
	project, err := s.authorizeRead(ctx, projectID, batchVideoID, actor)
	if err != nil {
		return nil, err
	}
	scope := models.NewDeliveryScope(project.ID, batchVideoID)
	if err := s.allocator.CheckScope(project, scope); err != nil {
		return nil, err
	}
	unit := project.Unit()
	if video, ok := scope.(models.BatchVideoScope); ok {
		record, err := s.projects.GetBatchVideo(ctx, project.ID, video.Video)
		if err != nil {
			return nil, mapLookupError(err, "batch video not found", "failed to load batch video")
		}
		unit = record.Unit(project)
	}
	return &dto.AvailableActionsResponse{
		Unit:    unit,
		Actions: s.projector.Table().AvailableActions(unit.Status),
	}, nil
}

func (s *DeliveryService) authorizeRead(ctx context.Context, projectID string, batchVideoID *string, actor *models.JWTClaims) (*models.Project, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, mapLookupError(err, "project not found", "failed to load project")
	}
	var unit *models.UnitOfWork
	if batchVideoID != nil && *batchVideoID != "" && project.IsBatch {
		if video, err := s.projects.GetBatchVideo(ctx, project.ID, *batchVideoID); err == nil {
			u := video.Unit(project)
			unit = &u
		}
	}
	if err := s.authorizer.Authorize(ctx, actor, AccessRequest{Project: project, Unit: unit, Capability: CapabilityView}); err != nil {
		return nil, err
	}
	return project, nil
}

// lockScope row-locks the project and, for batch scopes, the slot. The
// project is always locked first so concurrent operations agree on order.
func (s *DeliveryService) lockScope(ctx context.Context, tx repository.LedgerTx, scope models.DeliveryScope) (*lockedScope, error) {
	project, err := tx.LockProject(ctx, scope.ProjectID())
	if err != nil {
		return nil, mapLookupError(err, "project not found", "failed to load project")
	}
	if err := s.allocator.CheckScope(project, scope); err != nil {
		return nil, err
	}
	locked := &lockedScope{project: project, unit: project.Unit()}
	if video, ok := scope.(models.BatchVideoScope); ok {
		record, err := tx.LockBatchVideo(ctx, project.ID, video.Video)
		if err != nil {
			return nil, mapLookupError(err, "batch video not found", "failed to load batch video")
		}
		locked.video = record
		locked.unit = record.Unit(project)
	}
	return locked, nil
}

// lockForReview loads a delivery, locks its scope, then re-reads the
// delivery under lock and checks it is still open for review.
func (s *DeliveryService) lockForReview(ctx context.Context, tx repository.LedgerTx, deliveryID string, actor *models.JWTClaims) (*lockedScope, *models.Delivery, error) {
	snapshot, err := tx.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, nil, mapLookupError(err, "delivery not found", "failed to load delivery")
	}
	locked, err := s.lockScope(ctx, tx, snapshot.Scope())
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizer.Authorize(ctx, actor, AccessRequest{Project: locked.project, Unit: &locked.unit, Capability: CapabilityReview}); err != nil {
		return nil, nil, err
	}
	current, err := tx.LockDelivery(ctx, deliveryID)
	if err != nil {
		return nil, nil, mapLookupError(err, "delivery not found", "failed to load delivery")
	}
	if !current.Editable() {
		return nil, nil, appErrors.Clone(appErrors.ErrDeliveryNotEditable,
			fmt.Sprintf("version %d was already reviewed (%s)", current.Version, current.Status))
	}
	if current.Version != locked.unit.CurrentVersion {
		return nil, nil, appErrors.Clone(appErrors.ErrDeliveryNotEditable,
			fmt.Sprintf("version %d was superseded by version %d", current.Version, locked.unit.CurrentVersion))
	}
	return locked, current, nil
}

func (s *DeliveryService) closeDelivery(ctx context.Context, tx repository.LedgerTx, delivery *models.Delivery, status models.DeliveryStatus, feedback, reviewerID string) (*models.Delivery, error) {
	now := s.now()
	params := repository.ReviewDeliveryParams{
		ID:         delivery.ID,
		Status:     status,
		Feedback:   optionalString(feedback),
		ReviewedBy: reviewerID,
		ReviewedAt: now,
	}
	if err := tx.UpdateDeliveryReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDeliveryNotEditable, "delivery was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update delivery")
	}
	reviewed := *delivery
	reviewed.Status = status
	reviewed.Feedback = params.Feedback
	reviewed.ReviewedBy = &reviewerID
	reviewed.ReviewedAt = &now
	return &reviewed, nil
}

// persistUnit writes the advanced unit back. For batch slots the parent's
// coarse status is recomputed from every slot.
func (s *DeliveryService) persistUnit(ctx context.Context, tx repository.LedgerTx, locked *lockedScope, next models.UnitOfWork) error {
	if locked.video == nil {
		project := *locked.project
		project.Status = next.Status
		project.RevisionCount = next.RevisionCount
		project.CurrentVersion = next.CurrentVersion
		if err := tx.UpdateProjectState(ctx, &project); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
		}
		return nil
	}

	video := *locked.video
	video.Status = next.Status
	video.RevisionCount = next.RevisionCount
	video.CurrentVersion = next.CurrentVersion
	if err := tx.UpdateBatchVideoState(ctx, &video); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch video status")
	}

	siblings, err := tx.ListBatchVideos(ctx, locked.project.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch videos")
	}
	for i := range siblings {
		if siblings[i].ID == video.ID {
			siblings[i] = video
		}
	}
	coarse := AggregateProjectStatus(siblings)
	if coarse == locked.project.Status {
		return nil
	}
	project := *locked.project
	project.Status = coarse
	if err := tx.UpdateProjectState(ctx, &project); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
	}
	return nil
}

func (s *DeliveryService) charge(ctx context.Context, delivery *models.Delivery, locked *lockedScope, next models.UnitOfWork) error {
	req := PaymentRequest{
		IdempotencyKey: fmt.Sprintf("revision:%s:%d", locked.unit.ID, next.RevisionCount),
		Scope:          models.RefOf(delivery.Scope()),
		DeliveryID:     delivery.ID,
		Reason:         string(models.ActionPayNewRevision),
	}
	if err := s.payments.Charge(ctx, req); err != nil {
		s.logger.Warn("revision charge failed", zap.String("delivery_id", delivery.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPaymentFailed.Code, appErrors.ErrPaymentFailed.Status,
			"payment for the extra revision failed, no revision was requested")
	}
	return nil
}

// withVersionRetry reruns fn when it lost the version race, up to the
// configured number of retries.
func (s *DeliveryService) withVersionRetry(ctx context.Context, fn func() error) error {
	attempts := s.cfg.VersionConflictRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		s.metrics.IncVersionConflict()
		s.logger.Warn("delivery version conflict", zap.Int("attempt", attempt))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return appErrors.Wrap(err, appErrors.ErrVersionConflict.Code, appErrors.ErrVersionConflict.Status, appErrors.ErrVersionConflict.Message)
}

func (s *DeliveryService) validateArtifactURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := s.validator.Var(trimmed, "required,url"); err != nil {
		return "", appErrors.Clone(appErrors.ErrInvalidArtifactLocator, "artifactUrl must be a well-formed url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return "", appErrors.Clone(appErrors.ErrInvalidArtifactLocator, "artifactUrl must be an absolute url with a host")
	}
	for _, scheme := range s.cfg.AllowedSchemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			return trimmed, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInvalidArtifactLocator,
		fmt.Sprintf("artifactUrl scheme %q is not allowed", parsed.Scheme))
}

// reject normalises an error and counts rule violations.
func (s *DeliveryService) reject(err error) error {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrInternal.Code:
		s.logger.Error("delivery operation failed", zap.Error(err))
	case appErrors.ErrAmbiguousAction.Code:
		s.logger.Error("transition table misconfigured", zap.Error(err))
		s.metrics.IncRejectedAction(appErr.Code)
	default:
		s.metrics.IncRejectedAction(appErr.Code)
	}
	return appErr
}

func (s *DeliveryService) emitAudit(ctx context.Context, userID, action, deliveryID string, delivery *models.Delivery) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(delivery)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.AuditResourceDelivery,
		ResourceID: &deliveryID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "delivery-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func unitNoun(locked *lockedScope) string {
	if locked.isBatch() {
		return "video"
	}
	return "project"
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, models.LifecycleEvent) {}
