package service

import (
	"context"

	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

// Capability names what a caller wants to do with a project.
type Capability string

const (
	CapabilityView     Capability = "view"
	CapabilityDeliver  Capability = "deliver"
	CapabilityReview   Capability = "review"
	CapabilityAnnotate Capability = "annotate"
)

// AccessRequest describes an authorization check.
type AccessRequest struct {
	Project    *models.Project
	Unit       *models.UnitOfWork
	Capability Capability
}

// ProjectAuthorizer decides whether an actor may act on a project.
type ProjectAuthorizer interface {
	Authorize(ctx context.Context, actor *models.JWTClaims, req AccessRequest) error
}

// ProjectAuthorizerFunc allows using plain functions.
type ProjectAuthorizerFunc func(ctx context.Context, actor *models.JWTClaims, req AccessRequest) error

// Authorize implements ProjectAuthorizer.
func (f ProjectAuthorizerFunc) Authorize(ctx context.Context, actor *models.JWTClaims, req AccessRequest) error {
	return f(ctx, actor, req)
}

// MembershipAuthorizer grants access based on project membership carried
// in the project row: the creator reviews, the assigned editor delivers and
// admins may do everything.
type MembershipAuthorizer struct{}

// Authorize implements ProjectAuthorizer.
func (MembershipAuthorizer) Authorize(_ context.Context, actor *models.JWTClaims, req AccessRequest) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if req.Project == nil {
		return appErrors.ErrNotFound
	}
	if actor.IsAdmin() {
		return nil
	}
	switch req.Capability {
	case CapabilityView, CapabilityAnnotate:
		if req.Project.IsMember(actor.UserID) || isUnitProducer(req.Unit, actor.UserID) {
			return nil
		}
	case CapabilityReview:
		if actor.Role == models.RoleCreator && req.Project.CreatorID == actor.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only the project creator can review deliveries")
	case CapabilityDeliver:
		if actor.Role == models.RoleEditor && isUnitProducer(req.Unit, actor.UserID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only the assigned editor can submit deliveries")
	}
	return appErrors.ErrForbidden
}

func isUnitProducer(unit *models.UnitOfWork, userID string) bool {
	return unit != nil && unit.ProducerID != nil && *unit.ProducerID == userID
}

// PaymentRequest identifies a charge or release. IdempotencyKey is stable
// for one business action so a retried call is de-duplicated by the provider.
type PaymentRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	Scope          models.ScopeRef `json:"scope"`
	DeliveryID     string          `json:"deliveryId"`
	Reason         string          `json:"reason"`
}

// PaymentGateway captures and releases marketplace payments.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentRequest) error
	Release(ctx context.Context, req PaymentRequest) error
}

// EventPublisher delivers lifecycle events to the notification system.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

// EventPublisherFunc allows using plain functions.
type EventPublisherFunc func(ctx context.Context, event models.LifecycleEvent) error

// Publish implements EventPublisher.
func (f EventPublisherFunc) Publish(ctx context.Context, event models.LifecycleEvent) error {
	return f(ctx, event)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type projectReader interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error)
	ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error)
}
