package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

type deliveryCounter interface {
	CountDeliveries(ctx context.Context, scopeKey string) (int, error)
}

// VersionAllocator computes the next delivery version of a scope. Callers
// must invoke Next inside the transaction that inserts the delivery and
// holds the unit-of-work row lock; the unique (scope_key, version) index
// rejects any writer that slipped past.
type VersionAllocator struct{}

// NewVersionAllocator constructs an allocator.
func NewVersionAllocator() *VersionAllocator {
	return &VersionAllocator{}
}

// CheckScope rejects scopes that do not identify exactly one unit of work.
func (a *VersionAllocator) CheckScope(project *models.Project, scope models.DeliveryScope) error {
	if project == nil {
		return appErrors.ErrNotFound
	}
	switch sc := scope.(type) {
	case models.ProjectScope:
		if project.IsBatch {
			return appErrors.Clone(appErrors.ErrAmbiguousScope, "select which video you are delivering")
		}
	case models.BatchVideoScope:
		if sc.Video == "" {
			return appErrors.Clone(appErrors.ErrAmbiguousScope, "select which video you are delivering")
		}
		if !project.IsBatch {
			return appErrors.Clone(appErrors.ErrValidation, "project is not a batch project, omit batchVideoId")
		}
	default:
		return appErrors.Clone(appErrors.ErrAmbiguousScope, "delivery scope is missing")
	}
	return nil
}

// Next returns count(deliveries in scope) + 1.
func (a *VersionAllocator) Next(ctx context.Context, counter deliveryCounter, project *models.Project, scope models.DeliveryScope) (int, error) {
	if err := a.CheckScope(project, scope); err != nil {
		return 0, err
	}
	count, err := counter.CountDeliveries(ctx, scope.Key())
	if err != nil {
		return 0, fmt.Errorf("count deliveries for %s: %w", scope.Key(), err)
	}
	return count + 1, nil
}
