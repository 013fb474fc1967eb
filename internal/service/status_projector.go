package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

// StatusProjector applies transition table entries to a unit of work.
type StatusProjector struct {
	table  TransitionTable
	logger *zap.Logger
}

// NewStatusProjector constructs a projector over the given table.
func NewStatusProjector(table TransitionTable, logger *zap.Logger) *StatusProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusProjector{table: table, logger: logger}
}

// Table exposes the table the projector resolves against.
func (p *StatusProjector) Table() TransitionTable {
	return p.table
}

// Apply resolves the destination for (unit.Status, action) and returns the
// advanced unit together with the transition used. The input is not modified.
func (p *StatusProjector) Apply(unit models.UnitOfWork, action models.LifecycleAction) (models.UnitOfWork, models.StatusTransition, error) {
	matches := p.table.Match(unit.Status, action)
	switch len(matches) {
	case 0:
		return unit, models.StatusTransition{}, transitionNotAllowed(unit.Status, "", action)
	case 1:
	default:
		p.logger.Error("ambiguous status transition",
			zap.String("status", string(unit.Status)),
			zap.String("action", string(action)),
			zap.Int("matches", len(matches)),
		)
		return unit, models.StatusTransition{}, appErrors.Clone(appErrors.ErrAmbiguousAction,
			fmt.Sprintf("action %s from %s has %d destinations", action, unit.Status, len(matches)))
	}

	tr := matches[0]
	next := unit
	next.Status = tr.To
	if tr.IncrementsRevision {
		next.RevisionCount = unit.RevisionCount + 1
	}
	return next, tr, nil
}

// ResolveAction picks the single action among candidates that is available
// from status. It is used where the caller expresses intent ("submit",
// "approve") and the table decides which named action applies.
func (p *StatusProjector) ResolveAction(status models.UnitStatus, candidates ...models.LifecycleAction) (models.LifecycleAction, error) {
	var found []models.LifecycleAction
	for _, tr := range p.table.AvailableActions(status) {
		for _, candidate := range candidates {
			if tr.Action == candidate {
				found = append(found, candidate)
			}
		}
	}
	switch len(found) {
	case 0:
		if len(candidates) == 1 {
			return "", transitionNotAllowed(status, "", candidates[0])
		}
		return "", appErrors.Clone(appErrors.ErrTransitionNotAllowed,
			fmt.Sprintf("none of %v is allowed while status is %s", candidates, status))
	case 1:
		return found[0], nil
	default:
		return "", appErrors.Clone(appErrors.ErrAmbiguousAction,
			fmt.Sprintf("status %s allows %v at the same time", status, found))
	}
}
