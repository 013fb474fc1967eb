package service

import (
	"fmt"

	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

var defaultTransitions = []models.StatusTransition{
	{From: models.UnitStatusInProgress, To: models.UnitStatusInReview, Action: models.ActionSubmitForReview},
	{From: models.UnitStatusInReview, To: models.UnitStatusRevisionRequested, Action: models.ActionRequestRevision},
	{From: models.UnitStatusRevisionRequested, To: models.UnitStatusPendingApproval, Action: models.ActionSubmitCorrections},
	{From: models.UnitStatusPendingApproval, To: models.UnitStatusCompleted, Action: models.ActionApproveProject},
	{From: models.UnitStatusPendingApproval, To: models.UnitStatusRevisionRequested, Action: models.ActionPayNewRevision, RequiresPayment: true, IncrementsRevision: true},
	{From: models.UnitStatusInReview, To: models.UnitStatusCompleted, Action: models.ActionApproveFirstVersion},
}

// TransitionTable is an immutable set of legal status transitions.
type TransitionTable struct {
	transitions []models.StatusTransition
}

// NewTransitionTable copies the given transitions into a table.
func NewTransitionTable(transitions ...models.StatusTransition) TransitionTable {
	return TransitionTable{transitions: append([]models.StatusTransition(nil), transitions...)}
}

// DefaultTransitionTable returns the canonical delivery lifecycle.
func DefaultTransitionTable() TransitionTable {
	return NewTransitionTable(defaultTransitions...)
}

// Transitions returns a copy of every entry.
func (t TransitionTable) Transitions() []models.StatusTransition {
	return append([]models.StatusTransition(nil), t.transitions...)
}

// IsTransitionAllowed reports whether the exact (current, next, action) triple exists.
func (t TransitionTable) IsTransitionAllowed(current, next models.UnitStatus, action models.LifecycleAction) bool {
	for _, tr := range t.transitions {
		if tr.From == current && tr.To == next && tr.Action == action {
			return true
		}
	}
	return false
}

// CheckTransition is IsTransitionAllowed returning a typed error naming the attempt.
func (t TransitionTable) CheckTransition(current, next models.UnitStatus, action models.LifecycleAction) error {
	if t.IsTransitionAllowed(current, next, action) {
		return nil
	}
	return transitionNotAllowed(current, next, action)
}

// AvailableActions lists the transitions whose source is current.
func (t TransitionTable) AvailableActions(current models.UnitStatus) []models.StatusTransition {
	result := make([]models.StatusTransition, 0, 2)
	for _, tr := range t.transitions {
		if tr.From == current {
			result = append(result, tr)
		}
	}
	return result
}

// Match returns every transition for (current, action). More than one match
// means the table is ambiguous.
func (t TransitionTable) Match(current models.UnitStatus, action models.LifecycleAction) []models.StatusTransition {
	var result []models.StatusTransition
	for _, tr := range t.transitions {
		if tr.From == current && tr.Action == action {
			result = append(result, tr)
		}
	}
	return result
}

// Validate fails when any (from, action) pair resolves to more than one destination.
func (t TransitionTable) Validate() error {
	seen := make(map[string]models.StatusTransition, len(t.transitions))
	for _, tr := range t.transitions {
		key := string(tr.From) + "|" + string(tr.Action)
		if prev, ok := seen[key]; ok {
			return appErrors.Clone(appErrors.ErrAmbiguousAction,
				fmt.Sprintf("action %s from %s leads to both %s and %s", tr.Action, tr.From, prev.To, tr.To))
		}
		seen[key] = tr
	}
	return nil
}

// IsTransitionAllowed checks the canonical table.
func IsTransitionAllowed(current, next models.UnitStatus, action models.LifecycleAction) bool {
	return DefaultTransitionTable().IsTransitionAllowed(current, next, action)
}

// AvailableActions lists canonical transitions leaving current.
func AvailableActions(current models.UnitStatus) []models.StatusTransition {
	return DefaultTransitionTable().AvailableActions(current)
}

func transitionNotAllowed(current, next models.UnitStatus, action models.LifecycleAction) *appErrors.Error {
	if next == "" {
		return appErrors.Clone(appErrors.ErrTransitionNotAllowed,
			fmt.Sprintf("action %s is not allowed while status is %s", action, current))
	}
	return appErrors.Clone(appErrors.ErrTransitionNotAllowed,
		fmt.Sprintf("action %s cannot move status from %s to %s", action, current, next))
}
