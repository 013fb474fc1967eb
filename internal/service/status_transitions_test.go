package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

func TestDefaultTableIsUnambiguous(t *testing.T) {
	require.NoError(t, DefaultTransitionTable().Validate())
	require.Len(t, DefaultTransitionTable().Transitions(), 6)
}

func TestIsTransitionAllowed(t *testing.T) {
	require.True(t, IsTransitionAllowed(models.UnitStatusInProgress, models.UnitStatusInReview, models.ActionSubmitForReview))
	require.True(t, IsTransitionAllowed(models.UnitStatusPendingApproval, models.UnitStatusRevisionRequested, models.ActionPayNewRevision))
	require.False(t, IsTransitionAllowed(models.UnitStatusInProgress, models.UnitStatusCompleted, models.ActionSubmitForReview))
	require.False(t, IsTransitionAllowed(models.UnitStatusCompleted, models.UnitStatusInReview, models.ActionSubmitForReview))

	err := DefaultTransitionTable().CheckTransition(models.UnitStatusDraft, models.UnitStatusInReview, models.ActionSubmitForReview)
	require.ErrorIs(t, err, appErrors.ErrTransitionNotAllowed)
}

func TestAvailableActionsByStatus(t *testing.T) {
	require.Empty(t, AvailableActions(models.UnitStatusCompleted))
	require.Empty(t, AvailableActions(models.UnitStatusCancelled))

	actions := AvailableActions(models.UnitStatusPendingApproval)
	require.Len(t, actions, 2)
	for _, tr := range actions {
		require.Equal(t, models.UnitStatusPendingApproval, tr.From)
	}
}

func TestValidateDetectsAmbiguity(t *testing.T) {
	table := NewTransitionTable(
		models.StatusTransition{From: models.UnitStatusInReview, To: models.UnitStatusCompleted, Action: models.ActionApproveFirstVersion},
		models.StatusTransition{From: models.UnitStatusInReview, To: models.UnitStatusPendingApproval, Action: models.ActionApproveFirstVersion},
	)
	require.ErrorIs(t, table.Validate(), appErrors.ErrAmbiguousAction)
}

func TestProjectorApply(t *testing.T) {
	projector := NewStatusProjector(DefaultTransitionTable(), nil)
	unit := models.UnitOfWork{ID: "p1", Status: models.UnitStatusPendingApproval, RevisionCount: 2}

	next, tr, err := projector.Apply(unit, models.ActionPayNewRevision)
	require.NoError(t, err)
	require.True(t, tr.RequiresPayment)
	require.Equal(t, models.UnitStatusRevisionRequested, next.Status)
	require.Equal(t, 3, next.RevisionCount)
	require.Equal(t, 2, unit.RevisionCount)

	next, _, err = projector.Apply(models.UnitOfWork{Status: models.UnitStatusInReview, RevisionCount: 1}, models.ActionRequestRevision)
	require.NoError(t, err)
	require.Equal(t, 1, next.RevisionCount)

	_, _, err = projector.Apply(models.UnitOfWork{Status: models.UnitStatusDraft}, models.ActionApproveProject)
	require.ErrorIs(t, err, appErrors.ErrTransitionNotAllowed)
}

func TestProjectorRejectsEveryPairOutsideTable(t *testing.T) {
	table := DefaultTransitionTable()
	projector := NewStatusProjector(table, nil)

	legal := 0
	for _, status := range models.UnitStatuses {
		for _, action := range models.LifecycleActions {
			unit := models.UnitOfWork{ID: "p1", Status: status, RevisionCount: 2, CurrentVersion: 3}
			next, tr, err := projector.Apply(unit, action)
			if len(table.Match(status, action)) == 1 {
				legal++
				require.NoError(t, err, "%s/%s", status, action)
				require.True(t, table.IsTransitionAllowed(status, next.Status, action))
				require.Equal(t, tr.To, next.Status)
				continue
			}
			require.ErrorIs(t, err, appErrors.ErrTransitionNotAllowed, "%s/%s", status, action)
			require.Equal(t, unit, next, "%s/%s", status, action)
			require.Equal(t, models.StatusTransition{}, tr)
		}
	}
	require.Equal(t, 6, legal)
}

func TestProjectorResolveAction(t *testing.T) {
	projector := NewStatusProjector(DefaultTransitionTable(), nil)

	action, err := projector.ResolveAction(models.UnitStatusInReview, models.ActionApproveFirstVersion, models.ActionApproveProject)
	require.NoError(t, err)
	require.Equal(t, models.ActionApproveFirstVersion, action)

	action, err = projector.ResolveAction(models.UnitStatusRevisionRequested, models.ActionSubmitForReview, models.ActionSubmitCorrections)
	require.NoError(t, err)
	require.Equal(t, models.ActionSubmitCorrections, action)

	_, err = projector.ResolveAction(models.UnitStatusCompleted, models.ActionRequestRevision, models.ActionPayNewRevision)
	require.ErrorIs(t, err, appErrors.ErrTransitionNotAllowed)
}
