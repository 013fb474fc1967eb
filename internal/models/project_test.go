package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitRevisionCountStartsAtOne(t *testing.T) {
	editor := "editor-1"
	fresh := &Project{ID: "p1", EditorID: &editor, Status: UnitStatusInProgress}
	require.Equal(t, InitialRevisionCount, fresh.Unit().RevisionCount)
	require.Equal(t, 1, InitialRevisionCount)

	slot := &BatchVideo{ID: "v1", ProjectID: "b1", SequenceOrder: 2}
	unit := slot.Unit(fresh)
	require.Equal(t, 1, unit.RevisionCount)
	require.Equal(t, &editor, unit.ProducerID)

	revised := &Project{ID: "p2", RevisionCount: 3}
	require.Equal(t, 3, revised.Unit().RevisionCount)
}
