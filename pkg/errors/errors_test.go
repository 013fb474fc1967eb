package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrTransitionNotAllowed, "cannot approve from in_progress")
	require.True(t, errors.Is(err, ErrTransitionNotAllowed))
	require.False(t, errors.Is(err, ErrAmbiguousScope))
	require.Equal(t, http.StatusConflict, err.Status)

	wrapped := fmt.Errorf("submit: %w", err)
	require.True(t, errors.Is(wrapped, ErrTransitionNotAllowed))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
	require.Nil(t, FromError(nil))

	typed := FromError(fmt.Errorf("wrap: %w", ErrNoPendingCorrections))
	require.Equal(t, "NO_PENDING_CORRECTIONS", typed.Code)
}
