package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"shelterlink/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesSentinelByKind(t *testing.T) {
	err := apperr.Conflict("connection request already pending")

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestErrorIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("approve: %w", apperr.InvalidState("connection is not pending"))

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestTimeout_UnwrapsCause(t *testing.T) {
	err := apperr.Timeout(context.DeadlineExceeded, "matching query")

	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "matching query")
}

func TestWithHint_DoesNotMutateOriginal(t *testing.T) {
	base := apperr.Forbidden("must be connected")
	hinted := base.WithHint(apperr.HintRequestConnection)

	assert.Empty(t, base.Hint)
	assert.Equal(t, apperr.HintRequestConnection, hinted.Hint)
	assert.ErrorIs(t, hinted, apperr.ErrForbidden)
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("boom")))
	_, ok := apperr.As(errors.New("boom"))
	assert.False(t, ok)
}
