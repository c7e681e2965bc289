package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefinitionIs(t *testing.T) {
	wrapped := fmt.Errorf("start journey: %w", InvalidDuration)
	require.True(t, stderrors.Is(wrapped, InvalidDuration))
	require.False(t, stderrors.Is(wrapped, JourneyOverlap))
}

func TestGet(t *testing.T) {
	require.Equal(t, JourneyOverlap, Get("JOURNEY_OVERLAP"))
	require.Equal(t, "Unexpected error", Get("NOPE").Message)
}

func TestSkipAndNonRetryable(t *testing.T) {
	err := fmt.Errorf("consume: %w", &SkipMessageError{Reason: "stale"})
	require.True(t, IsSkipMessageError(err))
	require.False(t, IsNonRetryableError(err))

	err = fmt.Errorf("send: %w", NewNonRetryableError("isv.TEMPLATE", "bad template", "SMS configuration error"))
	require.True(t, IsNonRetryableError(err))
}
