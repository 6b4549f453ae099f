package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardAllowsTheHappyPath(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	steps := []Record{
		{Status: StatusQueued},
		{Status: StatusAnalyzing, ProgressPercent: 5, EstimatedSecondsRemaining: 100},
		{Status: StatusTranscoding, ProgressPercent: 10, EstimatedSecondsRemaining: 90},
		{Status: StatusTranscoding, ProgressPercent: 30, EstimatedSecondsRemaining: 60},
		{Status: StatusUploadingStorage, ProgressPercent: 40, EstimatedSecondsRemaining: 40},
		{Status: StatusRegistering, ProgressPercent: 90, EstimatedSecondsRemaining: 5},
		{Status: StatusCompleted, ProgressPercent: 95},
	}
	last := -1
	for _, step := range steps {
		require.NoError(t, g.Set(ctx, "job", step))
		r, err := g.Get(ctx, "job")
		require.NoError(t, err)
		require.GreaterOrEqual(t, r.ProgressPercent, last)
		last = r.ProgressPercent
	}
	require.Equal(t, 100, last)
}

func TestGuardRejectsBackwardsTransitions(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	require.ErrorIs(t, g.Set(ctx, "job", Record{Status: StatusTranscoding}), ErrInvalidTransition)

	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusQueued}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusUploadingStorage, ProgressPercent: 50}))
	require.ErrorIs(t, g.Set(ctx, "job", Record{Status: StatusTranscoding}), ErrInvalidTransition)
	require.ErrorIs(t, g.Set(ctx, "job", Record{Status: "paused"}), ErrInvalidTransition)
}

func TestGuardTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusQueued}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusFailed, ErrorMessage: "boom"}))
	require.ErrorIs(t, g.Set(ctx, "job", Record{Status: StatusCompleted}), ErrInvalidTransition)
	require.ErrorIs(t, g.Set(ctx, "job", Record{Status: StatusFailed}), ErrInvalidTransition)
}

func TestGuardForcesPercentOnFailure(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusQueued}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusUploadingStorage, ProgressPercent: 65, EstimatedSecondsRemaining: 30}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusFailed, ProgressPercent: 65, EstimatedSecondsRemaining: 30, ErrorMessage: "1/5 segments failed"}))

	r, err := g.Get(ctx, "job")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, r.Status)
	require.Equal(t, 0, r.ProgressPercent)
	require.Zero(t, r.EstimatedSecondsRemaining)
	require.Equal(t, "1/5 segments failed", r.ErrorMessage)
}

func TestGuardClampsPercentAndETA(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(NewMemoryStore())

	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusQueued}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusAnalyzing, ProgressPercent: 20, EstimatedSecondsRemaining: 50}))
	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusTranscoding, ProgressPercent: 10, EstimatedSecondsRemaining: 80}))

	r, err := g.Get(ctx, "job")
	require.NoError(t, err)
	require.Equal(t, 20, r.ProgressPercent)
	require.Equal(t, int64(50), r.EstimatedSecondsRemaining)

	require.NoError(t, g.Set(ctx, "job", Record{Status: StatusRegistering, ProgressPercent: 120}))
	r, err = g.Get(ctx, "job")
	require.NoError(t, err)
	require.Equal(t, 99, r.ProgressPercent)
}

func TestGuardAllowsImmediateFailure(t *testing.T) {
	g := NewGuard(NewMemoryStore())
	require.NoError(t, g.Set(context.Background(), "job", Record{Status: StatusFailed, ErrorMessage: "bad request"}))
}
