package attemptstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_RecordAndLastAttemptRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.LastAttempt(ctx, "example.com")
	require.NoError(t, err)
	require.False(t, ok)

	a := Attempt{
		Domain:    "example.com",
		AttemptID: "attempt-1",
		StartedAt: time.Unix(1000, 0).UTC(),
		EndedAt:   time.Unix(1010, 0).UTC(),
		Status:    StatusSealed,
		NodeCount: 42,
		EdgeCount: 91,
	}
	require.NoError(t, m.Record(ctx, a))

	got, ok, err := m.LastAttempt(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, a, got)
}

func TestMemory_RecordOverwritesPriorAttemptForSameDomain(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := Attempt{Domain: "example.com", AttemptID: "attempt-1", Status: StatusFailed, ErrorText: "dns"}
	second := Attempt{Domain: "example.com", AttemptID: "attempt-2", Status: StatusSealed, NodeCount: 7}

	require.NoError(t, m.Record(ctx, first))
	require.NoError(t, m.Record(ctx, second))

	got, ok, err := m.LastAttempt(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second, got)
}

func TestMemory_DomainsAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, Attempt{Domain: "a.com", Status: StatusSealed}))
	require.NoError(t, m.Record(ctx, Attempt{Domain: "b.com", Status: StatusFailed}))

	a, ok, err := m.LastAttempt(ctx, "a.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusSealed, a.Status)

	b, ok, err := m.LastAttempt(ctx, "b.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusFailed, b.Status)
}

func TestMemory_CloseIsNoOp(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
}
