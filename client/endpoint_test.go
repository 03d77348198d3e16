package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

func TestEndpointValidate(t *testing.T) {
	require.NoError(t, NewEndpoint("https://api.devnet.solana.com").Validate())
	require.NoError(t, NewEndpoint("http://127.0.0.1:8899").Validate())

	bad := []Endpoint{
		NewEndpoint(""),
		NewEndpoint("ws://127.0.0.1:8900"),
		NewEndpoint("http://"),
		func() Endpoint { e := NewEndpoint("http://localhost:8899"); e.Commitment = "max"; return e }(),
		func() Endpoint { e := NewEndpoint("http://localhost:8899"); e.PollInterval = 0; return e }(),
	}
	for _, e := range bad {
		require.Error(t, e.Validate(), "%+v", e)
	}
}

func TestReached(t *testing.T) {
	tests := []struct {
		status rpc.ConfirmationStatusType
		want   rpc.CommitmentType
		ok     bool
	}{
		{rpc.ConfirmationStatusProcessed, rpc.CommitmentProcessed, true},
		{rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed, false},
		{rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed, true},
		{rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized, false},
		{rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed, true},
		{"", rpc.CommitmentProcessed, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.ok, Reached(tt.status, tt.want), "%s vs %s", tt.status, tt.want)
	}
}

func TestPoll(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	boom := errors.New("boom")
	err = Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)

	err = Poll(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, ErrConfirmationTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Poll(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
