package service

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnvelopeFraming_RoundTrips(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := Envelope{ID: "1", Method: "status", Result: json.RawMessage(`{"version":"test"}`)}

	go func() {
		mu := &sync.Mutex{}
		_ = writeEnvelope(client, mu, want)
	}()

	got, err := readEnvelope(bufio.NewReader(server))
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Method, got.Method)
	require.JSONEq(t, string(want.Result), string(got.Result))
}

func TestDispatch_UnknownMethodReturnsUnknownMethodError(t *testing.T) {
	a := testApp(t)
	s := &connServer{app: a, logger: zap.NewNop()}

	resp := s.dispatch(context.Background(), Envelope{ID: "42", Method: "not_a_method"})
	require.Equal(t, "42", resp.ID)
	require.NotNil(t, resp.Error)
	require.Equal(t, "UnknownMethod", resp.Error.Code)
}

func TestDispatch_StatusSucceeds(t *testing.T) {
	a := testApp(t)
	s := &connServer{app: a, logger: zap.NewNop()}

	resp := s.dispatch(context.Background(), Envelope{ID: "1", Method: "status"})
	require.Nil(t, resp.Error)
	require.NotEmpty(t, resp.Result)
}

func TestDispatch_QueryOnUnknownDomainReturnsUnknownDomainError(t *testing.T) {
	a := testApp(t)
	s := &connServer{app: a, logger: zap.NewNop()}

	params, _ := json.Marshal(QueryRequest{Domain: "nope.com"})
	resp := s.dispatch(context.Background(), Envelope{ID: "2", Method: "query", Params: params})
	require.NotNil(t, resp.Error)
	require.Equal(t, "UnknownDomain", resp.Error.Code)
}

func TestTryEnqueue_SucceedsUntilQueueDepthThenRejects(t *testing.T) {
	queue := make(chan Envelope, connQueueDepth)

	for i := 0; i < connQueueDepth; i++ {
		require.True(t, tryEnqueue(queue, Envelope{ID: "x"}))
	}
	require.False(t, tryEnqueue(queue, Envelope{ID: "overflow"}))
}

func TestQueueFullResponse_CarriesQueueFullCode(t *testing.T) {
	resp := queueFullResponse(Envelope{ID: "7", Method: "map"})
	require.Equal(t, "7", resp.ID)
	require.Equal(t, "map", resp.Method)
	require.NotNil(t, resp.Error)
	require.Equal(t, "QueueFull", resp.Error.Code)
}
