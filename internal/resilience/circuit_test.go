package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/resilience"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := resilience.NewBreaker(4, 0.5, time.Minute)
	for i := 0; i < 2; i++ {
		b.Report(true)
	}
	for i := 0; i < 2; i++ {
		b.Report(false)
	}
	require.Equal(t, resilience.Open, b.CurrentState())
	require.False(t, b.Allow())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, 10*time.Millisecond)
	b.Report(false)
	require.Equal(t, resilience.Open, b.CurrentState())

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow(), "cool-off elapsed, probe allowed")
	require.Equal(t, resilience.HalfOpen, b.CurrentState())

	b.Report(true)
	require.Equal(t, resilience.Closed, b.CurrentState())
	require.True(t, b.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, 5*time.Millisecond)
	b.Report(false)
	time.Sleep(10 * time.Millisecond)
	require.True(t, b.Allow())
	b.Report(false)
	require.Equal(t, resilience.Open, b.CurrentState())
}

func TestHTTPClientRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(100, 1, time.Second),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 3,
	}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPClientReturnsErrOpenCircuit(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, time.Minute)
	b.Report(false)

	cl := resilience.HTTPClient{Client: http.DefaultClient, Breaker: b, MaxAttempts: 2}
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	require.NoError(t, err)
	_, err = cl.Do(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}

func TestBackoffGrows(t *testing.T) {
	a := resilience.Backoff(10*time.Millisecond, 1, 0)
	b := resilience.Backoff(10*time.Millisecond, 3, 0)
	require.Equal(t, 10*time.Millisecond, a)
	require.Equal(t, 40*time.Millisecond, b)
}
