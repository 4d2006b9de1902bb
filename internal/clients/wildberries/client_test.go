package wildberries

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/clients"
)

func fastRetryConfig(maxRetries int) *clients.RetryConfig {
	cfg := clients.DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Jitter = 0
	return cfg
}

func newTestClient(t *testing.T, handler http.HandlerFunc, retry *clients.RetryConfig) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	if retry == nil {
		retry = fastRetryConfig(3)
	}
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   retry,
	})
}

func sampleUpdates() []clients.PriceUpdate {
	return []clients.PriceUpdate{
		{NmID: 101, Price: 550},
		{NmID: 102, Price: 720},
	}
}

func TestSubmitPriceUpdateAllAccepted(t *testing.T) {
	var gotAuth string
	var gotBody []clients.PriceUpdate

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/public/api/v1/prices", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}, nil)

	result, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotAuth, "the API key goes in Authorization as-is")
	require.Len(t, gotBody, 2)
	assert.Equal(t, int64(101), gotBody[0].NmID)
	assert.Equal(t, 550, gotBody[0].Price)

	assert.ElementsMatch(t, []int64{101, 102}, result.Accepted)
	assert.Empty(t, result.Rejected)
}

func TestSubmitPriceUpdatePerItemErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":false,"data":{"errors":[{"nmID":102,"message":"price below cost"}]}}`))
	}, nil)

	result, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	require.NoError(t, err)

	assert.Equal(t, []int64{101}, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, int64(102), result.Rejected[0].NmID)
	assert.Equal(t, "price below cost", result.Rejected[0].Reason)
}

func TestSubmitPriceUpdateRetriesRateLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, nil)

	result, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.ElementsMatch(t, []int64{101, 102}, result.Accepted)
}

func TestSubmitPriceUpdateAuthRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":true,"errorText":"invalid token"}`))
	}, nil)

	_, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())

	var transportErr *clients.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
	assert.Contains(t, transportErr.Error(), "invalid token")
}

func TestSubmitPriceUpdateBadRequestRejectsAllItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":true,"errorText":"malformed payload"}`))
	}, nil)

	result, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	require.NoError(t, err, "a refused payload is a per-item outcome, not a transport failure")

	assert.Empty(t, result.Accepted)
	require.Len(t, result.Rejected, 2)
	for _, rej := range result.Rejected {
		assert.Equal(t, "malformed payload", rej.Reason)
	}
}

func TestSubmitPriceUpdateServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, fastRetryConfig(2))

	_, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())

	var transportErr *clients.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestSubmitPriceUpdateChunkTooLarge(t *testing.T) {
	client := NewClient(Config{APIKey: "k", MaxChunkSize: 1, Retry: fastRetryConfig(0)})

	_, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	require.Error(t, err)
	var transportErr *clients.TransportError
	assert.False(t, errors.As(err, &transportErr), "an oversized chunk is a caller bug, not a transport failure")
}

func TestSubmitPriceUpdateEmptyChunk(t *testing.T) {
	client := NewClient(Config{APIKey: "k", Retry: fastRetryConfig(0)})

	result, err := client.SubmitPriceUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
	assert.Empty(t, result.Rejected)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, fastRetryConfig(0))

	// Five consecutive transport failures trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
		require.Error(t, err)
	}
	callsBefore := atomic.LoadInt32(&calls)

	_, err := client.SubmitPriceUpdate(context.Background(), sampleUpdates())
	var transportErr *clients.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, transportErr.Error(), "circuit breaker open")
	assert.Equal(t, callsBefore, atomic.LoadInt32(&calls), "an open breaker never reaches the endpoint")
}

func TestDefaultsWithoutOverrides(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	assert.Equal(t, 1000, client.MaxChunkSize())
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}, nil)
	assert.NoError(t, client.TestConnection(context.Background()))
}

func TestTestConnectionUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, fastRetryConfig(0))

	err := client.TestConnection(context.Background())
	var transportErr *clients.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
}
