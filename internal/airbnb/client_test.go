package airbnb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hostpulse/airbnb-sync/internal/config"
	"github.com/hostpulse/airbnb-sync/internal/flatten"
)

func testClient(baseURL string) *Client {
	return NewClient(config.AirbnbConfig{
		BaseURL:          baseURL,
		RequestTimeoutMs: 5000,
		MaxRetries:       2,
		RetryBaseMs:      1,
	})
}

func testCreds() Credentials {
	return Credentials{
		Cookie:         "_user_attributes=x",
		XClientVersion: "abc123",
		UserAgent:      "Mozilla/5.0",
	}
}

const listingsBody = `{"data":{"porygon":{"getPerformanceComponents":{"components":[{
	"tableRows":[
		{"id":"2002","internalName":"Garden Studio"},
		{"id":"1001","internalName":"Harbor View Loft"},
		{"id":"1000","internalName":"Garden Studio"}
	]
}]}}}}`

func TestClient_FetchListings_SortedAndHeadersSet(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		w.Write([]byte(listingsBody))
	}))
	defer srv.Close()

	listings, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("FetchListings failed: %v", err)
	}

	if gotPath != EndpointPath(flatten.QueryKindListings) {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotHeaders.Get("X-Airbnb-API-Key") != publicAPIKey {
		t.Error("Expected public API key header")
	}
	if gotHeaders.Get("X-Client-Version") != "abc123" {
		t.Error("Expected client version header")
	}
	if gotHeaders.Get("X-Client-Request-Id") == "" {
		t.Error("Expected per-request id header")
	}

	// 按 internalName 再按 ID 稳定排序
	if len(listings) != 3 {
		t.Fatalf("Expected 3 listings, got %d", len(listings))
	}
	if listings[0].ID != "1000" || listings[1].ID != "2002" || listings[2].ID != "1001" {
		t.Errorf("Unexpected order: %+v", listings)
	}
}

func TestClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(listingsBody))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestClient_NoRetryOnAuthFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	if !IsAuthError(err) {
		t.Fatalf("Expected auth error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 attempt for auth failure, got %d", got)
	}
}

func TestClient_RetryExhaustionOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	if err == nil {
		t.Fatal("Expected error after retry exhaustion")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != ErrorKindRateLimited {
		t.Errorf("Expected rate limited error, got %v", err)
	}
	// maxRetries=2 → 初次 + 2 次重试
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestClient_RejectsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != ErrorKindDecode {
		t.Errorf("Expected decode error, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("Decode errors must not be retryable")
	}
}

func TestClient_RejectsBodyWithoutDataKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != ErrorKindDecode {
		t.Errorf("Expected decode error for missing data field, got %v", err)
	}
}

func TestClient_AuthShapeInBodyMapsToAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"porygon":{"getPerformanceComponents":null}}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchListings(context.Background(), testCreds())
	if !IsAuthError(err) {
		t.Errorf("Expected auth error for null components, got %v", err)
	}
}

func TestClient_FetchMetricChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"porygon":{"getPerformanceComponents":{"components":[{}]}}}}`))
	}))
	defer srv.Close()

	req := MetricRequest{
		Kind:        flatten.QueryKindChart,
		ListingID:   "1001",
		ListingName: "Harbor View Loft",
		WindowStart: date("2025-11-02"),
		WindowEnd:   date("2025-11-29"),
		MetricType:  "CONVERSION",
		GroupValues: []string{"conversion_rate"},
	}

	chunk, err := testClient(srv.URL).FetchMetricChunk(context.Background(), testCreds(), req, date("2025-11-10"))
	if err != nil {
		t.Fatalf("FetchMetricChunk failed: %v", err)
	}

	if chunk.Meta.Kind != flatten.QueryKindChart || chunk.Meta.ListingID != "1001" {
		t.Errorf("Unexpected chunk meta: %+v", chunk.Meta)
	}
	if !chunk.Meta.WindowStart.Equal(req.WindowStart) {
		t.Error("Chunk meta must carry the request window")
	}
	if len(chunk.Raw) == 0 {
		t.Error("Expected raw response body in chunk")
	}
}

func TestClient_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(config.AirbnbConfig{
		BaseURL:          srv.URL,
		RequestTimeoutMs: 5000,
		MaxRetries:       5,
		RetryBaseMs:      60000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchListings(ctx, testCreds())
	if err == nil {
		t.Fatal("Expected error when context expires during backoff")
	}
}
