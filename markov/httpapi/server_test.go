package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/dadacore/markov/brain"
	"github.com/wbrown/dadacore/markov/observability"
)

func newTestServer(t *testing.T) (*httptest.Server, *brain.Brain) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith("dada_test", reg, reg)

	b, err := brain.Open(context.Background(), brain.Options{
		Backend: "memory",
		Order:   2,
		Seed:    1,
		Handler: metrics.Handler(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	ts := httptest.NewServer(New(b, metrics, nil).Router())
	t.Cleanup(ts.Close)
	return ts, b
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestHealthAndRequestID(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]any
	res := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, res.Header.Get(RequestIDHeader), 36, "a uuid is assigned")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "abc-123", res.Header.Get(RequestIDHeader))
}

func TestGenerateEmptyModel(t *testing.T) {
	ts, _ := newTestServer(t)

	var body errorResponse
	res := getJSON(t, ts.URL+"/v1/generate", &body)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "model_empty", body.Code)
}

func TestLearnAndGenerate(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/learn", "text/plain", strings.NewReader("The cat sat.\nhi\n\nA dog ran.\n"))
	require.NoError(t, err)
	var learned learnResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&learned))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, learnResponse{Lines: 4, Learned: 2, Skipped: 2}, learned)

	var lines linesResponse
	res = getJSON(t, ts.URL+"/v1/generate?count=3", &lines)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, lines.Lines, 3)
	for _, line := range lines.Lines {
		assert.Contains(t, []string{"The cat sat.", "A dog ran."}, line)
	}

	res = getJSON(t, ts.URL+"/v1/generate", &lines)
	assert.Len(t, lines.Lines, defaultGenerateCount)

	res = getJSON(t, ts.URL+"/v1/generate?count=0", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	var reply replyResponse
	res = getJSON(t, ts.URL+"/v1/words/dog", &reply)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "A dog ran.", reply.Reply)

	var notFound errorResponse
	res = getJSON(t, ts.URL+"/v1/words/zebra", &notFound)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "unknown_word", notFound.Code)
}

func TestReply(t *testing.T) {
	ts, b := newTestServer(t)
	require.NoError(t, b.Learn("The cat sat."))

	var reply replyResponse
	res := getJSON(t, ts.URL+"/v1/reply?q=where+is+the+cat", &reply)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "The cat sat.", reply.Reply)

	res = getJSON(t, ts.URL+"/v1/reply", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSyncAndStats(t *testing.T) {
	ts, b := newTestServer(t)
	require.NoError(t, b.Learn("The cat sat."))

	res, err := http.Post(ts.URL+"/v1/sync", "text/plain", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var stats statsResponse
	res = getJSON(t, ts.URL+"/v1/stats", &stats)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 2, stats.Order)
	require.NotNil(t, stats.ForwardRoots)
	assert.Greater(t, *stats.ForwardRoots, 0)
	assert.Equal(t, 0, stats.Cache.Dirty)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	getJSON(t, ts.URL+"/healthz", nil)

	scrape := func() string {
		res, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			return ""
		}
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return string(body)
	}

	// The request is counted after its response is written
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(), `dada_test_http_requests_total{code="200",route="/healthz"} 1`)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, scrape(), `dada_test_events_total{event="store/opened"} 1`)
}
