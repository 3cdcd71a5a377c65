package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotag/internal/api"
	"autotag/internal/library"
	"autotag/internal/logging"
	"autotag/internal/queue"
	"autotag/internal/resolver"
	"autotag/internal/review"
	"autotag/internal/tagging"
	"autotag/internal/testsupport"
	"autotag/internal/workflow"
)

const testToken = "s3cret"

type apiFixture struct {
	store   *queue.Store
	lib     *library.Store
	handler http.Handler
	tags    map[string]int64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustOpenLibrary(t, store)
	tags := testsupport.MustAddTags(t, lib, "beach", "sunset")

	logger := logging.NewNop()
	manager := workflow.NewManager(cfg, store, lib, logger)
	reviews := review.NewService(store, lib, resolver.New(cfg, lib, logger), logger)

	srv, err := api.NewServer(api.Options{
		Bind:     cfg.API.Bind,
		Token:    cfg.API.Token,
		Workflow: manager,
		Queue:    store,
		Reviews:  reviews,
		Logger:   logger,
	})
	require.NoError(t, err)
	return &apiFixture{store: store, lib: lib, handler: srv.Handler(), tags: tags}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env api.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *apiFixture) addResult(t *testing.T, name string) int64 {
	t.Helper()
	id := testsupport.MustAddMedia(t, f.lib, "/library/"+name, tagging.MediaImage, 0)
	require.NoError(t, f.store.UpsertResult(context.Background(), queue.Result{
		MediaID:      id,
		NSFWCategory: tagging.CategoryNormal,
		MatchedTags: []tagging.MatchedTag{
			{ID: f.tags["beach"], Name: "beach", Confidence: 0.9, MatchType: tagging.MatchExact},
		},
		ReviewStatus: queue.ReviewPending,
	}))
	return id
}

func decodeData(t *testing.T, env api.Envelope, dst any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	for _, header := range []string{"", "Bearer wrong", "Basic " + testToken} {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)

		var env api.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.Equal(t, "unauthorized", env.Error)
	}

	rec, env := f.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestHealthAndMetricsSkipAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, _ = f.do(t, http.MethodGet, "/api/status", "")

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autotag_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/status"`)
}

func TestQueueRoutes(t *testing.T) {
	f := newAPIFixture(t)
	first := testsupport.MustAddMedia(t, f.lib, "/library/a.jpg", tagging.MediaImage, 0)
	second := testsupport.MustAddMedia(t, f.lib, "/library/b.jpg", tagging.MediaImage, 0)

	body := `{"mediaIds":[` + strconv.FormatInt(first, 10) + `,9999],"priority":5}`
	rec, env := f.do(t, http.MethodPost, "/api/queue", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var count api.CountResponse
	decodeData(t, env, &count)
	assert.Equal(t, int64(1), count.Count)

	_, env = f.do(t, http.MethodPost, "/api/queue/untagged", "")
	decodeData(t, env, &count)
	assert.Equal(t, int64(1), count.Count, "only the second media is new")

	_, env = f.do(t, http.MethodGet, "/api/queue?status=pending", "")
	var items []api.QueueItem
	decodeData(t, env, &items)
	require.Len(t, items, 2)
	assert.Equal(t, first, items[0].MediaID)
	assert.Equal(t, 5, items[0].Priority)

	_, env = f.do(t, http.MethodDelete, "/api/queue/"+strconv.FormatInt(second, 10), "")
	decodeData(t, env, &count)
	assert.Equal(t, int64(1), count.Count)

	_, env = f.do(t, http.MethodGet, "/api/status", "")
	var status api.WorkflowStatus
	decodeData(t, env, &status)
	assert.Equal(t, 1, status.QueueStats["pending"])
	assert.False(t, status.Running)

	next, err := f.store.NextPending(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.store.MarkProcessing(context.Background(), next.ID))
	_, env = f.do(t, http.MethodPost, "/api/queue/reset-stuck", "")
	decodeData(t, env, &count)
	assert.Equal(t, int64(1), count.Count)
}

func TestQueueRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/queue", `{"mediaIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = f.do(t, http.MethodPost, "/api/queue", `{"ids":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/queue?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/reviews?page=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWithoutStagesIsUnavailable(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/worker/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestReviewRoutes(t *testing.T) {
	f := newAPIFixture(t)
	approved := f.addResult(t, "one.jpg")
	rejected := f.addResult(t, "two.jpg")

	_, env := f.do(t, http.MethodGet, "/api/reviews?status=pending&pageSize=10", "")
	var page api.ReviewPage
	decodeData(t, env, &page)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "normal", page.Entries[0].NSFWCategory)

	path := "/api/reviews/" + strconv.FormatInt(approved, 10) + "/approve"
	rec, env := f.do(t, http.MethodPost, path, `{"newTags":["pier"],"title":"Pier"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome review.Outcome
	decodeData(t, env, &outcome)
	assert.Len(t, outcome.TagIDs, 2)
	assert.Equal(t, "Pier", outcome.Title)

	rec, env = f.do(t, http.MethodPost, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, _ = f.do(t, http.MethodPost, "/api/reviews/9999/reject", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	bulk := `{"mediaIds":[` + strconv.FormatInt(rejected, 10) + `,` + strconv.FormatInt(approved, 10) + `]}`
	rec, env = f.do(t, http.MethodPost, "/api/reviews/reject", bulk)
	require.Equal(t, http.StatusOK, rec.Code)
	var result review.BulkResult
	decodeData(t, env, &result)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, approved, result.Failed[0].MediaID)

	_, env = f.do(t, http.MethodGet, "/api/stats", "")
	var stats review.Stats
	decodeData(t, env, &stats)
	assert.Equal(t, 1, stats.Review.Approved)
	assert.Equal(t, 1, stats.Review.Rejected)
	assert.Equal(t, 2, stats.AITagLinks)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	f := newAPIFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestNewServerRequiresServices(t *testing.T) {
	_, err := api.NewServer(api.Options{})
	assert.Error(t, err)
}

