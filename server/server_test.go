package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regwatch/digest"
	"regwatch/dispatch"
	"regwatch/feeds"
	"regwatch/models"
	"regwatch/query"
	"regwatch/server"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	subscribers []models.Subscriber
	items       []models.ContentItem
	err         error
	calls       int
	upserts     []models.SubscriberPatch
}

func (f *fakeStore) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	f.calls++
	return f.subscribers, f.err
}

func (f *fakeStore) RecentItems(ctx context.Context, limit int) ([]models.ContentItem, error) {
	f.calls++
	return f.items, f.err
}

func (f *fakeStore) FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, sub := range f.subscribers {
		if sub.Email == email {
			return &sub, nil
		}
	}
	return nil, fmt.Errorf("subscriber %q: %w", email, models.ErrNotFound)
}

func (f *fakeStore) SearchItems(ctx context.Context, filter query.Filter, limit int) ([]models.ContentItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	criteria := models.Subscriber{Sector: filter.Sector, Keywords: models.NormalizeKeywords(filter.Keywords)}
	out := []models.ContentItem{}
	for _, item := range f.items {
		if digest.Matches(criteria, item) && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertSubscriber(ctx context.Context, email string, patch models.SubscriberPatch) (*models.Subscriber, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, patch)
	sub := models.Subscriber{Email: email, Keywords: models.Keywords{}, NotifyPreference: models.NotifyUnset}
	if patch.Sector != nil {
		sub.Sector = *patch.Sector
	}
	if patch.Keywords != nil {
		sub.Keywords = *patch.Keywords
	}
	if patch.NotifyPreference != nil {
		sub.NotifyPreference = *patch.NotifyPreference
	}
	return &sub, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.err
}

func newStore() *fakeStore {
	return &fakeStore{
		subscribers: []models.Subscriber{
			{Email: "legal@example.com", Sector: "Legal", Keywords: models.Keywords{}},
			{Email: "hr@example.com", Sector: "HR", Keywords: models.Keywords{"payroll"}},
		},
		items: []models.ContentItem{
			{ID: 2, Title: "Data Protection Update", Sectors: []string{"Legal"}},
			{ID: 1, Title: "New Customs Rule", Summary: "includes tax changes", Sectors: []string{}},
		},
	}
}

func newTestApp(store *fakeStore, token string) *server.ServerConfig {
	return &server.ServerConfig{
		Feeds:        feeds.NewService(store, 50),
		Runner:       digest.NewRunner(store, store, dispatch.NewDryRun()),
		Subscribers:  store,
		Health:       store,
		TriggerToken: token,
	}
}

func do(t *testing.T, cfg *server.ServerConfig, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := server.Server(cfg).Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestSearchFeed(t *testing.T) {
	store := newStore()

	code, body := do(t, newTestApp(store, ""), httptest.NewRequest(http.MethodGet, "/feed?q=TAX", nil))

	require.Equal(t, http.StatusOK, code)
	var items []models.ContentItem
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
}

func TestSearchFeedStoreError(t *testing.T) {
	store := newStore()
	store.err = &models.StoreError{Op: "search items", Err: errors.New("connection refused")}

	code, body := do(t, newTestApp(store, ""), httptest.NewRequest(http.MethodGet, "/feed", nil))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.JSONEq(t, `{"error":"db_error"}`, string(body))
}

// flakyFeeds fails the first search and succeeds afterwards
type flakyFeeds struct {
	calls int
}

func (f *flakyFeeds) Search(ctx context.Context, freeText, sector string) ([]models.ContentItem, error) {
	f.calls++
	if f.calls == 1 {
		return nil, &models.StoreError{Op: "search items", Err: errors.New("connection refused")}
	}
	return []models.ContentItem{{ID: 1, Title: "New Customs Rule", Sectors: []string{}}}, nil
}

func (f *flakyFeeds) PersonalFeed(ctx context.Context, email string) ([]models.ContentItem, error) {
	return nil, nil
}

func TestSearchFeedCacheSkipsErrors(t *testing.T) {
	feedReader := &flakyFeeds{}
	cfg := newTestApp(newStore(), "")
	cfg.Feeds = feedReader
	cfg.FeedCacheTTL = time.Minute
	app := server.Server(cfg)

	get := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed?q=x", nil), -1)
		require.NoError(t, err)
		return resp
	}

	first := get()
	assert.Equal(t, http.StatusInternalServerError, first.StatusCode)
	body, err := io.ReadAll(first.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"db_error"}`, string(body))

	second := get()
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.NotEqual(t, "hit", second.Header.Get("X-Cache"))

	third := get()
	assert.Equal(t, http.StatusOK, third.StatusCode)
	assert.Equal(t, "hit", third.Header.Get("X-Cache"))

	assert.Equal(t, 2, feedReader.calls)
}

func TestPersonalFeed(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		expectedCode int
		expectedBody string
		storeCalls   int
	}{
		{
			name:         "missing email",
			url:          "/feed/personal",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"email_required"}`,
			storeCalls:   0,
		},
		{
			name:         "unknown subscriber",
			url:          "/feed/personal?email=ghost@example.com",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"user_not_found"}`,
			storeCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()

			code, body := do(t, newTestApp(store, ""), httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedCode, code)
			assert.JSONEq(t, tt.expectedBody, string(body))
			assert.Equal(t, tt.storeCalls, store.calls)
		})
	}

	t.Run("known subscriber", func(t *testing.T) {
		code, body := do(t, newTestApp(newStore(), ""), httptest.NewRequest(http.MethodGet, "/feed/personal?email=legal@example.com", nil))

		require.Equal(t, http.StatusOK, code)
		var items []models.ContentItem
		require.NoError(t, json.Unmarshal(body, &items))
		require.Len(t, items, 1)
		assert.Equal(t, "Data Protection Update", items[0].Title)
	})
}

func TestRunDigestRequiresToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
	}{
		{name: "no token configured", configured: "", header: ""},
		{name: "missing token", configured: "s3cret", header: ""},
		{name: "wrong token", configured: "s3cret", header: "guess"},
		{name: "prefix of token", configured: "s3cret", header: "s3c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			req := httptest.NewRequest(http.MethodPost, "/digest/run", nil)
			if tt.header != "" {
				req.Header.Set(server.TriggerTokenHeader, tt.header)
			}

			code, body := do(t, newTestApp(store, tt.configured), req)

			assert.Equal(t, http.StatusUnauthorized, code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, string(body))
			assert.Equal(t, 0, store.calls)
		})
	}
}

func TestRunDigest(t *testing.T) {
	store := newStore()
	req := httptest.NewRequest(http.MethodPost, "/digest/run", nil)
	req.Header.Set(server.TriggerTokenHeader, "s3cret")

	code, body := do(t, newTestApp(store, "s3cret"), req)

	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":true,"subscribersConsidered":2,"sent":1,"backend":"dry-run"}`, string(body))
}

func TestRunDigestTokenInQuery(t *testing.T) {
	code, _ := do(t, newTestApp(newStore(), "s3cret"), httptest.NewRequest(http.MethodGet, "/digest/run?token=s3cret", nil))

	assert.Equal(t, http.StatusOK, code)
}

func TestRunDigestStoreError(t *testing.T) {
	store := newStore()
	store.err = errors.New("connection refused")
	req := httptest.NewRequest(http.MethodPost, "/digest/run", nil)
	req.Header.Set(server.TriggerTokenHeader, "s3cret")

	code, body := do(t, newTestApp(store, "s3cret"), req)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.JSONEq(t, `{"ok":false,"error":"db_error"}`, string(body))
}

func TestUpsertSubscriber(t *testing.T) {
	store := newStore()
	req := httptest.NewRequest(http.MethodPost, "/subscribers",
		strings.NewReader(`{"email":"new@example.com","sector":" Legal ","keywords":"tax, customs","notifyPreference":"daily"}`))
	req.Header.Set("Content-Type", "application/json")

	code, body := do(t, newTestApp(store, ""), req)

	require.Equal(t, http.StatusOK, code)
	var sub models.Subscriber
	require.NoError(t, json.Unmarshal(body, &sub))
	assert.Equal(t, "new@example.com", sub.Email)
	assert.Equal(t, "Legal", sub.Sector)
	assert.Equal(t, models.Keywords{"tax", "customs"}, sub.Keywords)
	assert.Equal(t, models.NotifyDaily, sub.NotifyPreference)
}

func TestUpsertSubscriberValidation(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedBody string
	}{
		{name: "missing email", body: `{"sector":"Legal"}`, expectedBody: `{"error":"email_required"}`},
		{name: "bad preference", body: `{"email":"a@example.com","notifyPreference":"hourly"}`, expectedBody: `{"error":"invalid_notify_preference"}`},
		{name: "bad keywords", body: `{"email":"a@example.com","keywords":7}`, expectedBody: `{"error":"invalid_body"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			req := httptest.NewRequest(http.MethodPost, "/subscribers", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			code, body := do(t, newTestApp(store, ""), req)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, tt.expectedBody, string(body))
			assert.Empty(t, store.upserts)
		})
	}
}

func TestHealth(t *testing.T) {
	code, _ := do(t, newTestApp(newStore(), ""), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)

	store := newStore()
	store.err = errors.New("down")
	code, _ = do(t, newTestApp(store, ""), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
