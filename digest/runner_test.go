package digest_test

import (
	"context"
	"errors"
	"fmt"
	"regwatch/digest"
	"regwatch/dispatch"
	"regwatch/models"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	subscribers    []models.Subscriber
	items          []models.ContentItem
	subscribersErr error
	itemsErr       error
	requestedLimit int
}

func (f *fakeStore) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	return f.subscribers, f.subscribersErr
}

func (f *fakeStore) RecentItems(ctx context.Context, limit int) ([]models.ContentItem, error) {
	f.requestedLimit = limit
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	if len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []dispatch.Message
	failTo map[string]bool
}

func (f *fakeClient) Backend() string {
	return dispatch.BackendProvider
}

func (f *fakeClient) Send(ctx context.Context, msg dispatch.Message) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.failTo[msg.To] {
		return dispatch.Result{
			Destination: msg.To,
			Err:         &models.DispatchError{Destination: msg.To, Reason: "provider send failed", Err: errors.New("502")},
		}
	}
	return dispatch.Result{Destination: msg.To}
}

func (f *fakeClient) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

func runStore() *fakeStore {
	return &fakeStore{
		subscribers: []models.Subscriber{
			{Email: "legal@example.com", Sector: "Legal", Keywords: models.Keywords{}},
			{Email: "tax@example.com", Keywords: models.Keywords{"tax"}},
			{Email: "hr@example.com", Sector: "HR", Keywords: models.Keywords{"payroll"}},
			{Email: "optout@example.com", NotifyPreference: models.NotifyNone},
			{Email: "all@example.com", NotifyPreference: models.NotifyDaily},
		},
		items: []models.ContentItem{
			{ID: 3, Title: "Data Protection Update", Sectors: []string{"Legal"}},
			{ID: 2, Title: "New Customs Rule", Summary: "includes tax changes"},
			{ID: 1, Title: "Finance Memo", Sectors: []string{"Finance"}},
		},
	}
}

func TestRunSendsDigestsToMatchingSubscribers(t *testing.T) {
	store := runStore()
	client := &fakeClient{}

	summary, err := digest.NewRunner(store, store, client).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, digest.DefaultWindow, store.requestedLimit)
	// scenario D: hr@ has no match and is never sent to
	assert.Equal(t, []string{"legal@example.com", "tax@example.com", "all@example.com"}, client.recipients())
	assert.Equal(t, 5, summary.SubscribersConsidered)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1+1+3, summary.Matched)
	assert.Equal(t, dispatch.BackendProvider, summary.Backend)
	assert.NotEmpty(t, summary.RunID)
	assert.LessOrEqual(t, summary.Sent, summary.SubscribersConsidered)
}

func TestRunIsolatesDispatchFailures(t *testing.T) {
	store := runStore()
	client := &fakeClient{failTo: map[string]bool{"legal@example.com": true}}

	summary, err := digest.NewRunner(store, store, client).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"legal@example.com", "tax@example.com", "all@example.com"}, client.recipients())
	assert.Equal(t, 5, summary.SubscribersConsidered)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, summary.Attempted, summary.Sent+summary.Failed)
}

func TestRunDryRunBackend(t *testing.T) {
	store := runStore()

	summary, err := digest.NewRunner(store, store, dispatch.New(dispatch.Config{})).Run(context.Background())

	require.NoError(t, err)
	// scenario E: every send succeeds through the dry-run backend
	assert.Equal(t, dispatch.BackendDryRun, summary.Backend)
	assert.Equal(t, summary.Attempted, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunFailsWhenLoadingFails(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name  string
		store *fakeStore
	}{
		{name: "subscribers", store: &fakeStore{subscribersErr: boom}},
		{name: "candidates", store: &fakeStore{itemsErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}

			summary, err := digest.NewRunner(tt.store, tt.store, client).Run(context.Background())

			assert.Nil(t, summary)
			var se *models.StoreError
			require.ErrorAs(t, err, &se)
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, client.recipients())
		})
	}
}

func TestRunUsesConfiguredWindow(t *testing.T) {
	store := runStore()
	client := &fakeClient{}

	summary, err := digest.NewRunner(store, store, client, digest.WithWindow(1)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, store.requestedLimit)
	// only the newest item is in the window; tax@ no longer matches
	assert.Equal(t, []string{"legal@example.com", "all@example.com"}, client.recipients())
	assert.Equal(t, 2, summary.Sent)
}

func TestRunWithParallelWorkers(t *testing.T) {
	store := &fakeStore{items: numberedItems(5, "Legal")}
	failTo := map[string]bool{}
	for i := 0; i < 40; i++ {
		email := fmt.Sprintf("sub%02d@example.com", i)
		store.subscribers = append(store.subscribers, models.Subscriber{Email: email, Sector: "Legal"})
		if i%4 == 0 {
			failTo[email] = true
		}
	}
	client := &fakeClient{failTo: failTo}

	summary, err := digest.NewRunner(store, store, client, digest.WithWorkers(8)).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 40, summary.SubscribersConsidered)
	assert.Equal(t, 40, summary.Attempted)
	assert.Equal(t, 30, summary.Sent)
	assert.Equal(t, 10, summary.Failed)
	assert.Len(t, client.recipients(), 40)
	assert.ElementsMatch(t, emailsOf(store.subscribers), client.recipients())
}

func emailsOf(subs []models.Subscriber) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Email)
	}
	return out
}
