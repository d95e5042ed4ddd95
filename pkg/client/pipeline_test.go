package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refresherStub struct {
	calls   int32
	session Session
	err     error
	release chan struct{}
}

func (r *refresherStub) Refresh(_ context.Context, _ string) (Session, error) {
	if r.release != nil {
		<-r.release
	}
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return Session{}, r.err
	}
	return r.session, nil
}

func (r *refresherStub) callCount() int32 {
	return atomic.LoadInt32(&r.calls)
}

// tokenGatedServer answers 200 only to the given access token and counts
// the rejected attempts.
func tokenGatedServer(t *testing.T, acceptToken string, staleHits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+acceptToken {
			atomic.AddInt32(staleHits, 1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func loggedInStore(t *testing.T, access string) *Store {
	t.Helper()
	store := NewStore(storePath(t))
	require.NoError(t, store.Set(testIdentity(), testSession(access)))
	return store
}

func TestPipelineAttachesAccessToken(t *testing.T) {
	var staleHits int32
	server := tokenGatedServer(t, "a1", &staleHits)

	store := loggedInStore(t, "a1")
	pipeline := NewPipeline(store, &refresherStub{}, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := pipeline.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&staleHits))
}

func TestPipelineRefreshesAndRetriesOn401(t *testing.T) {
	var staleHits int32
	server := tokenGatedServer(t, "a2", &staleHits)

	store := loggedInStore(t, "a1")
	refresher := &refresherStub{session: testSession("a2")}
	pipeline := NewPipeline(store, refresher, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := pipeline.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), refresher.callCount())

	token, ok := store.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "a2", token, "the refreshed pair must be persisted")
}

func TestPipelineRetriesAtMostOnce(t *testing.T) {
	// the server keeps answering 401 even after a successful refresh
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	store := loggedInStore(t, "a1")
	refresher := &refresherStub{session: testSession("a2")}
	pipeline := NewPipeline(store, refresher, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := pipeline.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode,
		"the second 401 is surfaced, not retried again")
	assert.Equal(t, int32(1), refresher.callCount())
}

func TestPipelineReplaysRequestBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	store := loggedInStore(t, "a1")
	pipeline := NewPipeline(store, &refresherStub{session: testSession("a2")}, nil)

	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	resp, err := pipeline.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, `{"k":"v"}`, bodies[1], "the retry must carry the original body")
}

func TestPipelineRefreshFailureLogsOut(t *testing.T) {
	var staleHits int32
	server := tokenGatedServer(t, "a2", &staleHits)

	store := loggedInStore(t, "a1")
	refresher := &refresherStub{err: errors.New("refresh token expired")}
	pipeline := NewPipeline(store, refresher, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = pipeline.Do(req)
	assert.ErrorIs(t, err, ErrLoggedOut)

	_, _, ok := store.Snapshot()
	assert.False(t, ok, "a failed refresh must clear the store")
}

func TestConcurrent401sCollapseIntoOneRefresh(t *testing.T) {
	const callers = 5

	var staleHits int32
	server := tokenGatedServer(t, "a2", &staleHits)

	store := loggedInStore(t, "a1")
	refresher := &refresherStub{
		session: testSession("a2"),
		release: make(chan struct{}),
	}
	pipeline := NewPipeline(store, refresher, nil)

	var wg sync.WaitGroup
	results := make([]int, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			if err != nil {
				return
			}
			resp, err := pipeline.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			results[i] = resp.StatusCode
		}(i)
	}

	// hold the refresh until every caller has been bounced with the stale
	// token, so all of them land in the same refresh cycle
	deadline := time.After(5 * time.Second)
	for atomic.LoadInt32(&staleHits) < callers {
		select {
		case <-deadline:
			t.Fatal("callers never reached the server")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.callCount(),
		"concurrent 401s must trigger exactly one upstream refresh")
	for i, status := range results {
		assert.Equal(t, http.StatusOK, status, "caller %d should succeed after the shared refresh", i)
	}
}
