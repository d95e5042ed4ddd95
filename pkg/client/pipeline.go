package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ErrLoggedOut signals that the session could not be refreshed and the
// store has been cleared. The application should return to its signed-out
// state; retrying the call without a fresh login cannot succeed.
var ErrLoggedOut = errors.New("client: logged out")

// Refresher exchanges a refresh token for a new session upstream.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Session, error)
}

// refreshCall is the shared handle all concurrent 401 victims wait on.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Pipeline wraps an HTTP client with the session protocol: every outbound
// request carries the current access token, and a 401 answer triggers at
// most one refresh-and-retry for that call. Refreshing is single-flight:
// concurrent 401s collapse into one upstream call whose outcome every
// waiter observes.
type Pipeline struct {
	store     *Store
	refresher Refresher
	client    *http.Client

	mu       sync.Mutex
	inflight *refreshCall
}

// NewPipeline builds a pipeline. A nil httpClient uses http.DefaultClient.
func NewPipeline(store *Store, refresher Refresher, httpClient *http.Client) *Pipeline {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Pipeline{store: store, refresher: refresher, client: httpClient}
}

// Do issues the request. Requests with a body must set GetBody (as requests
// built by http.NewRequest with a byte or string reader do) for the retry
// to be possible; otherwise a 401 fails over to the refresh outcome alone.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	if token, ok := p.store.AccessToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// one refresh attempt for this call, then one retry, never more
	drain(resp)
	if err := p.refreshOnce(req.Context()); err != nil {
		return nil, err
	}

	retry, err := rewindRequest(req)
	if err != nil {
		return nil, err
	}
	token, ok := p.store.AccessToken()
	if !ok {
		return nil, ErrLoggedOut
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return p.client.Do(retry)
}

// refreshOnce coordinates the single-flight refresh. The first caller moves
// the pipeline from idle to refreshing and performs the upstream call;
// everyone else waits on the shared handle and adopts its outcome.
func (p *Pipeline) refreshOnce(ctx context.Context) error {
	p.mu.Lock()
	if call := p.inflight; call != nil {
		p.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	p.inflight = call
	p.mu.Unlock()

	call.err = p.refresh(ctx)

	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
	close(call.done)

	return call.err
}

func (p *Pipeline) refresh(ctx context.Context) error {
	refreshToken, generation, ok := p.store.RefreshToken()
	if !ok {
		return ErrLoggedOut
	}

	session, err := p.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		p.store.Clear()
		return ErrLoggedOut
	}

	// loses against a logout that happened while the refresh was in flight
	if err := p.store.ReplaceSession(session, generation); err != nil {
		return ErrLoggedOut
	}
	return nil
}

// rewindRequest clones the request for the retry, rewinding the body when
// possible.
func rewindRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("client: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
