package session

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/pubsub"
)

// --- Mock implementations ---

type chanSource struct {
	ch  chan *auth.Event
	err error
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan *auth.Event)}
}

func (m *chanSource) Subscribe(ctx context.Context) (<-chan *auth.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan *auth.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-m.ch:
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// blockingFetcher resolves only when release is called.
type blockingFetcher struct {
	release chan struct{}
	user    *auth.User
	err     error
}

func newBlockingFetcher(u *auth.User, err error) *blockingFetcher {
	return &blockingFetcher{release: make(chan struct{}), user: u, err: err}
}

func (f *blockingFetcher) Fetch(ctx context.Context) (*auth.User, error) {
	select {
	case <-f.release:
		return f.user, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// --- Test helpers ---

func next(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("no state received")
	}
	return State{}
}

// settled reads until the mirror is no longer loading. Intermediate states
// may be coalesced.
func settled(t *testing.T, ch <-chan State) State {
	t.Helper()
	for {
		st := next(t, ch)
		if !st.Loading {
			return st
		}
	}
}

// --- Tests ---

func TestMirror_LoadingUntilFetched(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "u1", Email: "u1@example.com"}, nil)
	m := New(f.Fetch, newChanSource())
	m.Start(context.Background())
	defer m.Stop()

	ch, cancel := m.Watch()
	defer cancel()

	st := next(t, ch)
	assert.True(t, st.Loading)
	assert.Nil(t, st.User)

	close(f.release)
	st = next(t, ch)
	assert.False(t, st.Loading)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)
	assert.Equal(t, "u1", m.State().User.ID)
}

func TestMirror_FetchFailureResolvesToNil(t *testing.T) {
	f := newBlockingFetcher(nil, errors.New("network down"))
	close(f.release)
	m := New(f.Fetch, newChanSource())
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(context.Background())
	defer m.Stop()

	st := settled(t, ch)
	assert.Nil(t, st.User)
}

func TestMirror_NoFetcherResolvesToNil(t *testing.T) {
	m := New(nil, nil)
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(context.Background())
	defer m.Stop()

	st := settled(t, ch)
	assert.Nil(t, st.User)
}

func TestMirror_EventsReplaceUser(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "u1"}, nil)
	close(f.release)
	src := newChanSource()
	m := New(f.Fetch, src)
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(context.Background())
	defer m.Stop()

	st := settled(t, ch)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)

	src.ch <- auth.NewEvent(auth.EventUserUpdated, "u1", "", &auth.User{ID: "u1", FullName: "Jane"})
	st = next(t, ch)
	assert.False(t, st.Loading)
	assert.Equal(t, "Jane", st.User.FullName)

	src.ch <- auth.NewEvent(auth.EventTokenRefreshed, "u1", "h1", &auth.User{ID: "u1", FullName: "Jane R"})
	assert.Equal(t, "Jane R", next(t, ch).User.FullName)

	src.ch <- auth.NewEvent(auth.EventSignedOut, "u1", "h1", nil)
	st = next(t, ch)
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
}

func TestMirror_LateFetchIsDiscarded(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "stale"}, nil)
	src := newChanSource()
	m := New(f.Fetch, src)
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(context.Background())
	defer m.Stop()

	assert.True(t, next(t, ch).Loading)

	src.ch <- auth.NewEvent(auth.EventSignedOut, "u1", "", nil)
	st := next(t, ch)
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)

	close(f.release)
	select {
	case st := <-ch:
		t.Fatalf("unexpected state %+v", st)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Nil(t, m.State().User)
}

func TestMirror_SubscribeFailureStillFetches(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "u1"}, nil)
	close(f.release)
	src := newChanSource()
	src.err = errors.New("redis down")
	m := New(f.Fetch, src)
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(context.Background())
	defer m.Stop()

	st := settled(t, ch)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)
}

func TestMirror_StopClosesWatchers(t *testing.T) {
	f := newBlockingFetcher(nil, nil)
	m := New(f.Fetch, newChanSource())
	m.Start(context.Background())

	ch, _ := m.Watch()
	next(t, ch)

	m.Stop()
	m.Stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel was not closed")
	}

	late, _ := m.Watch()
	_, ok := <-late
	assert.False(t, ok)
}

func TestMirror_StopBeforeStart(t *testing.T) {
	m := New(newBlockingFetcher(nil, nil).Fetch, newChanSource())
	ch, _ := m.Watch()
	next(t, ch)
	m.Stop()
	_, ok := <-ch
	assert.False(t, ok)
	m.Start(context.Background())
}

func TestMirror_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(newBlockingFetcher(nil, nil).Fetch, newChanSource())
	m.Start(ctx)
	ch, _ := m.Watch()
	next(t, ch)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel was not closed")
	}
	m.Stop()
}

func TestMirror_SlowWatcherSeesLatest(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "u1"}, nil)
	close(f.release)
	src := newChanSource()
	m := New(f.Fetch, src)
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return !m.State().Loading
	}, 2*time.Second, 10*time.Millisecond)

	ch, cancel := m.Watch()
	defer cancel()
	for _, name := range []string{"a", "b", "c"} {
		src.ch <- auth.NewEvent(auth.EventUserUpdated, "u1", "", &auth.User{ID: "u1", FullName: name})
	}
	require.Eventually(t, func() bool {
		return m.State().User.FullName == "c"
	}, 2*time.Second, 10*time.Millisecond)

	st := next(t, ch)
	assert.Equal(t, "c", st.User.FullName)
}

func TestMirror_StateIsACopy(t *testing.T) {
	f := newBlockingFetcher(&auth.User{ID: "u1", FullName: "Jane"}, nil)
	close(f.release)
	m := New(f.Fetch, newChanSource())
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return !m.State().Loading
	}, 2*time.Second, 10*time.Millisecond)

	st := m.State()
	st.User.FullName = "Mallory"
	assert.Equal(t, "Jane", m.State().User.FullName)
}

func TestMirror_SignOutWhileViewing(t *testing.T) {
	b := pubsub.NewLocalBroker()
	ctx := context.Background()
	f := newBlockingFetcher(&auth.User{ID: "u1"}, nil)
	close(f.release)
	m := New(f.Fetch, NewAuthStateSource(b, "u1", "h1"))
	ch, cancel := m.Watch()
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	st := settled(t, ch)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)

	// another browser of the same user signs out
	require.NoError(t, b.Publish(ctx, auth.Channel, auth.NewEvent(auth.EventSignedOut, "u1", "h2", nil)))
	// another user signs out
	require.NoError(t, b.Publish(ctx, auth.Channel, auth.NewEvent(auth.EventSignedOut, "u2", "h1", nil)))
	// this session signs out
	require.NoError(t, b.Publish(ctx, auth.Channel, auth.NewEvent(auth.EventSignedOut, "u1", "h1", nil)))

	st = next(t, ch)
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
}
