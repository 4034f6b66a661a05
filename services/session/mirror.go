package session

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/services/auth"
)

// State is a snapshot of who is signed in.
type State struct {
	User    *auth.User `json:"user"`
	Loading bool       `json:"loading"`
}

// Fetcher resolves the current user once at start. A nil Fetcher resolves
// to no user.
type Fetcher func(ctx context.Context) (*auth.User, error)

// Source streams auth events until ctx is done.
type Source interface {
	Subscribe(ctx context.Context) (<-chan *auth.Event, error)
}

// Mirror keeps the current user in sync with auth events. All state changes
// are applied by a single goroutine and broadcast to watchers; a slow
// watcher only ever sees the latest state.
type Mirror struct {
	fetch    Fetcher
	src      Source
	mu       sync.Mutex
	state    State
	watchers map[chan State]struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
	stopped  bool
}

func New(fetch Fetcher, src Source) *Mirror {
	return &Mirror{
		fetch:    fetch,
		src:      src,
		state:    State{Loading: true},
		watchers: map[chan State]struct{}{},
	}
}

// Start begins the initial fetch and the event subscription. It returns
// immediately; calling it more than once has no effect.
func (s *Mirror) Start(ctx context.Context) {
	s.start.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.done = make(chan struct{})
		s.mu.Unlock()

		var events <-chan *auth.Event
		if s.src != nil {
			ev, err := s.src.Subscribe(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to subscribe to auth events")
			} else {
				events = ev
			}
		}

		fetched := make(chan *auth.User, 1)
		go func() {
			if s.fetch == nil {
				fetched <- nil
				return
			}
			u, err := s.fetch(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to fetch current user")
				u = nil
			}
			fetched <- u
		}()

		go s.run(ctx, events, fetched)
	})
}

func (s *Mirror) run(ctx context.Context, events <-chan *auth.Event, fetched <-chan *auth.User) {
	defer close(s.done)
	defer s.closeWatchers()
	applied := false
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-fetched:
			fetched = nil
			// an event already carried a newer user
			if applied {
				continue
			}
			s.set(State{User: u})
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			applied = true
			s.set(State{User: userOf(e)})
		}
	}
}

func userOf(e *auth.Event) *auth.User {
	if e == nil || e.Type == auth.EventSignedOut || !e.User.HasAuth() {
		return nil
	}
	return e.User.Clone()
}

func (s *Mirror) set(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.state = st
	for ch := range s.watchers {
		offer(ch, st)
	}
}

// offer replaces whatever the watcher has not consumed yet.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- st
}

func (s *Mirror) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:    s.state.User.Clone(),
		Loading: s.state.Loading,
	}
}

// Watch returns a channel that first yields the current state and then every
// change. The channel is closed by Stop or by the returned cancel func.
func (s *Mirror) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		close(ch)
		return ch, func() {}
	}
	ch <- State{User: s.state.User.Clone(), Loading: s.state.Loading}
	s.watchers[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}
}

func (s *Mirror) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = map[chan State]struct{}{}
}

// Stop cancels the subscription and closes every watcher. It is safe to call
// more than once and before Start.
func (s *Mirror) Stop() {
	s.stop.Do(func() {
		s.start.Do(func() {})
		s.mu.Lock()
		cancel, done := s.cancel, s.done
		s.mu.Unlock()
		if cancel == nil {
			s.closeWatchers()
			return
		}
		cancel()
		<-done
	})
}
