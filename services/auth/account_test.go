package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webtor-io/screenvault/services/common"
)

// --- Mock implementations ---

type mockAccount struct {
	id       string
	email    string
	password string
	provider Provider
	md       map[string]any
}

type mockBackend struct {
	mu        sync.Mutex
	accounts  map[string]*mockAccount
	sessions  int
	revoked   []string
	getCalls  int
	existsErr error
	mdErr     error
}

func newMockBackend() *mockBackend {
	return &mockBackend{accounts: map[string]*mockAccount{}}
}

func (m *mockBackend) byEmail(email string) *mockAccount {
	for _, a := range m.accounts {
		if a.email == email {
			return a
		}
	}
	return nil
}

func (m *mockBackend) EmailExists(email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.byEmail(email) != nil, nil
}

func (m *mockBackend) SignIn(email string, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byEmail(email)
	if a == nil || a.password != password {
		return "", ErrWrongCredentials
	}
	return a.id, nil
}

func (m *mockBackend) SignUp(email string, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byEmail(email) != nil {
		return "", ErrEmailExists
	}
	id := "user-" + email
	m.accounts[id] = &mockAccount{id: id, email: email, password: password, provider: ProviderEmail, md: map[string]any{}}
	return id, nil
}

func (m *mockBackend) UpsertThirdPartyUser(provider Provider, providerUserID string, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := string(provider) + "-" + providerUserID
	if a, ok := m.accounts[id]; ok {
		a.email = email
		return id, nil
	}
	m.accounts[id] = &mockAccount{id: id, email: email, provider: provider, md: map[string]any{}}
	return id, nil
}

func (m *mockBackend) GetUser(userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	a, ok := m.accounts[userID]
	if !ok {
		return nil, nil
	}
	u := &User{ID: a.id, Email: a.email, Provider: a.provider}
	u.applyMetadata(a.md)
	return u, nil
}

func (m *mockBackend) UpdateMetadata(userID string, md map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mdErr != nil {
		return m.mdErr
	}
	a, ok := m.accounts[userID]
	if !ok {
		return errors.New("unknown user")
	}
	for k, v := range md {
		a.md[k] = v
	}
	return nil
}

func (m *mockBackend) CreateSession(_ http.ResponseWriter, _ *http.Request, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	return "handle-" + userID, nil
}

func (m *mockBackend) RefreshSession(_ http.ResponseWriter, r *http.Request) (string, string, error) {
	id := r.Header.Get("X-User")
	if id == "" {
		return "", "", errors.New("no refresh token")
	}
	return id, "handle-" + id, nil
}

func (m *mockBackend) RevokeSession(_ http.ResponseWriter, r *http.Request) (string, error) {
	h := r.Header.Get("X-Session")
	if h == "" {
		return "", ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, h)
	return h, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*Event
}

func (m *mockPublisher) Publish(_ context.Context, channel string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if channel != Channel {
		return errors.Errorf("unexpected channel %v", channel)
	}
	m.events = append(m.events, v.(*Event))
	return nil
}

func (m *mockPublisher) last() *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

// --- Test helpers ---

func newTestAuth() (*Auth, *mockBackend, *mockPublisher) {
	b := newMockBackend()
	p := &mockPublisher{}
	return newAuth(b, p), b, p
}

func newRequest() (http.ResponseWriter, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil)
}

// --- Tests ---

func TestSignUp_ThenSignIn(t *testing.T) {
	a, b, p := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	u, err := a.SignUp(ctx, w, r, " Jane Doe ", "Jane@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, "Jane Doe", u.FullName)
	assert.Equal(t, ProviderEmail, u.Provider)

	e := p.last()
	require.NotNil(t, e)
	assert.Equal(t, EventSignedIn, e.Type)
	assert.Equal(t, u.ID, e.UserID)
	assert.Equal(t, "handle-"+u.ID, e.SessionHandle)

	u2, err := a.SignIn(ctx, w, r, "jane@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, u2.ID)
	assert.Equal(t, 2, b.sessions)
}

func TestSignIn_UnknownAccount(t *testing.T) {
	a, b, p := newTestAuth()
	w, r := newRequest()

	_, err := a.SignIn(context.Background(), w, r, "nobody@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindAuth))
	assert.Equal(t, "Account not found. Please sign up first.", common.UserMessage(err, ""))
	assert.Zero(t, b.sessions)
	assert.Nil(t, p.last())
}

func TestSignIn_WrongPassword(t *testing.T) {
	a, _, _ := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	_, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)

	_, err = a.SignIn(ctx, w, r, "jane@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", common.UserMessage(err, ""))
}

func TestSignIn_Validation(t *testing.T) {
	a, _, _ := newTestAuth()
	w, r := newRequest()

	_, err := a.SignIn(context.Background(), w, r, "", "")
	assert.True(t, common.IsKind(err, common.KindValidation))

	_, err = a.SignIn(context.Background(), w, r, "not-an-email", "secret1")
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestSignIn_BackendFailure(t *testing.T) {
	a, b, _ := newTestAuth()
	b.existsErr = errors.New("core unavailable")
	w, r := newRequest()

	_, err := a.SignIn(context.Background(), w, r, "jane@example.com", "secret1")
	assert.True(t, common.IsKind(err, common.KindAuth))
}

func TestSignUp_ExistingAccount(t *testing.T) {
	a, _, _ := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	_, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)

	_, err = a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret2")
	require.Error(t, err)
	assert.Equal(t, "Account already exists. Please sign in instead.", common.UserMessage(err, ""))
}

func TestSignUp_ShortPassword(t *testing.T) {
	a, b, _ := newTestAuth()
	w, r := newRequest()

	_, err := a.SignUp(context.Background(), w, r, "Jane", "jane@example.com", "12345")
	assert.True(t, common.IsKind(err, common.KindValidation))
	assert.Empty(t, b.accounts)
}

func TestSignInWithGoogle(t *testing.T) {
	a, _, p := newTestAuth()
	w, r := newRequest()

	u, err := a.SignInWithGoogle(context.Background(), w, r, &GoogleProfile{
		Sub:     "g-1",
		Email:   "Jane@Gmail.com",
		Name:    "Jane G",
		Picture: "https://example.com/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, u.Provider)
	assert.Equal(t, "jane@gmail.com", u.Email)
	assert.Equal(t, "Jane G", u.FullName)
	assert.Equal(t, "https://example.com/a.png", u.AvatarURL)
	assert.Equal(t, EventSignedIn, p.last().Type)
}

func TestSignOut(t *testing.T) {
	a, b, p := newTestAuth()
	w, r := newRequest()
	r.Header.Set("X-Session", "h1")

	require.NoError(t, a.SignOut(context.Background(), w, r, "u1"))
	assert.Equal(t, []string{"h1"}, b.revoked)

	e := p.last()
	require.NotNil(t, e)
	assert.Equal(t, EventSignedOut, e.Type)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "h1", e.SessionHandle)
	assert.Nil(t, e.User)
}

func TestSignOut_NoSession(t *testing.T) {
	a, _, p := newTestAuth()
	w, r := newRequest()

	require.NoError(t, a.SignOut(context.Background(), w, r, "u1"))
	assert.Nil(t, p.last())
}

func TestRefresh(t *testing.T) {
	a, _, p := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	u, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)

	r.Header.Set("X-User", u.ID)
	got, err := a.Refresh(ctx, w, r)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, EventTokenRefreshed, p.last().Type)

	_, err = a.Refresh(ctx, w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, common.IsKind(err, common.KindAuth))
}

func TestUpdateProfile_DropsCachedUser(t *testing.T) {
	a, b, p := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	u, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)

	_, err = a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	calls := b.getCalls

	_, err = a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, b.getCalls, "second lookup should be cached")

	updated, err := a.UpdateProfile(ctx, u.ID, "Jane Updated")
	require.NoError(t, err)
	assert.Equal(t, "Jane Updated", updated.FullName)

	e := p.last()
	assert.Equal(t, EventUserUpdated, e.Type)
	assert.Equal(t, "Jane Updated", e.User.FullName)

	got, err := a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Updated", got.FullName)
}

func TestUpdateProfile_PrunesOldVersions(t *testing.T) {
	a, _, _ := newTestAuth()
	ctx := context.Background()
	now := time.Now()
	a.now = func() time.Time { return now }

	w, r := newRequest()
	jane, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)
	w, r = newRequest()
	john, err := a.SignUp(ctx, w, r, "John", "john@example.com", "secret1")
	require.NoError(t, err)

	_, err = a.UpdateProfile(ctx, jane.ID, "Jane A")
	require.NoError(t, err)
	janeKey := a.cacheKey(jane.ID)

	now = now.Add(userCacheExpire + time.Second)
	_, err = a.UpdateProfile(ctx, john.ID, "John B")
	require.NoError(t, err)

	assert.Len(t, a.versions, 1)
	assert.NotEqual(t, janeKey, a.cacheKey(jane.ID))

	_, err = a.UpdateProfile(ctx, jane.ID, "Jane C")
	require.NoError(t, err)
	assert.NotEqual(t, janeKey, a.cacheKey(jane.ID), "generations are never reused")

	got, err := a.GetUser(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane C", got.FullName)
}

func TestUpdateProfile_Failure(t *testing.T) {
	a, b, p := newTestAuth()
	b.mdErr = errors.New("core unavailable")

	_, err := a.UpdateProfile(context.Background(), "u1", "Jane")
	assert.True(t, common.IsKind(err, common.KindAuth))
	assert.Nil(t, p.last())

	_, err = a.UpdateProfile(context.Background(), "u1", " ")
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestGetUser_ReturnsCopy(t *testing.T) {
	a, _, _ := newTestAuth()
	ctx := context.Background()
	w, r := newRequest()

	u, err := a.SignUp(ctx, w, r, "Jane", "jane@example.com", "secret1")
	require.NoError(t, err)

	got, err := a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.FullName = "Mallory"

	again, err := a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", again.FullName)
}

func TestNewEvent_SignedOutHasNoUser(t *testing.T) {
	e := NewEvent(EventSignedOut, "u1", "h1", &User{ID: "u1"})
	assert.Nil(t, e.User)
	assert.NotEmpty(t, e.ID)
}
