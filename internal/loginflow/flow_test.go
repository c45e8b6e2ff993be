package loginflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/credentials"
	"github.com/florianilch/smartrade/internal/loginflow"
	"github.com/florianilch/smartrade/internal/session"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

var validCreds = broker.Credentials{ClientCode: "A123", Password: "secret-pass", TOTP: "123456"}

const successBody = `{"status":true,"message":"SUCCESS","errorcode":"","data":{"jwtToken":"jwt","refreshToken":"refresh","feedToken":"feed"}}`

func newSession(t *testing.T) *session.Session {
	t.Helper()
	store, err := tokenstore.NewKVStore("memory", tokenstore.NewMemoryBackend())
	require.NoError(t, err)
	s, err := session.New(store)
	require.NoError(t, err)
	s.Initialize(context.Background())
	return s
}

func newBroker(t *testing.T, calls *atomic.Int32, body string) *broker.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := broker.New(broker.Config{BaseURL: server.URL})
	require.NoError(t, err)
	return client
}

func TestSubmitSuccess(t *testing.T) {
	var calls atomic.Int32
	sess := newSession(t)
	flow, err := loginflow.New(newBroker(t, &calls, successBody), sess)
	require.NoError(t, err)

	require.NoError(t, flow.Submit(context.Background(), validCreds))
	require.True(t, sess.IsAuthenticated())
	tokens, ok := sess.CurrentTokens()
	require.True(t, ok)
	require.Equal(t, "A123", tokens.UserID)
	require.False(t, flow.InFlight())
}

func TestSubmitShortTOTPNeverCallsBroker(t *testing.T) {
	var calls atomic.Int32
	sess := newSession(t)
	flow, err := loginflow.New(newBroker(t, &calls, successBody), sess)
	require.NoError(t, err)

	err = flow.Submit(context.Background(), broker.Credentials{ClientCode: "A123", Password: "secret-pass", TOTP: "12345"})
	require.ErrorIs(t, err, broker.ErrValidation)
	require.Equal(t, loginflow.MessageInvalidCredentials, loginflow.UserMessage(err))
	require.Zero(t, calls.Load())
	require.False(t, sess.IsAuthenticated())
}

func TestSubmitRejectedIsSanitized(t *testing.T) {
	var calls atomic.Int32
	sess := newSession(t)
	body := `{"status":false,"message":"Internal detail: account AB123 locked","errorcode":"AB1050"}`
	flow, err := loginflow.New(newBroker(t, &calls, body), sess)
	require.NoError(t, err)

	err = flow.Submit(context.Background(), validCreds)
	require.ErrorIs(t, err, broker.ErrRejected)
	msg := loginflow.UserMessage(err)
	require.Equal(t, loginflow.MessageInvalidCredentials, msg)
	require.NotContains(t, msg, "locked")
	require.False(t, sess.IsAuthenticated())
}

// blockingAuth blocks until released so a second submission overlaps.
type blockingAuth struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAuth) Login(ctx context.Context, creds broker.Credentials) (credentials.TokenBundle, error) {
	close(b.entered)
	<-b.release
	return credentials.TokenBundle{JWTToken: "a", RefreshToken: "b", FeedToken: "c", UserID: creds.ClientCode}, nil
}

func TestSubmitSingleFlight(t *testing.T) {
	auth := &blockingAuth{entered: make(chan struct{}), release: make(chan struct{})}
	sess := newSession(t)
	flow, err := loginflow.New(auth, sess)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- flow.Submit(context.Background(), validCreds) }()

	<-auth.entered
	require.True(t, flow.InFlight())

	err = flow.Submit(context.Background(), validCreds)
	require.ErrorIs(t, err, loginflow.ErrLoginInProgress)
	require.Equal(t, loginflow.MessageInProgress, loginflow.UserMessage(err))

	close(auth.release)
	require.NoError(t, <-done)
	require.False(t, flow.InFlight())
	require.True(t, sess.IsAuthenticated())
}

func TestSubmitAttemptLimit(t *testing.T) {
	var calls atomic.Int32
	body := `{"status":false,"message":"bad","errorcode":"AB1050"}`
	flow, err := loginflow.New(newBroker(t, &calls, body), newSession(t), loginflow.WithAttemptLimit(2, time.Hour))
	require.NoError(t, err)

	ctx := context.Background()
	require.ErrorIs(t, flow.Submit(ctx, validCreds), broker.ErrRejected)
	require.ErrorIs(t, flow.Submit(ctx, validCreds), broker.ErrRejected)

	err = flow.Submit(ctx, validCreds)
	require.ErrorIs(t, err, loginflow.ErrTooManyAttempts)
	require.Equal(t, loginflow.MessageTooManyAttempts, loginflow.UserMessage(err))
	require.EqualValues(t, 2, calls.Load())
}

// failingSession fails every login with a storage error.
type failingSession struct{}

func (failingSession) Login(context.Context, credentials.TokenBundle) error {
	return tokenstore.ErrStorageUnavailable
}

func TestSubmitStorageFailure(t *testing.T) {
	var calls atomic.Int32
	flow, err := loginflow.New(newBroker(t, &calls, successBody), failingSession{})
	require.NoError(t, err)

	err = flow.Submit(context.Background(), validCreds)
	require.ErrorIs(t, err, tokenstore.ErrStorageUnavailable)
	require.Equal(t, loginflow.MessageSaveFailed, loginflow.UserMessage(err))
}

func TestUserMessage(t *testing.T) {
	require.Empty(t, loginflow.UserMessage(nil))
	require.Equal(t, loginflow.MessageLoginFailed, loginflow.UserMessage(broker.ErrNetwork))
	require.Equal(t, loginflow.MessageLoginFailed, loginflow.UserMessage(errors.New("boom")))
	require.Equal(t, loginflow.MessageLoginFailed, loginflow.UserMessage(credentials.ErrInvalidBundle))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := loginflow.New(nil, newSession(t))
	require.Error(t, err)

	var calls atomic.Int32
	_, err = loginflow.New(newBroker(t, &calls, successBody), nil)
	require.Error(t, err)
}
