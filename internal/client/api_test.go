package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"boopsite/internal/auth"
	"boopsite/internal/domain"
	httpapi "boopsite/internal/http"
	"boopsite/internal/repository/sqlite"
	"boopsite/internal/service"
)

// newBackend serves the real router over a fresh store and returns its URL
// along with the user service for seeding.
func newBackend(t *testing.T) (string, service.UserService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))

	logger, _ := logtest.NewNullLogger()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager("client-test-secret", time.Hour)
	users := service.NewUserService(sqlite.NewUserRepository(db), hasher, logger)
	authSvc := service.NewAuthService(users, hasher, tokens)

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(users, authSvc, tokens, logger)))
	t.Cleanup(srv.Close)
	return srv.URL, users
}

func newSession(t *testing.T, baseURL string) (*SessionStore, *APIClient) {
	t.Helper()
	anon := NewAPIClient(baseURL, nil)
	store, err := NewSessionStore(context.Background(), openTestKV(t, filepath.Join(t.TempDir(), "session.db")), anon)
	require.NoError(t, err)
	return store, anon.WithTokenSource(store)
}

func TestAPIClient_RegisterLoginProfile(t *testing.T) {
	ctx := context.Background()
	baseURL, _ := newBackend(t)
	store, api := newSession(t, baseURL)

	require.NoError(t, api.Health(ctx))

	registered, err := api.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, registered.Role)

	_, err = api.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = store.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Nil(t, store.Current())

	_, err = api.Profile(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	user, err := store.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, store.Token())

	profile, err := api.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Profile{ID: registered.ID, Email: "a@x.com", Role: domain.RoleUser}, *profile)

	_, err = api.ListUsers(ctx)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	first := "Ada"
	role := domain.RoleAdmin
	updated, err := api.UpdateProfile(ctx, user.ID, UpdateUserInput{FirstName: &first, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, domain.RoleUser, updated.Role)

	require.NoError(t, store.Logout(ctx))
	_, err = api.Profile(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAPIClient_Fingerprint(t *testing.T) {
	ctx := context.Background()
	baseURL, _ := newBackend(t)
	store, api := newSession(t, baseURL)

	_, err := api.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = api.RegisterFingerprint(ctx, "a@x.com", "nope", "fp-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = store.LoginWithFingerprint(ctx, "fp-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	linked, err := api.RegisterFingerprint(ctx, "a@x.com", "secret1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", linked.Email)

	user, err := store.LoginWithFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, linked.ID, user.ID)
	assert.Equal(t, Decision{Allowed: true}, AuthGuard(store))
}

func TestAPIClient_AdminCRUD(t *testing.T) {
	ctx := context.Background()
	baseURL, users := newBackend(t)
	require.NoError(t, users.EnsureAdmin(ctx, "admin@x.com", "admin123"))

	store, api := newSession(t, baseURL)
	_, err := store.Login(ctx, "admin@x.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, Decision{Allowed: true}, AdminGuard(store))

	created, err := api.CreateUser(ctx, CreateUserInput{Email: "b@x.com", Password: "secret1", LastName: "Bee"})
	require.NoError(t, err)

	list, err := api.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := api.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bee", got.LastName)

	role := domain.RoleAdmin
	updated, err := api.UpdateUser(ctx, created.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())

	bad := domain.Role("root")
	_, err = api.UpdateUser(ctx, created.ID, UpdateUserInput{Role: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, api.DeleteUser(ctx, created.ID))
	_, err = api.GetUser(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, api.DeleteUser(ctx, created.ID), domain.ErrNotFound)
}
