package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
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
	"boopsite/internal/repository/sqlite"
	"boopsite/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	users  service.UserService
	tokens *auth.TokenManager
	hook   *logtest.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))

	logger, hook := logtest.NewNullLogger()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := service.NewUserService(sqlite.NewUserRepository(db), hasher, logger)
	authSvc := service.NewAuthService(users, hasher, tokens)

	return &testServer{
		router: NewRouter(NewHandler(users, authSvc, tokens, logger)),
		users:  users,
		tokens: tokens,
		hook:   hook,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// seed creates a user directly through the service and returns a token for it.
func (s *testServer) seed(t *testing.T, email string, role domain.Role) (*domain.User, string) {
	t.Helper()
	user, err := s.users.Create(context.Background(), service.CreateUserInput{
		Email:    email,
		Password: "secret1",
		Role:     role,
	})
	require.NoError(t, err)
	token, err := s.tokens.Issue(user)
	require.NoError(t, err)
	return user, token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[MessageResponse](t, rec)
	assert.Equal(t, "User registered successfully", reg.Message)
	assert.Equal(t, "a@x.com", reg.User.Email)
	assert.Equal(t, "user", reg.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")
	assert.Equal(t, "invalid credentials", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	require.NotEmpty(t, login.AccessToken)

	identity, err := s.tokens.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.Equal(t, reg.User.ID, identity.UserID)
	assert.Equal(t, domain.RoleUser, identity.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)

	body := gin.H{"email": "a@x.com", "password": "secret1"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", "", body).Code)

	rec := s.do(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user with this email already exists", decode[map[string]string](t, rec)["error"])
}

func TestRegister_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", gin.H{"email": "not-an-email", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", "", gin.H{"email": "a@x.com", "password": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadBody_HidesValidatorDetails(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seed(t, "admin@x.com", domain.RoleAdmin)

	cases := []struct {
		method, path, token string
		body                any
	}{
		{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": "a@x.com"}},
		{method: http.MethodPost, path: "/auth/register", body: gin.H{"email": "nope", "password": "secret1"}},
		{method: http.MethodPost, path: "/auth/login/fingerprint", body: gin.H{}},
		{method: http.MethodPost, path: "/users", token: adminToken, body: gin.H{"password": "secret1"}},
		{method: http.MethodPatch, path: "/users/x", token: adminToken, body: "not an object"},
	}
	for _, tc := range cases {
		rec := s.do(t, tc.method, tc.path, tc.token, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
		assert.Equal(t, "invalid request body", decode[map[string]string](t, rec)["error"], tc.path)
		assert.NotContains(t, rec.Body.String(), "Request", tc.path)
		assert.NotContains(t, rec.Body.String(), "validation", tc.path)
	}
}

func TestFingerprintFlow(t *testing.T) {
	s := newTestServer(t)
	user, _ := s.seed(t, "a@x.com", domain.RoleUser)

	rec := s.do(t, http.MethodPost, "/auth/login/fingerprint", "", gin.H{"fingerprintHash": "fp-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad credentials come back in-band with a 200
	rec = s.do(t, http.MethodPost, "/auth/fingerprint/register", "", gin.H{
		"user":        gin.H{"email": "a@x.com", "password": "wrong"},
		"fingerprint": gin.H{"fingerprintHash": "fp-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	failure := decode[FailureResponse](t, rec)
	assert.False(t, failure.Success)
	assert.Equal(t, "Invalid credentials", failure.Message)

	rec = s.do(t, http.MethodPost, "/auth/fingerprint/register", "", gin.H{
		"user":        gin.H{"email": "a@x.com", "password": "secret1"},
		"fingerprint": gin.H{"fingerprintHash": "fp-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Fingerprint registered successfully", decode[MessageResponse](t, rec).Message)
	assert.NotContains(t, rec.Body.String(), "fp-1")

	rec = s.do(t, http.MethodPost, "/auth/login/fingerprint", "", gin.H{"fingerprintHash": "fp-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	assert.Equal(t, user.ID, login.User.ID)

	identity, err := s.tokens.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
}

func TestFingerprintRegister_HashTakenByAnotherAccount(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "a@x.com", domain.RoleUser)
	s.seed(t, "b@x.com", domain.RoleUser)

	register := func(email string) int {
		return s.do(t, http.MethodPost, "/auth/fingerprint/register", "", gin.H{
			"user":        gin.H{"email": email, "password": "secret1"},
			"fingerprint": gin.H{"fingerprintHash": "shared"},
		}).Code
	}
	assert.Equal(t, http.StatusCreated, register("a@x.com"))
	assert.Equal(t, http.StatusConflict, register("b@x.com"))
}

func TestProtectedRoute_TokenStates(t *testing.T) {
	s := newTestServer(t)
	user, token := s.seed(t, "a@x.com", domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/auth/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/auth/profile", "garbage", nil).Code)

	expired, err := auth.NewTokenManager("test-secret", -time.Minute).Issue(user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/auth/profile", expired, nil).Code)

	forged, err := auth.NewTokenManager("other-secret", time.Hour).Issue(user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/auth/profile", forged, nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[IdentityResponse](t, rec)
	assert.Equal(t, IdentityResponse{ID: user.ID, Email: "a@x.com", Role: "user"}, profile)
}

func TestPublicRoute_IgnoresToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "not-a-valid-token", nil).Code)

	rec := s.do(t, http.MethodPost, "/auth/register", "expired.or.bogus", gin.H{"email": "p@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRoutes_RoleGate(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.seed(t, "u@x.com", domain.RoleUser)
	_, adminToken := s.seed(t, "admin@x.com", domain.RoleAdmin)

	rec := s.do(t, http.MethodGet, "/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]UserResponse](t, rec)
	assert.Len(t, users, 2)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users", "", nil).Code)
}

func TestAdminCRUD(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.seed(t, "admin@x.com", domain.RoleAdmin)

	rec := s.do(t, http.MethodPost, "/users", adminToken, gin.H{
		"email": "new@x.com", "password": "secret1", "firstName": "New", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[UserResponse](t, rec)
	assert.Equal(t, "New", created.FirstName)

	rec = s.do(t, http.MethodPost, "/users", adminToken, gin.H{"email": "new@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new@x.com", decode[UserResponse](t, rec).Email)

	rec = s.do(t, http.MethodPatch, "/users/"+created.ID, adminToken, gin.H{"role": "admin", "lastName": "Admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[UserResponse](t, rec)
	assert.Equal(t, "admin", updated.Role)
	assert.Equal(t, "Admin", updated.LastName)

	rec = s.do(t, http.MethodPatch, "/users/"+created.ID, adminToken, gin.H{"role": "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/users/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", decode[map[string]string](t, rec)["error"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/users/"+created.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/users/missing", adminToken, gin.H{"firstName": "x"}).Code)
}

func TestUpdateProfile_OwnershipAndRoleDrop(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.seed(t, "owner@x.com", domain.RoleUser)
	_, otherToken := s.seed(t, "other@x.com", domain.RoleUser)
	_, adminToken := s.seed(t, "admin@x.com", domain.RoleAdmin)
	path := "/users/" + owner.ID + "/profile"

	rec := s.do(t, http.MethodPatch, path, otherToken, gin.H{"firstName": "Mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, ownerToken, gin.H{"firstName": "Olive", "role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[UserResponse](t, rec)
	assert.Equal(t, "Olive", resp.FirstName)
	assert.Equal(t, "user", resp.Role)

	stored, err := s.users.FindByID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, stored.Role)

	rec = s.do(t, http.MethodPatch, path, adminToken, gin.H{"lastName": "Oyl", "role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", decode[UserResponse](t, rec).Role)

	rec = s.do(t, http.MethodPatch, path, ownerToken, gin.H{"email": "other@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPatch, path, "", gin.H{"firstName": "x"}).Code)
}

func TestUpdateProfile_ChangesPassword(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.seed(t, "owner@x.com", domain.RoleUser)

	rec := s.do(t, http.MethodPatch, "/users/"+owner.ID+"/profile", ownerToken, gin.H{"password": "brandnew"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "brandnew")

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "owner@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "owner@x.com", "password": "brandnew"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[LoginResponse](t, rec).AccessToken)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodOptions, "/auth/login", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID_EchoedAndLogged(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	entry := s.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "http request completed", entry.Message)
	assert.Equal(t, "req-42", entry.Data["request_id"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRoutes_ProtectedByDefault(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	for _, r := range h.Routes() {
		if r.Public {
			assert.Empty(t, r.Roles, "%s %s: public routes carry no roles", r.Method, r.Path)
		}
		if r.Path == "/users" || r.Path == "/users/:id" {
			assert.Equal(t, []domain.Role{domain.RoleAdmin}, r.Roles, "%s %s", r.Method, r.Path)
		}
	}
}

func TestAuthorize(t *testing.T) {
	user := domain.Identity{UserID: "1", Role: domain.RoleUser}
	admin := domain.Identity{UserID: "2", Role: domain.RoleAdmin}

	assert.NoError(t, Authorize(user, nil))
	assert.NoError(t, Authorize(admin, []domain.Role{domain.RoleAdmin}))
	assert.ErrorIs(t, Authorize(user, []domain.Role{domain.RoleAdmin}), domain.ErrForbidden)
	assert.NoError(t, Authorize(user, []domain.Role{domain.RoleAdmin, domain.RoleUser}))
	assert.ErrorIs(t, Authorize(domain.Identity{}, []domain.Role{domain.RoleUser}), domain.ErrForbidden)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: true},
		{header: "Bearer", wantErr: true},
		{header: "Bearer   ", wantErr: true},
		{header: "Token abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := bearerToken(tc.header)
		if tc.wantErr {
			assert.Error(t, err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.want, got)
	}
}
