package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boopsite/internal/domain"
)

const defaultTimeout = 15 * time.Second

// User is the public view of an account as the server returns it.
type User struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	IsActive  bool        `json:"isActive"`
	CreatedAt string      `json:"createdAt,omitempty"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Profile is the identity behind the caller's token.
type Profile struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// CreateUserInput is the admin create payload.
type CreateUserInput struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role,omitempty"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
}

// UpdateUserInput carries optional changes; nil fields are not sent.
type UpdateUserInput struct {
	Email     *string      `json:"email,omitempty"`
	Password  *string      `json:"password,omitempty"`
	Role      *domain.Role `json:"role,omitempty"`
	FirstName *string      `json:"firstName,omitempty"`
	LastName  *string      `json:"lastName,omitempty"`
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// APIClient talks to the identity service over HTTP.
type APIClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewAPIClient returns a client for the service at baseURL. A nil httpClient
// gets a default with a request timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithTokenSource returns a copy of c that attaches tokens from ts.
func (c *APIClient) WithTokenSource(ts TokenSource) *APIClient {
	cp := *c
	cp.tokens = ts
	return &cp
}

func (c *APIClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *APIClient) Register(ctx context.Context, in RegisterInput) (*User, error) {
	var resp struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *APIClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) LoginWithFingerprint(ctx context.Context, fingerprintHash string) (*LoginResult, error) {
	var resp LoginResult
	body := map[string]string{"fingerprintHash": fingerprintHash}
	if err := c.do(ctx, http.MethodPost, "/auth/login/fingerprint", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterFingerprint links fingerprintHash to the account after checking
// email and password. The server reports bad credentials in-band; they come
// back here as domain.ErrUnauthorized.
func (c *APIClient) RegisterFingerprint(ctx context.Context, email, password, fingerprintHash string) (*User, error) {
	body := map[string]any{
		"user":        map[string]string{"email": email, "password": password},
		"fingerprint": map[string]string{"fingerprintHash": fingerprintHash},
	}
	var resp struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/fingerprint/register", body, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("%s: %w", resp.Message, domain.ErrUnauthorized)
	}
	return &resp.User, nil
}

func (c *APIClient) Profile(ctx context.Context) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *APIClient) GetUser(ctx context.Context, id string) (*User, error) {
	var resp User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	var resp User
	if err := c.do(ctx, http.MethodPost, "/users", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var resp User
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) UpdateProfile(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var resp User
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/profile", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError turns an error response back into the domain error taxonomy.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = domain.ErrForbidden
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	default:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("%s: %w", body.Error, sentinel)
}
