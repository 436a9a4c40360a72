// Package client is the HTTP implementation of engine.Gateway for the role
// assignment REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/engine"
	"github.com/role-assignment-api/internal/models"
)

// maxErrorBody caps how much of an error response is read for the detail
const maxErrorBody = 64 << 10

// APIError is returned for any non-2xx response
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
	// cause maps well-known statuses to engine sentinels
	cause error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the role assignment API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a client for baseURL. token, when set, is sent as a bearer token.
func New(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
			},
		},
		log: log.With().Str("component", "role_api_client").Logger(),
	}
}

var _ engine.Gateway = (*Client)(nil)

// Roles

func (c *Client) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := c.do(ctx, http.MethodGet, "/roles", nil, nil, &roles)
	return roles, err
}

// GetRole fetches a single role
func (c *Client) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	var role models.Role
	if err := c.do(ctx, http.MethodGet, "/roles/"+itoa(id), nil, nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *Client) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := c.do(ctx, http.MethodPost, "/roles", nil, models.RoleRequest{Name: name}, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *Client) RenameRole(ctx context.Context, id int64, name string) (*models.Role, error) {
	var role models.Role
	if err := c.do(ctx, http.MethodPatch, "/roles/"+itoa(id), nil, models.RoleRequest{Name: name}, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/roles/"+itoa(id), nil, nil, nil)
}

// Users

func (c *Client) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	if len(filter.Roles) > 0 {
		q.Set("roles", strings.Join(filter.Roles, ","))
	}
	if filter.FirstLogin != "" {
		q.Set("firstLogin", filter.FirstLogin)
	}
	if filter.ContributionTier != "" {
		q.Set("contribution_tier", filter.ContributionTier)
	}

	var users []models.User
	err := c.do(ctx, http.MethodGet, "/users", q, nil, &users)
	return users, err
}

func (c *Client) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+itoa(id), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/users", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, req *models.UserPatchRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPatch, "/users/"+itoa(id), nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeactivateUser soft-deletes a user
func (c *Client) DeactivateUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/users/"+itoa(id), nil, nil, nil)
}

func (c *Client) UserRoles(ctx context.Context, id int64) ([]models.Role, error) {
	var roles []models.Role
	err := c.do(ctx, http.MethodGet, "/users/"+itoa(id)+"/roles", nil, nil, &roles)
	return roles, err
}

// Attributions

func (c *Client) AssignRole(ctx context.Context, userID, roleID int64) (*models.RoleAttribution, error) {
	var attr models.RoleAttribution
	body := models.AttributionRequest{UserID: userID, RoleID: roleID}
	if err := c.do(ctx, http.MethodPost, "/role-attributions", nil, body, &attr); err != nil {
		return nil, err
	}
	return &attr, nil
}

func (c *Client) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return c.do(ctx, http.MethodDelete, "/users/"+itoa(userID)+"/roles/"+itoa(roleID), nil, nil, nil)
}

// DeleteAttribution deletes an attribution by its own id
func (c *Client) DeleteAttribution(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/role-attributions/"+itoa(id), nil, nil, nil)
}

func (c *Client) ListAttributions(ctx context.Context, status string) ([]models.RoleAttribution, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var attrs []models.RoleAttribution
	err := c.do(ctx, http.MethodGet, "/role-attributions", q, nil, &attrs)
	return attrs, err
}

// ExportAttributions streams GET /role-attributions in format (json, ndjson or csv) to w
func (c *Client) ExportAttributions(ctx context.Context, status, format string, w io.Writer) error {
	q := url.Values{"format": {format}}
	if status != "" {
		q.Set("status", status)
	}

	resp, err := c.send(ctx, http.MethodGet, "/role-attributions", q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	return nil
}

// do sends a request and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Role API request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Detail: readDetail(resp.Body),
	}
	switch {
	case resp.StatusCode == http.StatusConflict && method == http.MethodPost && path == "/role-attributions":
		apiErr.cause = engine.ErrAlreadyAssigned
	case resp.StatusCode == http.StatusNotFound && method == http.MethodDelete && strings.Contains(path, "/roles/") && strings.HasPrefix(path, "/users/"):
		apiErr.cause = engine.ErrNotAssigned
	}
	return nil, apiErr
}

// readDetail extracts {"error": ...} or {"detail": ...} from an error body,
// falling back to the raw text
func readDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(data))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
