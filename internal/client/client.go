// Package client talks to the CTA backend API.
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
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
)

var ErrNoToken = errors.New("missing authentication token")

// APIError is a non-2xx answer from the backend. Error returns the server
// message unchanged so it can be shown to the user as is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// VerifyResponse is the body of GET /auth/verify.
type VerifyResponse struct {
	Valid bool        `json:"valid"`
	User  models.User `json:"user"`
}

// Client is a thin JSON client for the backend. BaseURL includes the /api
// prefix.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client with a 30 second timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	body := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify checks that token is still accepted and returns its user.
func (c *Client) Verify(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListPhotos returns every inspection record visible to the user.
func (c *Client) ListPhotos(ctx context.Context, token string) ([]models.InspectionRecord, error) {
	var out []models.InspectionRecord
	if err := c.authed(ctx, http.MethodGet, "/cta/photos", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitPhoto sends a completed inspection and returns the stored record.
func (c *Client) SubmitPhoto(ctx context.Context, token string, sub models.PhotoSubmission) (*models.InspectionRecord, error) {
	var out models.InspectionRecord
	if err := c.authed(ctx, http.MethodPost, "/cta/photo", token, sub, &out); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"id":         out.ID,
		"plate":      sub.LicensePlate,
		"photo_size": len(sub.PhotoBase64),
	}).Info("Inspection submitted")
	return &out, nil
}

// SearchByPlate returns the backend records matching plate.
func (c *Client) SearchByPlate(ctx context.Context, token, plate string) ([]models.InspectionRecord, error) {
	var out []models.InspectionRecord
	path := "/cta/search/" + url.PathEscape(plate)
	if err := c.authed(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns the records waiting for a supervisor decision.
func (c *Client) ListPending(ctx context.Context, token string) ([]models.InspectionRecord, error) {
	var out []models.InspectionRecord
	if err := c.authed(ctx, http.MethodGet, "/supervisor/fiches-en-attente", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateRecord approves a pending record.
func (c *Client) ValidateRecord(ctx context.Context, token, id, comment string) (*models.InspectionRecord, error) {
	return c.review(ctx, token, id, "valider", comment)
}

// RejectRecord rejects a pending record with the given reason.
func (c *Client) RejectRecord(ctx context.Context, token, id, reason string) (*models.InspectionRecord, error) {
	return c.review(ctx, token, id, "rejeter", reason)
}

func (c *Client) review(ctx context.Context, token, id, action, comment string) (*models.InspectionRecord, error) {
	var out models.InspectionRecord
	path := "/supervisor/fiches/" + url.PathEscape(id) + "/" + action
	if err := c.authed(ctx, http.MethodPost, path, token, models.ReviewRequest{Comment: comment}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns all accounts. Admin only.
func (c *Client) ListUsers(ctx context.Context, token string) ([]models.User, error) {
	var out []models.User
	if err := c.authed(ctx, http.MethodGet, "/users", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser creates an account. Admin only.
func (c *Client) CreateUser(ctx context.Context, token string, req models.CreateUserRequest) (*models.User, error) {
	var out models.User
	if err := c.authed(ctx, http.MethodPost, "/users", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account. Admin only.
func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	return c.authed(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) authed(ctx context.Context, method, path, token string, body, out interface{}) error {
	if token == "" {
		return ErrNoToken
	}
	return c.do(ctx, method, path, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		log.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Backend request failed")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message": ...} from an error body, falling back
// to the body text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
