package shootboardsdk

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

	"github.com/tidwall/gjson"

	"shootboard/internal/domain"
)

// ErrNotFound is matched by APIError values with a 404 status.
var ErrNotFound = errors.New("not found")

// Client is the shootboard HTTP API client. It satisfies the engine's
// Gateway contract.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Event is one entry of the server's write log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	if gjson.ValidBytes(body) {
		e.Code = gjson.GetBytes(body, "error.code").String()
		e.Message = gjson.GetBytes(body, "error.message").String()
	}
	return e
}

// List returns every record of a kind in store order.
func (c *Client) List(ctx context.Context, k domain.Kind) ([]domain.Record, error) {
	var resp []domain.Record
	err := c.do(ctx, http.MethodGet, string(k), nil, &resp)
	return resp, err
}

// Insert creates a record and discards the assigned id.
func (c *Client) Insert(ctx context.Context, k domain.Kind, rec domain.Record) error {
	_, err := c.Create(ctx, k, rec)
	return err
}

// Create creates a record and returns the id the server assigned.
func (c *Client) Create(ctx context.Context, k domain.Kind, rec domain.Record) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, string(k), rec, &resp)
	return resp.ID, err
}

// Update sends a partial field set.
func (c *Client) Update(ctx context.Context, k domain.Kind, id string, fields domain.Record) error {
	if fields == nil {
		fields = domain.Record{}
	}
	return c.do(ctx, http.MethodPatch, itemPath(k, id), fields, nil)
}

func (c *Client) Delete(ctx context.Context, k domain.Kind, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(k, id), nil, nil)
}

// Events returns recent writes, newest first. Empty filters match all.
func (c *Client) Events(ctx context.Context, limit int, entityKind, entityID string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if entityKind != "" {
		q.Set("entity_kind", entityKind)
	}
	if entityID != "" {
		q.Set("entity_id", entityID)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func itemPath(k domain.Kind, id string) string {
	return fmt.Sprintf("%s/%s", k, url.PathEscape(id))
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	if basePath == "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + basePath
}
