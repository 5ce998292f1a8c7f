package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"folio/internal/model"
	"folio/internal/store"

	"go.uber.org/zap"
)

// APIError is a non-2xx response from the record service. It unwraps to the store
// sentinel matching its code, so callers can use errors.Is(err, store.ErrCapExceeded)
// regardless of whether the service is local or remote.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: http %d", e.Status)
	}
	return "remote: " + e.Message
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case codeNotFound:
		return store.ErrNotFound
	case codeCapExceeded:
		return store.ErrCapExceeded
	case codeStale:
		return store.ErrStaleCommit
	case codeInvalid:
		return store.ErrInvalidOrder
	}
	if e.Status == http.StatusNotFound {
		return store.ErrNotFound
	}
	return nil
}

// Client talks to a record service started with `folio serve`.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a client for the API rooted at baseURL (e.g. http://127.0.0.1:3335).
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("missing remote url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	u.Path = c.base.Path + "/api/" + strings.Join(segs, "/")
	u.RawPath = ""
	return u.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("remote", zap.String("method", method), zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(b) > 0 && json.Unmarshal(b, &eb) == nil {
			apiErr.Code = eb.Code
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.endpoint("health"), nil, nil)
}

func (c *Client) Collections(ctx context.Context) ([]CollectionSummary, error) {
	var out []CollectionSummary
	err := c.do(ctx, http.MethodGet, c.endpoint("collections"), nil, &out)
	return out, err
}

// CollectionCounts returns item counts per collection key.
func (c *Client) CollectionCounts(ctx context.Context) (map[string]int, error) {
	sums, err := c.Collections(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(sums))
	for _, s := range sums {
		out[s.Key] = s.Items
	}
	return out, nil
}

func (c *Client) LoadCollection(ctx context.Context, key string) (model.Collection, error) {
	var out model.Collection
	err := c.do(ctx, http.MethodGet, c.endpoint("collections", key), nil, &out)
	return out, err
}

func (c *Client) SubmitOrder(ctx context.Context, cm model.OrderCommit) (model.Ack, error) {
	var ack model.Ack
	err := c.do(ctx, http.MethodPut, c.endpoint("collections", cm.Collection, "groups", cm.Group, "order"),
		orderRequest{IDs: cm.IDs, Seq: cm.Seq}, &ack)
	return ack, err
}

func (c *Client) SubmitToggle(ctx context.Context, cm model.ToggleCommit) (model.Ack, error) {
	var ack model.Ack
	v := cm.Value
	err := c.do(ctx, http.MethodPut, c.endpoint("collections", cm.Collection, "items", cm.ItemID, "flags", string(cm.Flag)),
		flagRequest{Value: &v, Seq: cm.Seq}, &ack)
	return ack, err
}

func (c *Client) CreateItem(ctx context.Context, in store.NewItem) (model.Item, error) {
	var out model.Item
	err := c.do(ctx, http.MethodPost, c.endpoint("collections", in.Collection, "items"), in, &out)
	return out, err
}

func (c *Client) UpdateItemText(ctx context.Context, collection, id, title, subtitle string) (model.Item, error) {
	var out model.Item
	err := c.do(ctx, http.MethodPatch, c.endpoint("collections", collection, "items", id),
		updateItemRequest{Title: title, Subtitle: subtitle}, &out)
	return out, err
}

func (c *Client) DeleteItem(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint("collections", collection, "items", id), nil, nil)
}

func (c *Client) Events(ctx context.Context, limit int) ([]model.Event, error) {
	if limit < 0 {
		limit = 0
	}
	u := c.endpoint("events") + "?limit=" + strconv.Itoa(limit)
	var out []model.Event
	err := c.do(ctx, http.MethodGet, u, nil, &out)
	return out, err
}
