// Package client talks to a running pdfview daemon over its REST API.
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

	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/viewer"
)

// ErrUnavailable is returned when the daemon cannot be reached.
var ErrUnavailable = errors.New("pdfview daemon is not running")

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Client is a REST client for the daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the daemon at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// List returns every open viewer.
func (c *Client) List(ctx context.Context) ([]viewer.State, error) {
	var out []viewer.State
	err := c.do(ctx, http.MethodGet, "/api/viewers", nil, &out)
	return out, err
}

// Open shows a document, optionally at a named destination.
func (c *Client) Open(ctx context.Context, path, hash string) (viewer.State, error) {
	var out viewer.State
	err := c.do(ctx, http.MethodPost, "/api/viewers", viewer.OpenRequest{Path: path, Hash: hash}, &out)
	return out, err
}

// Close destroys a viewer.
func (c *Client) Close(ctx context.Context, tag string) error {
	return c.do(ctx, http.MethodDelete, "/api/viewers/"+url.PathEscape(tag), nil, nil)
}

// Refresh reloads a viewer's document content.
func (c *Client) Refresh(ctx context.Context, tag string) error {
	return c.do(ctx, http.MethodPost, "/api/viewers/"+url.PathEscape(tag)+"/refresh", nil, nil)
}

// ReloadAll fully reloads every viewer.
func (c *Client) ReloadAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/viewers/reload-all", nil, nil)
}

// Outline returns a viewer's document outline.
func (c *Client) Outline(ctx context.Context, tag string) ([]protocol.OutlineNode, error) {
	var out []protocol.OutlineNode
	err := c.do(ctx, http.MethodGet, "/api/viewers/"+url.PathEscape(tag)+"/outline", nil, &out)
	return out, err
}

// ScrollToDestination scrolls a viewer to a named destination.
func (c *Client) ScrollToDestination(ctx context.Context, tag, dest string) (bool, error) {
	var out viewer.NavigateResponse
	err := c.do(ctx, http.MethodPost, "/api/viewers/"+url.PathEscape(tag)+"/destination", viewer.DestinationRequest{Dest: dest}, &out)
	return out.Sent, err
}

// ForwardSync scrolls the viewer of req.PDF to a source position.
func (c *Client) ForwardSync(ctx context.Context, req viewer.SyncRequest) (viewer.SyncResponse, error) {
	var out viewer.SyncResponse
	err := c.do(ctx, http.MethodPost, "/api/sync/forward", req, &out)
	return out, err
}

// BuildStart pauses auto refresh for viewers built from path.
func (c *Client) BuildStart(ctx context.Context, path string) ([]viewer.State, error) {
	var out []viewer.State
	err := c.do(ctx, http.MethodPost, "/api/build/start", viewer.FileRequest{Path: path}, &out)
	return out, err
}

// BuildFinish resumes auto refresh for viewers built from path.
func (c *Client) BuildFinish(ctx context.Context, path string) ([]viewer.State, error) {
	var out []viewer.State
	err := c.do(ctx, http.MethodPost, "/api/build/finish", viewer.FileRequest{Path: path}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
