// Package admin is a Go client for the clower API together with the
// editing state machine an admin interface drives.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eringen/clower/content"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Image is an uploaded file as listed by the API.
type Image struct {
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploadedAt"`
}

// Client calls the JSON API under <base>/api. It keeps the token returned
// by Login and forgets it as soon as the server answers 401.
type Client struct {
	base string
	http *http.Client

	mu    sync.Mutex
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default client with its 30s timeout.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithToken starts the client with a token from an earlier login.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// NewClient returns a Client for the server at baseURL, e.g.
// "http://localhost:3000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token, empty when logged out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// HasToken reports whether the client holds a token.
func (c *Client) HasToken() bool {
	return c.Token() != ""
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", in, &out); err != nil {
		return err
	}
	c.setToken(out.Token)
	return nil
}

// Logout drops the token and clears the preview cookie server side.
func (c *Client) Logout(ctx context.Context) error {
	defer c.setToken("")
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) ListPages(ctx context.Context) ([]content.Page, error) {
	var pages []content.Page
	err := c.do(ctx, http.MethodGet, "/pages", nil, &pages)
	return pages, err
}

func (c *Client) GetPage(ctx context.Context, slug string) (content.Page, error) {
	var p content.Page
	err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(slug), nil, &p)
	return p, err
}

// CreatePage stores p, replacing any page with the same slug.
func (c *Client) CreatePage(ctx context.Context, p content.Page) (content.Page, error) {
	var out content.Page
	err := c.do(ctx, http.MethodPost, "/pages", p, &out)
	return out, err
}

// UpdatePage saves p in place of the page stored under oldSlug, renaming
// it when p.Slug differs.
func (c *Client) UpdatePage(ctx context.Context, oldSlug string, p content.Page) (content.Page, error) {
	var out content.Page
	err := c.do(ctx, http.MethodPut, "/pages/"+url.PathEscape(oldSlug), p, &out)
	return out, err
}

func (c *Client) DeletePage(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodDelete, "/pages/"+url.PathEscape(slug), nil, nil)
}

func (c *Client) GetTheme(ctx context.Context) (content.Theme, error) {
	var t content.Theme
	err := c.do(ctx, http.MethodGet, "/theme", nil, &t)
	return t, err
}

func (c *Client) PutTheme(ctx context.Context, t content.Theme) (content.Theme, error) {
	var out content.Theme
	err := c.do(ctx, http.MethodPut, "/theme", t, &out)
	return out, err
}

func (c *Client) GetSettings(ctx context.Context) (content.PublicSettings, error) {
	var s content.PublicSettings
	err := c.do(ctx, http.MethodGet, "/settings", nil, &s)
	return s, err
}

func (c *Client) PutSettings(ctx context.Context, u content.SettingsUpdate) (content.PublicSettings, error) {
	var s content.PublicSettings
	err := c.do(ctx, http.MethodPut, "/settings", u, &s)
	return s, err
}

// Generate rebuilds the site and returns the number of pages written.
func (c *Client) Generate(ctx context.Context) (int, error) {
	var out struct {
		Pages int `json:"pages"`
	}
	err := c.do(ctx, http.MethodPost, "/generate", nil, &out)
	return out.Pages, err
}

func (c *Client) Deploy(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/deploy", nil, nil)
}

func (c *Client) ListImages(ctx context.Context) ([]Image, error) {
	var images []Image
	err := c.do(ctx, http.MethodGet, "/images", nil, &images)
	return images, err
}

// UploadImage sends r as a multipart upload named filename.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (Image, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return Image{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return Image{}, err
	}
	if err := mw.Close(); err != nil {
		return Image{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/images", &body)
	if err != nil {
		return Image{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var img Image
	err = c.send(req, &img)
	return img, err
}

func (c *Client) DeleteImage(ctx context.Context, filename string) error {
	return c.do(ctx, http.MethodDelete, "/images/"+url.PathEscape(filename), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api"+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.setToken("")
		}
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	switch {
	case json.Unmarshal(raw, &body) == nil && body.Message != "":
		apiErr.Message = body.Message
	case len(bytes.TrimSpace(raw)) > 0:
		apiErr.Message = strings.TrimSpace(string(raw))
	default:
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
