package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"clipshelf/internal/api"
	"clipshelf/internal/config"
)

// ErrServerUnreachable marks transport failures reaching clipshelfd.
var ErrServerUnreachable = errors.New("clipshelfd unreachable")

// HTTPDoer describes the HTTP client used to reach the server.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues API calls on behalf of one caller.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
}

// New builds a Client for baseURL. A nil doer uses http.DefaultClient.
func New(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    doer,
	}
}

// NewFromConfig builds a Client for the configured server, seeded with any
// token saved for that server.
func NewFromConfig(cfg *config.Config, store *FileTokenStore) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client: config is nil")
	}
	c := New(cfg.Client.ServerURL, nil)
	if store == nil {
		return c, nil
	}
	saved, err := store.Load()
	if err != nil {
		return nil, err
	}
	if saved.Server == c.baseURL {
		c.token = saved.Token
	}
	return c, nil
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the session token attached to requests, if any.
func (c *Client) Token() string {
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// Status fetches server and store health.
func (c *Client) Status(ctx context.Context) (*api.ServerStatus, error) {
	var resp api.ServerStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges the administrator credential for a session token and
// attaches it to subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	req := api.LoginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// List returns every clip in insertion order.
func (c *Client) List(ctx context.Context) ([]api.Clip, error) {
	var resp api.ClipListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/clips", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Clips, nil
}

// Get returns one clip.
func (c *Client) Get(ctx context.Context, id int64) (*api.Clip, error) {
	var resp api.ClipResponse
	if err := c.doJSON(ctx, http.MethodGet, clipPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Clip, nil
}

// Edit replaces a clip's name and description.
func (c *Client) Edit(ctx context.Context, id int64, name, description string) (*api.Clip, error) {
	var resp api.ClipResponse
	req := api.EditRequest{Name: name, Description: description}
	if err := c.doJSON(ctx, http.MethodPut, clipPath(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Clip, nil
}

// Delete removes a clip and returns what was removed.
func (c *Client) Delete(ctx context.Context, id int64) (*api.Clip, error) {
	var resp api.DeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, clipPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Deleted, nil
}

// Upload describes a clip to ingest. Size is the payload length, or -1 when
// unknown.
type Upload struct {
	Name        string
	Description string
	Filename    string
	Body        io.Reader
	Size        int64
}

// Upload streams a new clip to the server without buffering the payload.
func (c *Client) Upload(ctx context.Context, upload Upload) (*api.Clip, error) {
	if upload.Body == nil {
		return nil, errors.New("upload body is nil")
	}
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(writer, upload))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/clips", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp api.ClipResponse
	err = c.do(req, &resp)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &resp.Clip, nil
}

func writeUpload(writer *multipart.Writer, upload Upload) error {
	if err := writer.WriteField(api.UploadFieldName, upload.Name); err != nil {
		return err
	}
	if err := writer.WriteField(api.UploadFieldDescription, upload.Description); err != nil {
		return err
	}
	if upload.Size >= 0 {
		if err := writer.WriteField(api.UploadFieldSize, strconv.FormatInt(upload.Size, 10)); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile(api.UploadFieldFile, upload.Filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return err
	}
	return writer.Close()
}

// Content is an open clip payload. The caller must close Body.
type Content struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	UUID        string
}

// Fetch opens a clip's payload for streaming.
func (c *Client) Fetch(ctx context.Context, id int64) (*Content, error) {
	req, err := c.newRequest(ctx, http.MethodGet, clipPath(id)+"/content", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return &Content{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		UUID:        resp.Header.Get("X-Clip-UUID"),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
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
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w at %s: %w", ErrServerUnreachable, c.baseURL, err)
}

// decodeError rebuilds the server's classified error from its payload.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload api.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Code == "" {
		message := strings.TrimSpace(string(raw))
		if message == "" {
			message = resp.Status
		}
		return api.ErrorFromCode(api.CodeInternal, fmt.Sprintf("server returned %d: %s", resp.StatusCode, message))
	}
	return api.ErrorFromCode(payload.Error.Code, payload.Error.Message)
}

func clipPath(id int64) string {
	return "/api/clips/" + strconv.FormatInt(id, 10)
}
