// Package api is the HTTP gateway to the Riberry backend. It translates
// typed requests into calls against the configured origin, attaches the
// session bearer token, and hands back the decoded {data, error} envelope.
// It never retries and never interprets status codes beyond failing
// non-2xx responses.
package api

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
	"time"

	"riberry/internal/session"
)

// Client is the Riberry HTTP API client.
type Client struct {
	BaseURL     string
	Credentials session.Store
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, credentials session.Store) *Client {
	return &Client{
		BaseURL:     baseURL,
		Credentials: credentials,
		Timeout:     10 * time.Second,
	}
}

// Envelope is the {data, error} wrapper every JSON endpoint returns.
type Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

// Err exposes a present error field as a Go error. Absent data with a
// present error is a soft failure the caller decides how to treat.
func (e *Envelope) Err() error {
	if e == nil || len(e.Error) == 0 || string(e.Error) == "null" {
		return nil
	}
	return &EnvelopeError{Raw: e.Error}
}

// EnvelopeError is an application-level failure reported inside a 2xx
// response.
type EnvelopeError struct {
	Raw json.RawMessage
}

func (e *EnvelopeError) Error() string {
	var s string
	if err := json.Unmarshal(e.Raw, &s); err == nil {
		return s
	}
	return string(e.Raw)
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CallOptions tune a single gateway call.
type CallOptions struct {
	// NoAuth skips the Authorization header; calls authenticate by default.
	NoAuth bool
	// Expand names relation paths the backend should inline. Joined into a
	// single comma-separated expand query parameter; omitted when empty.
	Expand []string
	// Body is encoded as the request body; io.Reader bodies are sent as-is
	// with ContentType, anything else is JSON-encoded.
	Body        any
	ContentType string
	ExtraHeader http.Header
	// NoResponse marks endpoints that return no JSON body; Call returns a
	// nil envelope for them.
	NoResponse bool
}

// Call performs one request against the configured origin and decodes the
// response envelope.
func (c *Client) Call(ctx context.Context, method, resource string, opts CallOptions) (*Envelope, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(resource, "/")
	if len(opts.Expand) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "expand=" + url.QueryEscape(strings.Join(opts.Expand, ","))
	}

	var body io.Reader
	contentType := opts.ContentType
	switch b := opts.Body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			return nil, err
		}
		body = &buf
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range opts.ExtraHeader {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !opts.NoAuth {
		token, err := c.Credentials.Get(session.TokenName)
		if err != nil {
			return nil, fmt.Errorf("read session token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if opts.NoResponse {
		return nil, nil
	}
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// PostSession exchanges credentials for a bearer token. Unauthenticated;
// the envelope's error field carries login failures.
func (c *Client) PostSession(ctx context.Context, username, password string) (*Envelope, error) {
	body := map[string]any{
		"username": username,
		"password": password,
	}
	return c.Call(ctx, http.MethodPost, "auth/token", CallOptions{NoAuth: true, Body: body})
}

// SelfProfile fetches the current user's profile.
func (c *Client) SelfProfile(ctx context.Context, expand ...string) (*Envelope, error) {
	return c.Call(ctx, http.MethodGet, "self/", CallOptions{Expand: expand})
}

// Forms lists all forms visible to the user.
func (c *Client) Forms(ctx context.Context, expand ...string) (*Envelope, error) {
	return c.Call(ctx, http.MethodGet, "forms/", CallOptions{Expand: expand})
}

// Form fetches a single form.
func (c *Client) Form(ctx context.Context, id string, expand ...string) (*Envelope, error) {
	resource := fmt.Sprintf("forms/%s", url.PathEscape(id))
	return c.Call(ctx, http.MethodGet, resource, CallOptions{Expand: expand})
}

// JobSummary fetches execution counters for the current user.
func (c *Client) JobSummary(ctx context.Context) (*Envelope, error) {
	return c.Call(ctx, http.MethodGet, "jobs/summary", CallOptions{})
}

// JobFile is one uploaded input file.
type JobFile struct {
	// Name is the input file definition's internal name; it becomes the
	// multipart field name.
	Name     string
	FileName string
	Content  io.Reader
}

// JobRequest describes one job submission.
type JobRequest struct {
	Name       string
	Inputs     map[string]any
	Files      []JobFile
	ExecuteNow bool
}

// CreateJob submits a job for a form as a multipart request: one part per
// input file, a JSON inputs part, the job name, and an optional
// executeNow flag. The endpoint returns no JSON body.
func (c *Client) CreateJob(ctx context.Context, formID string, req JobRequest) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range req.Files {
		part, err := mw.CreateFormFile(f.Name, f.FileName)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copy input file %s: %w", f.Name, err)
		}
	}
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	encoded, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	if err := mw.WriteField("inputs", string(encoded)); err != nil {
		return err
	}
	if err := mw.WriteField("jobName", req.Name); err != nil {
		return err
	}
	if req.ExecuteNow {
		if err := mw.WriteField("executeNow", "1"); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	resource := fmt.Sprintf("forms/%s/jobs", url.PathEscape(formID))
	_, err = c.Call(ctx, http.MethodPost, resource, CallOptions{
		Body:        &buf,
		ContentType: mw.FormDataContentType(),
		NoResponse:  true,
	})
	return err
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
