// Package rosterclient talks to the roster authority over HTTP/JSON. It owns
// no state: every call is one request and one response.
package rosterclient

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

	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/roster"
)

const (
	defaultTimeout     = 15 * time.Second
	maxJSONBody        = 4 << 20
	DefaultMaxArtifact = 32 << 20
)

var errInvalidBaseURL = errors.New("authority base url must be absolute")

// TokenSource returns the bearer token attached to each request. An empty
// token sends no Authorization header.
type TokenSource func() (string, error)

type Client struct {
	BaseURL     string
	HTTP        *http.Client
	Token       TokenSource
	MaxArtifact int64
}

var _ roster.Remote = (*Client)(nil)

func New(baseURL string, httpClient *http.Client, token TokenSource) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse authority url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, errInvalidBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		BaseURL:     strings.TrimRight(parsed.String(), "/"),
		HTTP:        httpClient,
		Token:       token,
		MaxArtifact: DefaultMaxArtifact,
	}, nil
}

type participantEnvelope struct {
	Participant roster.Participant `json:"participant"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Create(ctx context.Context, draft roster.Draft) (roster.Participant, error) {
	var out participantEnvelope
	if err := c.doJSON(ctx, roster.OpCreate, http.MethodPost, "/participants/create", draft, &out); err != nil {
		return roster.Participant{}, err
	}
	return out.Participant, nil
}

func (c *Client) List(ctx context.Context) (roster.Listing, error) {
	var out roster.Listing
	if err := c.doJSON(ctx, roster.OpList, http.MethodGet, "/participants/list-all", nil, &out); err != nil {
		return roster.Listing{}, err
	}
	if out.Participants == nil {
		out.Participants = []roster.Participant{}
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, patch roster.Patch) (roster.Participant, error) {
	var out participantEnvelope
	if err := c.doJSON(ctx, roster.OpUpdate, http.MethodPut, "/participants/"+url.PathEscape(id), patch, &out); err != nil {
		return roster.Participant{}, err
	}
	return out.Participant, nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	return c.doJSON(ctx, roster.OpRemove, http.MethodDelete, "/participants/"+url.PathEscape(id), nil, nil)
}

func (c *Client) FetchArtifact(ctx context.Context, id string) (roster.Artifact, error) {
	op := roster.OpFetchArtifact
	resp, err := c.send(ctx, op, http.MethodGet, "/participants/pdf/"+url.PathEscape(id), nil)
	if err != nil {
		return roster.Artifact{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return roster.Artifact{}, c.remoteError(op, resp)
	}

	limit := c.MaxArtifact
	if limit <= 0 {
		limit = DefaultMaxArtifact
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		observe(op, "transport_error")
		return roster.Artifact{}, &roster.FetchError{Op: op, Err: fmt.Errorf("read artifact: %w", err)}
	}
	if int64(len(data)) > limit {
		observe(op, "decode_error")
		return roster.Artifact{}, &roster.FetchError{Op: op, Err: fmt.Errorf("artifact exceeds %d bytes", limit)}
	}
	observe(op, "ok")
	return roster.Artifact{
		Data:        data,
		Disposition: resp.Header.Get("Content-Disposition"),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) doJSON(ctx context.Context, op roster.Op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &roster.FetchError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	resp, err := c.send(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.remoteError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONBody))
		observe(op, "ok")
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		observe(op, "decode_error")
		return &roster.FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	observe(op, "ok")
	return nil
}

func (c *Client) send(ctx context.Context, op roster.Op, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &roster.FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		token, err := c.Token()
		if err != nil {
			return nil, &roster.FetchError{Op: op, Err: fmt.Errorf("issue token: %w", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	metrics.RemoteDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		observe(op, "transport_error")
		return nil, &roster.FetchError{Op: op, Err: err}
	}
	return resp, nil
}

// remoteError reads the authority's structured failure payload, if any.
func (c *Client) remoteError(op roster.Op, resp *http.Response) error {
	observe(op, "rejected")
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	var body errorBody
	msg := ""
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &body) == nil {
		msg = strings.TrimSpace(body.Message)
		if msg == "" {
			msg = strings.TrimSpace(body.Error)
		}
	}
	return &roster.RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
}

func observe(op roster.Op, outcome string) {
	metrics.RemoteRequests.WithLabelValues(string(op), outcome).Inc()
}
