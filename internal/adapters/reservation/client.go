// Package reservation talks to the booking backend and the relay's token
// endpoint over HTTP.
package reservation

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

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/errs"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type Option func(*base)

func WithHTTPClient(c *http.Client) Option {
	return func(b *base) { b.http = c }
}

type base struct {
	url  string
	http *http.Client
}

func newBase(rawURL string, opts []Option) base {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	b := base{url: strings.TrimRight(rawURL, "/"), http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Client is the ReservationClient of the booking backend.
type Client struct {
	base
}

func NewClient(baseURL string, opts ...Option) *Client {
	return &Client{base: newBase(baseURL, opts)}
}

func sessionPath(displayID string, suffix string) string {
	return "/api/sessions/" + url.PathEscape(displayID) + suffix
}

func (c *Client) GetSessionDetail(ctx context.Context, displayID string) (core.SessionDetail, error) {
	const op = "ReservationClient.GetSessionDetail"
	var out core.SessionDetail
	if err := c.do(ctx, http.MethodGet, sessionPath(displayID, ""), nil, &out); err != nil {
		return core.SessionDetail{}, errs.E(errs.ReasonOf(err), op, "load session detail", err)
	}
	if out.DisplayID == "" {
		out.DisplayID = displayID
	}
	return out, nil
}

func (c *Client) StartSession(ctx context.Context, displayID string) error {
	const op = "ReservationClient.StartSession"
	if err := c.do(ctx, http.MethodPost, sessionPath(displayID, "/start"), nil, nil); err != nil {
		return errs.E(errs.ReasonOf(err), op, "start session", err)
	}
	log.Info().Str("module", "reservation").Str("display_id", displayID).Msg("session started")
	return nil
}

func (c *Client) EndSession(ctx context.Context, displayID string) error {
	const op = "ReservationClient.EndSession"
	if err := c.do(ctx, http.MethodPost, sessionPath(displayID, "/end"), nil, nil); err != nil {
		return errs.E(errs.ReasonOf(err), op, "end session", err)
	}
	log.Info().Str("module", "reservation").Str("display_id", displayID).Msg("session ended")
	return nil
}

// TokenClient is the TokenIssuer backed by the relay's token endpoint.
type TokenClient struct {
	base
}

func NewTokenClient(serverURL string, opts ...Option) *TokenClient {
	return &TokenClient{base: newBase(serverURL, opts)}
}

func (c *TokenClient) IssueTokens(ctx context.Context, displayID string, req core.TokenRequest) (core.Tokens, error) {
	const op = "TokenClient.IssueTokens"
	var out core.Tokens
	if err := c.do(ctx, http.MethodPost, sessionPath(displayID, "/tokens"), req, &out); err != nil {
		reason := errs.ReasonOf(err)
		if reason == errs.Unknown {
			reason = errs.TokenIssuanceFailed
		}
		return core.Tokens{}, errs.E(reason, op, "issue tokens", err)
	}
	if out.MediaToken == "" || out.SignalingToken == "" {
		return core.Tokens{}, errs.E(errs.TokenIssuanceFailed, op, "empty token in reply", nil)
	}
	return out, nil
}
