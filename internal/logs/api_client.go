package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"holocap/internal/api"
)

// ErrAPIUnavailable reports that no HTTP API is configured or listening.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StatusError is a non-2xx answer from /api/logs.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GET /api/logs: HTTP %d", e.Code)
	}
	return fmt.Sprintf("GET /api/logs: HTTP %d: %s", e.Code, e.Message)
}

// StreamClient reads daemon log events over HTTP.
type StreamClient struct {
	endpoint url.URL
	token    string
	hc       *http.Client
}

// StreamQuery selects a window of events. Since is the last sequence the
// caller has seen; Tail asks for the newest Limit events instead.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	Recording string
	Stream    string
}

func (q StreamQuery) encode() string {
	v := make(url.Values)
	if q.Since > 0 {
		v.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	setFlag(v, "follow", q.Follow)
	setFlag(v, "tail", q.Tail)
	setTrimmed(v, "component", q.Component)
	setTrimmed(v, "recording", q.Recording)
	setTrimmed(v, "stream", q.Stream)
	return v.Encode()
}

func setFlag(v url.Values, key string, on bool) {
	if on {
		v.Set(key, "1")
	}
}

func setTrimmed(v url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		v.Set(key, value)
	}
}

// NewStreamClient accepts host:port or a full URL. An empty bind yields a
// nil client whose Fetch reports ErrAPIUnavailable.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	u, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("api bind %q: %w", bind, err)
	}
	// Follow requests hold the connection open, so the client has no timeout.
	return &StreamClient{
		endpoint: url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/api/logs"},
		token:    strings.TrimSpace(token),
		hc:       &http.Client{},
	}, nil
}

// Fetch performs one /api/logs request.
func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	var out api.LogStreamResponse
	if c == nil {
		return out, ErrAPIUnavailable
	}

	target := c.endpoint
	target.RawQuery = q.encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	if resp.StatusCode/100 != 2 {
		var body api.ErrorResponse
		_ = dec.Decode(&body)
		return out, &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode log events: %w", err)
	}
	return out, nil
}

// IsAPIUnavailable separates "nothing is listening" from failures reported
// by a live API.
func IsAPIUnavailable(err error) bool {
	if errors.Is(err, ErrAPIUnavailable) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
