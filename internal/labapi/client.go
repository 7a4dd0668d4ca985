// Package labapi is a typed client for the lab-course REST backend.
package labapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const problemJSON = "application/problem+json"

// APIError is returned for every non-2xx response. Problem-details bodies
// fill Title and Detail; other bodies fall back to the HTTP status text.
type APIError struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Status   int    `json:"status"`
	Type     string `json:"type,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func (e *APIError) Error() string { return e.Title + ": " + e.Detail }

// StatusCode returns the HTTP status carried by err if it is an *APIError, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Page is the paginated list envelope used by every filter endpoint.
type Page[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration

	// Client-credentials are optional; when TokenURL is empty requests go
	// out unauthenticated.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client
}

type Client struct {
	base *url.URL
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("labapi: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("labapi: parse base url: %w", err)
	}

	h := cfg.HTTPClient
	if h == nil {
		if cfg.TokenURL != "" {
			cc := clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     cfg.TokenURL,
				Scopes:       cfg.Scopes,
			}
			h = cc.Client(context.Background())
		} else {
			h = &http.Client{}
		}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{base: base, http: h}, nil
}

// BaseURL is the backend root every "api/..." path is resolved against.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(path, "/")})
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return decodeError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		ct = "application/json"
	}
	return c.do(ctx, method, path, nil, body, ct, out)
}

func decodeError(res *http.Response) error {
	mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mt == problemJSON {
		var p APIError
		if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&p); err == nil {
			if p.Title == "" {
				p.Title = "Error"
			}
			if p.Detail == "" {
				p.Detail = "An error occurred"
			}
			if p.Status == 0 {
				p.Status = res.StatusCode
			}
			return &p
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return &APIError{
		Title:  http.StatusText(res.StatusCode),
		Detail: res.Status,
		Status: res.StatusCode,
	}
}

// pageQuery builds the shared search/page/pageSize query.
func pageQuery(search string, page, pageSize int, extra map[string]string) url.Values {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	for k, v := range extra {
		if v != "" {
			q.Set(k, v)
		}
	}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", fmt.Sprint(pageSize))
	}
	return q
}
