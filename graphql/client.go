// Package graphql sends cache keys to the _updateCache mutation of a GraphQL API.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/cacherefresh"
)

// DefaultMutation takes the keys as a variable; they are never spliced into the query text.
const DefaultMutation = `mutation _updateCache($keys: [String!]!) { _updateCache(keys: $keys) }`

// maxErrorBody caps how much of a non-2xx body is kept in StatusError.
const maxErrorBody = 4 << 10

var ErrNoEndpoint = errors.New("graphql: endpoint is required")

// Authorizer returns the value of the Authorization header.
// auth.ServiceToken implements it.
type Authorizer interface {
	Authorization(ctx context.Context) (string, error)
}

type Config struct {
	Endpoint   string       // required, e.g. https://api.serlo.org/graphql
	HTTPClient *http.Client // nil => http.DefaultClient
	Auth       Authorizer   // nil => no Authorization header
	Mutation   string       // "" => DefaultMutation
}

// Client is a cacherefresh.Invalidator backed by one GraphQL mutation.
type Client struct {
	endpoint string
	hc       *http.Client
	auth     Authorizer
	mutation string
}

var _ cacherefresh.Invalidator = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	c := &Client{
		endpoint: cfg.Endpoint,
		hc:       cfg.HTTPClient,
		auth:     cfg.Auth,
		mutation: cfg.Mutation,
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.mutation == "" {
		c.mutation = DefaultMutation
	}
	return c, nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Invalidate posts keys to the mutation. Transport failures, non-2xx statuses,
// unreadable bodies and GraphQL errors all come back as non-nil errors.
func (c *Client) Invalidate(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return cacherefresh.ErrEmptyKeys
	}
	body, err := json.Marshal(request{Query: c.mutation, Variables: map[string]any{"keys": keys}})
	if err != nil {
		return fmt.Errorf("graphql: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		h, err := c.auth.Authorization(ctx)
		if err != nil {
			return fmt.Errorf("graphql: authorization: %w", err)
		}
		req.Header.Set("Authorization", h)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("graphql: read response: %w", err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)
	if decodeErr == nil && len(out.Errors) > 0 {
		return newResponseError(resp.StatusCode, out.Errors)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if decodeErr != nil {
		return fmt.Errorf("graphql: decode response: %w", decodeErr)
	}
	return nil
}
