// Package cinevec provides a Go client for the cinevec recommendation API.
//
//	client := cinevec.New("http://localhost:8080", cinevec.WithAPIKey("secret"))
//	ids, _ := client.RecommendForUser(ctx, 42)
//	hits, _ := client.Search(ctx, "movie_collection", "space heist", 10)
package cinevec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors mapped from API error codes. Use errors.Is() to check.
var (
	ErrNotFound          = errors.New("cinevec: not found")
	ErrNoSignal          = errors.New("cinevec: no favourite signal among similar users")
	ErrDimMismatch       = errors.New("cinevec: vector dimension mismatch")
	ErrUnauthorized      = errors.New("cinevec: unauthorized")
	ErrServerUnavailable = errors.New("cinevec: service unavailable")
)

// Client is the cinevec API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the X-API-Key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type recommendationsResponse struct {
	IDs []int64 `json:"ids"`
}

// RecommendForMovie returns movies similar to the given one, most similar first.
func (c *Client) RecommendForMovie(ctx context.Context, movieID int64) ([]int64, error) {
	var resp recommendationsResponse
	path := "/recommendations/movies/" + strconv.FormatInt(movieID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// RecommendForUser returns movie recommendations for a user, best first.
func (c *Client) RecommendForUser(ctx context.Context, userID int64) ([]int64, error) {
	var resp recommendationsResponse
	path := "/recommendations/users/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Hit is one ranked search result.
type Hit struct {
	ID      int64   `json:"id"`
	Score   float32 `json:"score"`
	Payload any     `json:"payload,omitempty"`
}

type searchRequest struct {
	Collection string    `json:"collection"`
	Query      string    `json:"query,omitempty"`
	Vector     []float32 `json:"vector,omitempty"`
	TopK       int       `json:"top_k,omitempty"`
}

type searchResponse struct {
	Items []Hit `json:"items"`
	Total int   `json:"total"`
}

// Search runs a text similarity search over a collection.
func (c *Client) Search(ctx context.Context, collection, query string, topK int) ([]Hit, error) {
	return c.search(ctx, searchRequest{Collection: collection, Query: query, TopK: topK})
}

// SearchVector runs a similarity search with an already prepared vector.
func (c *Client) SearchVector(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	return c.search(ctx, searchRequest{Collection: collection, Vector: vector, TopK: topK})
}

func (c *Client) search(ctx context.Context, req searchRequest) ([]Hit, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Healthy reports whether the service considers itself healthy.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return false, fmt.Errorf("cinevec: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("cinevec: health request: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cinevec: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cinevec: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cinevec: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cinevec: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	msg := apiErr.Message
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrNoSignal, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrServerUnavailable, msg)
	case http.StatusBadRequest:
		if apiErr.Code == "vector_dim_mismatch" {
			return fmt.Errorf("%w: %s", ErrDimMismatch, msg)
		}
		return fmt.Errorf("cinevec: bad request: %s", msg)
	default:
		return fmt.Errorf("cinevec: unexpected status %d: %s", resp.StatusCode, msg)
	}
}
