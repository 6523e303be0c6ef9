// Package tweets provides a client for the tweets HTTP API.
package tweets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultURL is used when no base URL is given.
const DefaultURL = "http://127.0.0.1:8080"

// Client is a tweets API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// APIError is returned for any response with status >= 400.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tweets error %d: %s", e.StatusCode, e.Message)
}

// IsAPIError reports whether err is an *APIError with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// NewClient creates a new client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request and returns the status and body. For
// status >= 400 the body is returned alongside the *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, respBody, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return resp.StatusCode, respBody, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	_, body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// Tweet is a tweet as returned by the API.
type Tweet struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TweetRequest is the request body for posting a tweet.
type TweetRequest struct {
	Message *string `json:"message,omitempty"`
}

// PostTweet posts a tweet. A nil message is sent as an absent field; the
// returned tweet is then nil because the server creates nothing.
func (c *Client) PostTweet(ctx context.Context, message *string) (*Tweet, error) {
	reqBody, err := json.Marshal(TweetRequest{Message: message})
	if err != nil {
		return nil, err
	}

	status, respBody, err := c.doRequest(ctx, http.MethodPost, "/tweet", reqBody)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}

	var tweet Tweet
	if err := json.Unmarshal(respBody, &tweet); err != nil {
		return nil, err
	}
	return &tweet, nil
}

// ListTweets returns every tweet, newest first.
func (c *Client) ListTweets(ctx context.Context) ([]Tweet, error) {
	var tweets []Tweet
	if err := c.getJSON(ctx, "/tweets", &tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

// Hello returns the server's greeting for name.
func (c *Client) Hello(ctx context.Context, name string) (string, error) {
	_, body, err := c.doRequest(ctx, http.MethodGet, "/hello/"+url.PathEscape(name), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// StatsResponse is the response from the stats endpoint.
type StatsResponse struct {
	TotalTweets  int     `json:"total_tweets"`
	LastActivity string  `json:"last_activity"`
	Recent       []Tweet `json:"recent"`
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.getJSON(ctx, "/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
	Timestamp string `json:"timestamp"`
}

// Health checks server health. A degraded server answers 503 with the
// failing checks; the decoded report is then returned together with the
// *APIError.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil && status != http.StatusServiceUnavailable {
		return nil, err
	}

	var resp HealthResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, jsonErr
	}
	return &resp, err
}
