package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/eldtechnologies/tweets/internal/metrics"
	"github.com/eldtechnologies/tweets/internal/models"
	"github.com/eldtechnologies/tweets/internal/store"
)

// TweetRequest represents the post tweet request. Message is optional.
type TweetRequest struct {
	Message *string `json:"message"`
}

// TweetResponse represents a tweet in API responses.
type TweetResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"` // RFC 3339, nanosecond precision, UTC
}

// NewTweetResponse converts a stored tweet for the wire.
func NewTweetResponse(t models.Tweet) TweetResponse {
	return TweetResponse{
		ID:        t.ID,
		Message:   t.Message,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// NewTweetResponses converts a snapshot, keeping its order.
func NewTweetResponses(tweets []models.Tweet) []TweetResponse {
	out := make([]TweetResponse, len(tweets))
	for i, t := range tweets {
		out[i] = NewTweetResponse(t)
	}
	return out
}

// PostTweet handles appending a tweet.
// 201 with the tweet when created, 204 when no message was supplied.
func (h *Handler) PostTweet(w http.ResponseWriter, r *http.Request) {
	var req TweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tweet, err := h.tweets.Append(req.Message)
	if errors.Is(err, store.ErrEmptyMessage) {
		metrics.EmptyRejected.Inc()
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store tweet")
		return
	}

	if tweet == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	metrics.TweetsPosted.Inc()
	metrics.TweetsStored.Set(float64(h.tweets.Len()))

	if h.pub != nil {
		h.pub.Publish(*tweet)
	}

	h.JSON(w, http.StatusCreated, NewTweetResponse(*tweet))
}

// ListTweets handles fetching every tweet, newest first.
func (h *Handler) ListTweets(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, NewTweetResponses(h.tweets.Recent()))
}
