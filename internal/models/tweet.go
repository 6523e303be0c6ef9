package models

import (
	"time"

	"github.com/eldtechnologies/tweets/internal/ids"
)

// Tweet represents a single short post held by the store.
type Tweet struct {
	ID        string    `json:"id"` // UUID v4
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewTweet mints a tweet with a fresh ID stamped with the current time.
func NewTweet(message string) Tweet {
	return NewTweetAt(message, time.Now())
}

// NewTweetAt mints a tweet with a fresh ID stamped with at, normalized to UTC.
func NewTweetAt(message string, at time.Time) Tweet {
	return Tweet{
		ID:        ids.NewTweetID(),
		Message:   message,
		CreatedAt: at.UTC(),
	}
}
