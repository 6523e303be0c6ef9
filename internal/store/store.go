package store

import (
	"errors"

	"github.com/eldtechnologies/tweets/internal/models"
)

// ErrEmptyMessage is returned when a message is supplied but has no content.
var ErrEmptyMessage = errors.New("message must not be empty")

// TweetStore defines the contract request handlers use to reach tweets.
// MemoryStore implements this interface.
type TweetStore interface {
	// Append stores a new tweet built from message and returns a copy of it.
	// A nil message is a no-op and yields (nil, nil).
	Append(message *string) (*models.Tweet, error)

	// Recent returns an independent copy of all tweets, newest first.
	Recent() []models.Tweet

	// Len returns the number of stored tweets.
	Len() int
}
