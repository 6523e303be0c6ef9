package store

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eldtechnologies/tweets/internal/models"
)

// MemoryStore is a thread-safe, append-only, in-memory tweet store.
// A single mutex serializes every read and write; contents live only as
// long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	tweets []models.Tweet
	now    func() time.Time // injectable for deterministic tests
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append builds a tweet from message and appends it.
// Returns (nil, nil) when message is nil and ErrEmptyMessage when it is
// blank; neither case changes the store.
func (s *MemoryStore) Append(message *string) (*models.Tweet, error) {
	if message == nil {
		return nil, nil
	}
	if strings.TrimSpace(*message) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tweet := models.NewTweetAt(*message, s.now())
	s.tweets = append(s.tweets, tweet)

	return &tweet, nil
}

// Recent returns a point-in-time copy of every tweet ordered by CreatedAt,
// newest first. Equal timestamps keep reverse insertion order.
func (s *MemoryStore) Recent() []models.Tweet {
	s.mu.Lock()
	out := make([]models.Tweet, len(s.tweets))
	for i, t := range s.tweets {
		out[len(out)-1-i] = t
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b models.Tweet) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Len returns the number of stored tweets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tweets)
}
