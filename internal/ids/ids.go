package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTweetID returns a random (v4) UUID in canonical string form.
func NewTweetID() string {
	return uuid.NewString()
}

// NewSortable returns a lexically time-ordered ULID string.
func NewSortable() string {
	return ulid.Make().String()
}
