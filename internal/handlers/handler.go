package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/tweets/internal/models"
	"github.com/eldtechnologies/tweets/internal/store"
)

// Publisher receives every tweet accepted by the store.
type Publisher interface {
	Publish(tweet models.Tweet)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	tweets store.TweetStore
	redis  *store.RedisStore
	pub    Publisher
	routes []string
}

// NewHandler creates a new Handler. redis and pub may be nil.
func NewHandler(tweets store.TweetStore, redis *store.RedisStore, pub Publisher) *Handler {
	return &Handler{tweets: tweets, redis: redis, pub: pub}
}

// SetRoutes records the route table reported by Root. Call it before serving.
func (h *Handler) SetRoutes(routes []string) {
	h.routes = routes
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
