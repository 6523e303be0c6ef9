package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/tweets/internal/api/middleware"
	"github.com/eldtechnologies/tweets/internal/handlers"
	"github.com/eldtechnologies/tweets/internal/models"
	"github.com/eldtechnologies/tweets/internal/store"
	"github.com/eldtechnologies/tweets/internal/stream"
)

// maxBodyBytes bounds request bodies; a tweet request is one short field.
const maxBodyBytes = 8 * 1024

// Options carries the optional collaborators of the router.
type Options struct {
	Redis     *store.RedisStore           // nil disables rate limiting and the redis health check
	Hub       *stream.Hub                 // nil disables /tweets/stream
	RateLimit middleware.RateLimiterConfig // ignored without Redis

	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	// Without it the rate limiter keys on the TCP peer.
	TrustProxy bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, tweets store.TweetStore, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if opts.Redis != nil {
		limiter := middleware.NewRateLimiter(opts.Redis.Client(), logger, opts.RateLimit)
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var pub handlers.Publisher
	if opts.Hub != nil {
		pub = opts.Hub
	}
	h := handlers.NewHandler(tweets, opts.Redis, pub)

	// Metrics endpoint (for Prometheus scraping)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Get("/hello/{name}", h.Hello)
	r.Post("/tweet", h.PostTweet)
	r.Get("/tweets", h.ListTweets)
	if opts.Hub != nil {
		r.Get("/tweets/stream", opts.Hub.ServeHTTP)
	}

	h.SetRoutes(routeTable(r))

	return r
}

// routeTable lists the registered routes as sorted "METHOD /path" entries.
func routeTable(r chi.Routes) []string {
	var routes []string
	chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	slices.Sort(routes)
	return routes
}

// EncodeTweet is the stream encoder matching the REST representation.
func EncodeTweet(t models.Tweet) interface{} {
	return handlers.NewTweetResponse(t)
}
