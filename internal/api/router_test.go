package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/tweets/internal/api"
	"github.com/eldtechnologies/tweets/internal/handlers"
	"github.com/eldtechnologies/tweets/internal/store"
	"github.com/eldtechnologies/tweets/internal/stream"
)

// --- test helpers -----------------------------------------------------------

func newRouter(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return api.NewRouter(zerolog.Nop(), st, api.Options{}), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- POST /tweet ------------------------------------------------------------

func TestPostTweet_Created(t *testing.T) {
	h, st := newRouter(t)

	rr := do(t, h, http.MethodPost, "/tweet", `{"message":"hello"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	var got handlers.TweetResponse
	decode(t, rr, &got)
	if got.Message != "hello" || got.ID == "" {
		t.Fatalf("unexpected tweet %+v", got)
	}
	created, err := time.Parse(time.RFC3339Nano, got.CreatedAt)
	if err != nil {
		t.Fatalf("created_at %q: %v", got.CreatedAt, err)
	}
	if _, offset := created.Zone(); offset != 0 {
		t.Fatalf("created_at not UTC: %q", got.CreatedAt)
	}
	if st.Len() != 1 {
		t.Fatalf("store len: got %d, want 1", st.Len())
	}
}

func TestPostTweet_AbsentMessageIsNoContent(t *testing.T) {
	h, st := newRouter(t)

	for _, body := range []string{`{}`, `{"message":null}`, ""} {
		rr := do(t, h, http.MethodPost, "/tweet", body)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("body %q: status got %d, want 204", body, rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Fatalf("body %q: expected empty response, got %s", body, rr.Body.String())
		}
	}
	if st.Len() != 0 {
		t.Fatalf("store len: got %d, want 0", st.Len())
	}
}

func TestPostTweet_EmptyMessageRejected(t *testing.T) {
	h, st := newRouter(t)

	rr := do(t, h, http.MethodPost, "/tweet", `{"message":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "message must not be empty" {
		t.Fatalf("error: got %q", resp["error"])
	}
	if st.Len() != 0 {
		t.Fatalf("store len: got %d, want 0", st.Len())
	}
}

func TestPostTweet_InvalidJSON(t *testing.T) {
	h, _ := newRouter(t)

	for _, body := range []string{`{"message":`, `{"message":42}`, `[]`} {
		rr := do(t, h, http.MethodPost, "/tweet", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status got %d, want 400", body, rr.Code)
		}
	}
}

// --- GET /tweets ------------------------------------------------------------

func TestListTweets_Empty(t *testing.T) {
	h, _ := newRouter(t)

	rr := do(t, h, http.MethodGet, "/tweets", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("body: got %s, want []", rr.Body.String())
	}
}

func TestListTweets_NewestFirst(t *testing.T) {
	h, _ := newRouter(t)

	do(t, h, http.MethodPost, "/tweet", `{"message":"first"}`)
	time.Sleep(2 * time.Millisecond)
	do(t, h, http.MethodPost, "/tweet", `{"message":"second"}`)

	rr := do(t, h, http.MethodGet, "/tweets", "")
	var got []handlers.TweetResponse
	decode(t, rr, &got)

	if len(got) != 2 {
		t.Fatalf("got %d tweets, want 2", len(got))
	}
	if got[0].Message != "second" || got[1].Message != "first" {
		t.Fatalf("order: got [%s, %s], want [second, first]", got[0].Message, got[1].Message)
	}
}

func TestConcurrentPosts(t *testing.T) {
	h, _ := newRouter(t)
	const k = 50

	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			rr := do(t, h, http.MethodPost, "/tweet", `{"message":"hello"}`)
			if rr.Code != http.StatusCreated {
				t.Errorf("status: got %d, want 201", rr.Code)
			}
		}()
	}
	wg.Wait()

	var got []handlers.TweetResponse
	decode(t, do(t, h, http.MethodGet, "/tweets", ""), &got)
	if len(got) != k {
		t.Fatalf("got %d tweets, want %d", len(got), k)
	}
	ids := make(map[string]bool, k)
	for _, tw := range got {
		if tw.Message != "hello" {
			t.Errorf("message: got %q", tw.Message)
		}
		ids[tw.ID] = true
	}
	if len(ids) != k {
		t.Fatalf("distinct ids: got %d, want %d", len(ids), k)
	}
}

// --- misc routes ------------------------------------------------------------

func TestHello(t *testing.T) {
	h, _ := newRouter(t)

	rr := do(t, h, http.MethodGet, "/hello/world", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "Hello world!" {
		t.Fatalf("body: got %q, want %q", rr.Body.String(), "Hello world!")
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type: got %q", ct)
	}
}

func TestHello_NamesWithPunctuation(t *testing.T) {
	h, _ := newRouter(t)

	for _, name := range []string{"J..R", "onerror=x", "O'Brien"} {
		rr := do(t, h, http.MethodGet, "/hello/"+name, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status got %d, want 200 (body: %s)", name, rr.Code, rr.Body.String())
		}
		if want := "Hello " + name + "!"; rr.Body.String() != want {
			t.Fatalf("%s: body got %q, want %q", name, rr.Body.String(), want)
		}
	}
}

func TestHealth_WithoutRedis(t *testing.T) {
	h, _ := newRouter(t)
	do(t, h, http.MethodPost, "/tweet", `{"message":"x"}`)

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp handlers.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "healthy" {
		t.Fatalf("status: got %q, want healthy", resp.Status)
	}
	if resp.Checks["store"].Status != "pass" || resp.Checks["store"].Message != "1 tweets" {
		t.Fatalf("store check: got %+v", resp.Checks["store"])
	}
	if _, ok := resp.Checks["redis"]; ok {
		t.Fatal("redis check should be absent when not configured")
	}
}

func TestStats(t *testing.T) {
	h, _ := newRouter(t)

	var resp handlers.StatsResponse
	decode(t, do(t, h, http.MethodGet, "/stats", ""), &resp)
	if resp.TotalTweets != 0 || resp.LastActivity != "no activity yet" || len(resp.Recent) != 0 {
		t.Fatalf("empty stats: got %+v", resp)
	}

	for i := 0; i < 7; i++ {
		do(t, h, http.MethodPost, "/tweet", `{"message":"m"}`)
	}
	decode(t, do(t, h, http.MethodGet, "/stats", ""), &resp)
	if resp.TotalTweets != 7 {
		t.Fatalf("total: got %d, want 7", resp.TotalTweets)
	}
	if resp.LastActivity != "just now" {
		t.Fatalf("last activity: got %q", resp.LastActivity)
	}
	if len(resp.Recent) != 5 {
		t.Fatalf("recent: got %d, want 5", len(resp.Recent))
	}
}

func TestRootAndMetrics(t *testing.T) {
	h, _ := newRouter(t)

	var root handlers.RootResponse
	decode(t, do(t, h, http.MethodGet, "/api", ""), &root)
	if root.Name != "tweets" {
		t.Fatalf("name: got %q", root.Name)
	}
	want := []string{
		"GET /api",
		"GET /health",
		"GET /hello/{name}",
		"GET /metrics",
		"GET /stats",
		"GET /tweets",
		"POST /tweet",
	}
	if !slices.Equal(root.Routes, want) {
		t.Fatalf("routes: got %v, want %v", root.Routes, want)
	}
	for _, route := range root.Routes {
		method, path, _ := strings.Cut(route, " ")
		if method != http.MethodGet || strings.Contains(path, "{") {
			continue
		}
		if rr := do(t, h, method, path, ""); rr.Code == http.StatusNotFound {
			t.Errorf("%s: advertised but not found", route)
		}
	}

	do(t, h, http.MethodPost, "/tweet", `{"message":"counted"}`)
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tweets_posted_total") {
		t.Fatal("metrics: tweets_posted_total missing")
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	h, _ := newRouter(t)
	rr := do(t, h, http.MethodGet, "/tweets", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options")
	}
}

func TestForwardedHeadersNeedTrustProxy(t *testing.T) {
	for _, trust := range []bool{false, true} {
		var buf bytes.Buffer
		h := api.NewRouter(zerolog.New(&buf), store.NewMemoryStore(), api.Options{TrustProxy: trust})

		req := httptest.NewRequest(http.MethodGet, "/tweets", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", "192.0.2.1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		want := "203.0.113.7:5555"
		if trust {
			want = "192.0.2.1"
		}
		if !strings.Contains(buf.String(), `"remote_addr":"`+want+`"`) {
			t.Errorf("trust=%v: want remote_addr %s in %s", trust, want, buf.String())
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newRouter(t)
	if rr := do(t, h, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/tweets", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want 405", rr.Code)
	}
}

// --- GET /tweets/stream -----------------------------------------------------

func TestStreamThroughRouter(t *testing.T) {
	st := store.NewMemoryStore()
	hub := stream.NewHub(st, api.EncodeTweet, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(api.NewRouter(zerolog.Nop(), st, api.Options{Hub: hub}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/tweets/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	resp, err := http.Post(srv.URL+"/tweet", "application/json", strings.NewReader(`{"message":"streamed"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post status: got %d, want 201", resp.StatusCode)
	}

	var ev struct {
		Event string                 `json:"event"`
		Data  handlers.TweetResponse `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read tweet event: %v", err)
	}
	if ev.Event != "tweet" || ev.Data.Message != "streamed" {
		t.Fatalf("event: got %+v", ev)
	}
	// Stream delivery order is not insertion order; created_at is the ordering key.
	if _, err := time.Parse(time.RFC3339Nano, ev.Data.CreatedAt); err != nil {
		t.Fatalf("created_at: %v", err)
	}
}
