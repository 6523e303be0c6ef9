package handlers

import (
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"
)

const (
	recentPreviewCount = 5
	previewMaxRunes    = 200
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalTweets  int             `json:"total_tweets"`
	LastActivity string          `json:"last_activity"`
	Recent       []TweetResponse `json:"recent"`
}

// Stats returns store statistics and a preview of the newest tweets.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	tweets := h.tweets.Recent()

	lastActivity := "no activity yet"
	if len(tweets) > 0 {
		lastActivity = formatTimeAgo(tweets[0].CreatedAt, time.Now())
	}

	preview := tweets
	if len(preview) > recentPreviewCount {
		preview = preview[:recentPreviewCount]
	}

	recent := NewTweetResponses(preview)
	for i := range recent {
		recent[i].Message = truncate(recent[i].Message, previewMaxRunes)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalTweets:  len(tweets),
		LastActivity: lastActivity,
		Recent:       recent,
	})
}

// formatTimeAgo formats t relative to now as a human-readable "X ago" string.
func formatTimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

// truncate shortens s to at most max runes, ending in "..." when cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
