package main

import (
	"net/http"
	"time"

	"pulse/internal/store"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(); err != nil {
		jsonErr(w, "database unreachable", 503)
		return
	}
	jsonResp(w, map[string]string{"status": "ok", "driver": db.Driver()})
}

// handleDashboard returns site-wide activity counters.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	counts := map[string]int{}
	for name, query := range map[string]string{
		"users":    "SELECT COUNT(*) FROM users WHERE active = 1",
		"posts":    "SELECT COUNT(*) FROM posts",
		"comments": "SELECT COUNT(*) FROM comments",
		"likes":    "SELECT COUNT(*) FROM likes",
		"follows":  "SELECT COUNT(*) FROM follows",
	} {
		var n int
		if err := db.QueryRow(query).Scan(&n); err == nil {
			counts[name] = n
		}
	}

	midnight := store.FormatTime(time.Now().UTC().Truncate(24 * time.Hour))
	for name, query := range map[string]string{
		"posts_today":    "SELECT COUNT(*) FROM posts WHERE created_at >= ?",
		"comments_today": "SELECT COUNT(*) FROM comments WHERE created_at >= ?",
		"likes_today":    "SELECT COUNT(*) FROM likes WHERE created_at >= ?",
	} {
		var n int
		if err := db.QueryRow(query, midnight).Scan(&n); err == nil {
			counts[name] = n
		}
	}

	jsonResp(w, counts)
}
