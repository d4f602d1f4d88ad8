package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"pulse/internal/auth"
	"pulse/internal/config"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Config load failed: ", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}

	auth.SetJWTSecret(cfg.JWTSecret)

	if err := initDB(cfg); err != nil {
		log.Fatal("DB init failed: ", err)
	}

	// Deliver notification emails shortly after start, then every 5 min
	go func() {
		time.Sleep(5 * time.Second)
		emailPendingNotifications()
		for {
			time.Sleep(5 * time.Minute)
			emailPendingNotifications()
		}
	}()

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			jsonErr(w, "Not found", 404)
			return
		}
		jsonResp(w, map[string]string{"service": "pulse", "status": "ok"})
	})
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/ws", handleWebSocket)

	// Auth routes
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleRegister(w, r)
		} else {
			jsonErr(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			jsonErr(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			jsonErr(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			handleUpdateProfile(w, r)
		} else {
			jsonErr(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleChangePassword(w, r)
		} else {
			jsonErr(w, "Method not allowed", 405)
		}
	})

	// API routes - using a simple router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Feed + dashboard
		case path == "feed" && r.Method == "GET":
			handleFeed(w, r)
		case path == "dashboard" && r.Method == "GET":
			handleDashboard(w, r)

		// Posts
		case path == "posts" && r.Method == "GET":
			handleListPosts(w, r)
		case path == "posts" && r.Method == "POST":
			handleCreatePost(w, r)
		case parts[0] == "posts" && len(parts) == 2 && r.Method == "GET":
			handleGetPost(w, r, parts[1])
		case parts[0] == "posts" && len(parts) == 2 && r.Method == "PUT":
			handleUpdatePost(w, r, parts[1])
		case parts[0] == "posts" && len(parts) == 2 && r.Method == "DELETE":
			handleDeletePost(w, r, parts[1])

		// Comments
		case parts[0] == "posts" && len(parts) == 3 && parts[2] == "comments" && r.Method == "GET":
			handleListComments(w, r, parts[1])
		case parts[0] == "posts" && len(parts) == 3 && parts[2] == "comments" && r.Method == "POST":
			handleCreateComment(w, r, parts[1])
		case parts[0] == "comments" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteComment(w, r, parts[1])

		// Likes
		case parts[0] == "posts" && len(parts) == 3 && parts[2] == "like" && r.Method == "POST":
			handleLikePost(w, r, parts[1])
		case parts[0] == "posts" && len(parts) == 3 && parts[2] == "like" && r.Method == "DELETE":
			handleUnlikePost(w, r, parts[1])
		case parts[0] == "posts" && len(parts) == 3 && parts[2] == "likes" && r.Method == "GET":
			handleGetLikes(w, r, parts[1])

		// Users + follows
		case path == "users" && r.Method == "GET":
			handleListUsers(w, r)
		case path == "users" && r.Method == "POST":
			handleAdminCreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "GET":
			handleGetUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			handleAdminUpdateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 2 && r.Method == "DELETE":
			handleAdminDeactivateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "follow" && r.Method == "POST":
			handleFollowUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "follow" && r.Method == "DELETE":
			handleUnfollowUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "followers" && r.Method == "GET":
			handleListFollowers(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "following" && r.Method == "GET":
			handleListFollowing(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "reset-password" && r.Method == "POST":
			handleAdminResetPassword(w, r, parts[1])

		// Notifications
		case path == "notifications" && r.Method == "GET":
			handleListNotifications(w, r)
		case path == "notifications/read-all" && r.Method == "POST":
			handleMarkAllNotificationsRead(w, r)
		case parts[0] == "notifications" && len(parts) == 3 && parts[2] == "read" && r.Method == "POST":
			handleMarkNotificationRead(w, r, parts[1])

		// Export
		case path == "export/posts" && r.Method == "GET":
			handleExportPosts(w, r)

		// Admin
		case path == "admin/email-config" && r.Method == "GET":
			handleGetEmailConfig(w, r)
		case path == "admin/email-config" && r.Method == "PUT":
			handleUpdateEmailConfig(w, r)
		case path == "admin/email-test" && r.Method == "POST":
			handleTestEmail(w, r)
		case path == "admin/email-log" && r.Method == "GET":
			handleListEmailLog(w, r)
		case path == "admin/audit-log" && r.Method == "GET":
			handleListAuditLog(w, r)

		default:
			jsonErr(w, "Not found", 404)
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("pulse listening on %s (database: %s)", addr, db.Driver())
	if err := http.ListenAndServe(addr, logging(mux)); err != nil {
		log.Fatal(err)
	}
}
