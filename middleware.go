package main

import (
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"pulse/internal/auth"
	"pulse/internal/store"
)

const sessionCookie = "pulse_session"

// logging wraps the mux with request logging and CORS headers.
func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// authedUser is the resolved identity of the request.
type authedUser struct {
	ID       int
	Username string
	Email    string
	Role     string
	Active   int
}

// currentUser resolves the caller from a Bearer token or the session
// cookie. Returns false when the request carries no valid credentials.
func currentUser(r *http.Request) (*authedUser, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateAccessToken(token)
		if err != nil {
			return nil, false
		}
		// Subject carries the user's email
		u := &authedUser{}
		err = db.QueryRow("SELECT id, username, email, role, active FROM users WHERE email = ?", claims.Subject).
			Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Active)
		if err != nil {
			return nil, false
		}
		return u, true
	}

	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}

	u := &authedUser{}
	err = db.QueryRow(`SELECT u.id, u.username, u.email, u.role, u.active
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?`, cookie.Value, store.Now()).
		Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Active)
	if err != nil {
		return nil, false
	}

	// Sliding window: extend session expiry on each authenticated request
	newExpiry := store.FormatTime(time.Now().Add(24 * time.Hour))
	db.Exec("UPDATE sessions SET expires_at = ?, last_activity = ? WHERE token = ?",
		newExpiry, store.Now(), cookie.Value)

	return u, true
}

// requireUser writes a 401/403 and returns false when the request is not
// from an active authenticated user.
func requireUser(w http.ResponseWriter, r *http.Request) (*authedUser, bool) {
	u, ok := currentUser(r)
	if !ok {
		jsonErr(w, "Unauthorized", 401)
		return nil, false
	}
	if u.Active == 0 {
		jsonErr(w, "Account deactivated", 403)
		return nil, false
	}
	return u, true
}

// requireAdmin is requireUser plus an admin role check.
func requireAdmin(w http.ResponseWriter, r *http.Request) (*authedUser, bool) {
	u, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}
	if u.Role != "admin" {
		jsonErr(w, "Forbidden", 403)
		return nil, false
	}
	return u, true
}

// getClientIP extracts the real client IP from the request (handles proxies).
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
