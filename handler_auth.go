package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"pulse/internal/audit"
	"pulse/internal/auth"
	"pulse/internal/store"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Per-IP login throttle: a burst of 10, refilling one attempt every 6s.
const loginLimiterBurst = 10

var (
	loginLimiterMu sync.Mutex
	loginLimiters  = map[string]*rate.Limiter{}
)

func loginLimiter(ip string) *rate.Limiter {
	loginLimiterMu.Lock()
	defer loginLimiterMu.Unlock()
	if len(loginLimiters) > 1000 {
		pruneLoginLimitersLocked()
	}
	lim, ok := loginLimiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Every(6*time.Second), loginLimiterBurst)
		loginLimiters[ip] = lim
	}
	return lim
}

// pruneLoginLimitersLocked drops limiters that have refilled to full
// burst. Those IPs have been idle long enough that a fresh limiter is
// equivalent, so the map stays bounded. Caller holds loginLimiterMu.
func pruneLoginLimitersLocked() {
	for ip, lim := range loginLimiters {
		if lim.Tokens() >= loginLimiterBurst {
			delete(loginLimiters, ip)
		}
	}
}

func resetLoginRateLimit() {
	loginLimiterMu.Lock()
	loginLimiters = map[string]*rate.Limiter{}
	loginLimiterMu.Unlock()
}

func handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		jsonErr(w, "username, email and password are required", 400)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		jsonErr(w, "Invalid email address", 400)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", req.Email).Scan(&exists)
	if exists > 0 {
		jsonErr(w, "Email already registered", 400)
		return
	}
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", req.Username).Scan(&exists)
	if exists > 0 {
		jsonErr(w, "Username already taken", 400)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, "Failed to hash password", 500)
		return
	}

	var id int
	err = db.QueryRow(
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?) RETURNING id",
		req.Username, req.Email, string(hash)).Scan(&id)
	if err != nil {
		jsonErr(w, "Failed to create user", 500)
		return
	}
	auth.AddPasswordHistory(db, id, string(hash))
	audit.Log(db, wsHub, req.Username, audit.ActionCreate, "users", itoa(id), "Registered")

	jsonResp(w, map[string]interface{}{
		"message": "User registered successfully",
		"user_id": id,
	})
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if !loginLimiter(ip).Allow() {
		jsonErr(w, "Too many login attempts. Try again in a minute.", 429)
		return
	}

	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	locked, err := auth.IsAccountLocked(db, req.Username)
	if err == nil && locked {
		jsonErr(w, "Account temporarily locked due to too many failed login attempts. Try again later.", 403)
		return
	}

	var id, active int
	var passwordHash, email, displayName, role string
	err = db.QueryRow("SELECT id, password_hash, email, display_name, role, active FROM users WHERE username = ?", req.Username).
		Scan(&id, &passwordHash, &email, &displayName, &role, &active)
	if err != nil {
		jsonErr(w, "Invalid credentials", 401)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		auth.IncrementFailedLoginAttempts(db, req.Username)
		jsonErr(w, "Invalid credentials", 401)
		return
	}

	if active == 0 {
		jsonErr(w, "Account deactivated", 403)
		return
	}

	auth.ResetFailedLoginAttempts(db, req.Username)

	// Clean expired sessions
	db.Exec("DELETE FROM sessions WHERE expires_at < ?", store.Now())

	// Create session with retry
	var token string
	expires := time.Now().Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		token = generateToken()
		_, err = db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
			token, id, store.FormatTime(expires))
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		jsonErr(w, "Failed to create session", 500)
		return
	}

	accessToken, _, err := auth.GenerateAccessToken(id, req.Username, email)
	if err != nil {
		jsonErr(w, "Failed to create access token", 500)
		return
	}

	db.Exec("UPDATE users SET last_login = ? WHERE id = ?", store.Now(), id)
	audit.Log(db, wsHub, req.Username, audit.ActionLogin, "users", itoa(id), "Logged in")

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})

	jsonResp(w, map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "bearer",
		"user":         UserResponse{ID: id, Username: req.Username, Email: email, DisplayName: displayName, Role: role},
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		db.Exec("DELETE FROM sessions WHERE token = ?", cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	jsonResp(w, map[string]string{"status": "ok"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		jsonErr(w, "Method not allowed", 405)
		return
	}
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var resp UserResponse
	var bio string
	err := db.QueryRow("SELECT id, username, email, display_name, bio, role FROM users WHERE id = ?", u.ID).
		Scan(&resp.ID, &resp.Username, &resp.Email, &resp.DisplayName, &bio, &resp.Role)
	if err != nil {
		jsonErr(w, "User not found", 404)
		return
	}

	jsonResp(w, map[string]interface{}{
		"id":           resp.ID,
		"username":     resp.Username,
		"email":        resp.Email,
		"display_name": resp.DisplayName,
		"bio":          bio,
		"role":         resp.Role,
	})
}

func handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		Email       *string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if !emailPattern.MatchString(email) {
			jsonErr(w, "Invalid email address", 400)
			return
		}
		var exists int
		db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ? AND id != ?", email, u.ID).Scan(&exists)
		if exists > 0 {
			jsonErr(w, "Email already registered", 400)
			return
		}
		if _, err := db.Exec("UPDATE users SET email = ? WHERE id = ?", email, u.ID); err != nil {
			jsonErr(w, "Failed to update profile", 500)
			return
		}
	}
	if req.DisplayName != nil {
		db.Exec("UPDATE users SET display_name = ? WHERE id = ?", *req.DisplayName, u.ID)
	}
	if req.Bio != nil {
		db.Exec("UPDATE users SET bio = ? WHERE id = ?", *req.Bio, u.ID)
	}

	audit.Log(db, wsHub, u.Username, audit.ActionUpdate, "users", itoa(u.ID), "Updated profile")
	jsonResp(w, map[string]string{"status": "updated"})
}

func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	var hash string
	if err := db.QueryRow("SELECT password_hash FROM users WHERE id = ?", u.ID).Scan(&hash); err != nil {
		jsonErr(w, "User not found", 404)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)) != nil {
		jsonErr(w, "Current password is incorrect", 401)
		return
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}
	if err := auth.CheckPasswordHistory(db, u.ID, req.NewPassword); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, "Failed to hash password", 500)
		return
	}
	if _, err := db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(newHash), u.ID); err != nil {
		jsonErr(w, "Failed to update password", 500)
		return
	}
	auth.AddPasswordHistory(db, u.ID, string(newHash))

	// Invalidate other sessions for this user
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		db.Exec("DELETE FROM sessions WHERE user_id = ? AND token != ?", u.ID, cookie.Value)
	}

	audit.Log(db, wsHub, u.Username, audit.ActionUpdate, "users", itoa(u.ID), "Changed password")
	jsonResp(w, map[string]string{"status": "updated"})
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
