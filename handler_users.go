package main

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"pulse/internal/audit"
	"pulse/internal/auth"
	"pulse/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// handleGetUser returns a public profile with post/follower counts.
func handleGetUser(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}

	var u models.User
	err = db.QueryRow(`SELECT id, username, display_name, bio, role, active, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Bio, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		jsonErr(w, "User not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	var posts, followers, following int
	db.QueryRow("SELECT COUNT(*) FROM posts WHERE user_id = ?", id).Scan(&posts)
	db.QueryRow("SELECT COUNT(*) FROM follows WHERE followed_id = ?", id).Scan(&followers)
	db.QueryRow("SELECT COUNT(*) FROM follows WHERE follower_id = ?", id).Scan(&following)

	jsonResp(w, map[string]interface{}{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"bio":          u.Bio,
		"created_at":   u.CreatedAt,
		"posts":        posts,
		"followers":    followers,
		"following":    following,
	})
}

func handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	page, limit, offset := parsePagination(r)

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	rows, err := db.Query(`SELECT id, username, email, display_name, bio, role, active, last_login, created_at
		FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Bio,
			&u.Role, &u.Active, &lastLogin, &u.CreatedAt); err != nil {
			continue
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, u)
	}
	jsonMeta(w, users, total, page, limit)
}

func handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
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
	if req.Role == "" {
		req.Role = "user"
	}
	if req.Role != "user" && req.Role != "moderator" && req.Role != "admin" {
		jsonErr(w, "Invalid role", 400)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ? OR email = ?", req.Username, req.Email).Scan(&exists)
	if exists > 0 {
		jsonErr(w, "Username or email already in use", 400)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, "Failed to hash password", 500)
		return
	}

	var id int
	err = db.QueryRow("INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?) RETURNING id",
		req.Username, req.Email, string(hash), req.Role).Scan(&id)
	if err != nil {
		jsonErr(w, "Failed to create user", 500)
		return
	}
	auth.AddPasswordHistory(db, id, string(hash))

	audit.Log(db, wsHub, admin.Username, audit.ActionCreate, "users", itoa(id), "Created user "+req.Username)
	jsonResp(w, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role})
}

func handleAdminUpdateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Role        *string `json:"role"`
		Active      *int    `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", id).Scan(&exists)
	if exists == 0 {
		jsonErr(w, "User not found", 404)
		return
	}

	if req.Role != nil {
		if *req.Role != "user" && *req.Role != "moderator" && *req.Role != "admin" {
			jsonErr(w, "Invalid role", 400)
			return
		}
		// The last admin cannot demote themselves
		if admin.ID == id && *req.Role != "admin" {
			var admins int
			db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin' AND active = 1").Scan(&admins)
			if admins <= 1 {
				jsonErr(w, "Cannot demote the last admin", 400)
				return
			}
		}
		db.Exec("UPDATE users SET role = ? WHERE id = ?", *req.Role, id)
	}
	if req.DisplayName != nil {
		db.Exec("UPDATE users SET display_name = ? WHERE id = ?", *req.DisplayName, id)
	}
	if req.Active != nil {
		db.Exec("UPDATE users SET active = ? WHERE id = ?", *req.Active, id)
		if *req.Active == 0 {
			db.Exec("DELETE FROM sessions WHERE user_id = ?", id)
		}
	}

	audit.Log(db, wsHub, admin.Username, audit.ActionUpdate, "users", idStr, "Updated user")
	jsonResp(w, map[string]string{"status": "updated"})
}

// handleAdminDeactivateUser disables an account and drops its sessions.
// Rows are kept so posts and comments stay attributed.
func handleAdminDeactivateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}
	if id == admin.ID {
		jsonErr(w, "Cannot deactivate your own account", 400)
		return
	}

	res, err := db.Exec("UPDATE users SET active = 0 WHERE id = ?", id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "User not found", 404)
		return
	}
	db.Exec("DELETE FROM sessions WHERE user_id = ?", id)

	audit.Log(db, wsHub, admin.Username, audit.ActionDelete, "users", idStr, "Deactivated user")
	jsonResp(w, map[string]string{"status": "deactivated"})
}

func handleAdminResetPassword(w http.ResponseWriter, r *http.Request, idStr string) {
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}

	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, "Failed to hash password", 500)
		return
	}

	res, err := db.Exec("UPDATE users SET password_hash = ?, failed_login_attempts = 0, locked_until = NULL WHERE id = ?",
		string(hash), id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "User not found", 404)
		return
	}
	auth.AddPasswordHistory(db, id, string(hash))
	db.Exec("DELETE FROM sessions WHERE user_id = ?", id)

	audit.Log(db, wsHub, admin.Username, audit.ActionUpdate, "users", idStr, "Reset password")
	jsonResp(w, map[string]string{"status": "reset"})
}

func handleListAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	rows, err := db.Query(`SELECT id, username, action, module, record_id, summary, created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT 200`)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	jsonResp(w, entries)
}
