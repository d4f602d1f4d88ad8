// Package testutil provides shared helpers for handler tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"pulse/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// SetupTestDB creates an in-memory SQLite database with the full schema
// applied. The pool is pinned to one connection so every statement sees
// the same in-memory database.
func SetupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open("", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	return db
}

// CreateUser inserts a user and returns its id.
func CreateUser(t *testing.T, db *store.DB, username, email, password, role string, active bool) int {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	activeInt := 0
	if active {
		activeInt = 1
	}

	var id int
	err = db.QueryRow(
		"INSERT INTO users (username, email, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
		username, email, string(hash), username+" Display", role, activeInt,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return id
}

// CreateSession inserts a session for the user and returns the token.
func CreateSession(t *testing.T, db *store.DB, userID int) string {
	t.Helper()
	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)

	expires := store.FormatTime(time.Now().Add(24 * time.Hour))
	if _, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expires); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return token
}

// CreatePost inserts a post and returns its id.
func CreatePost(t *testing.T, db *store.DB, userID int, title, content string) int {
	t.Helper()
	var id int
	err := db.QueryRow(
		"INSERT INTO posts (user_id, title, content) VALUES (?, ?, ?) RETURNING id",
		userID, title, content,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test post: %v", err)
	}
	return id
}

// CreateComment inserts a comment and returns its id.
func CreateComment(t *testing.T, db *store.DB, postID, userID int, content string) int {
	t.Helper()
	var id int
	err := db.QueryRow(
		"INSERT INTO comments (post_id, user_id, content) VALUES (?, ?, ?) RETURNING id",
		postID, userID, content,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}
	return id
}
