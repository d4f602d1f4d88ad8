package main

import (
	"database/sql"
	"net/http"
	"strconv"

	"pulse/internal/audit"
	"pulse/internal/models"
)

func handleFollowUser(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	followedID, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}
	if followedID == u.ID {
		jsonErr(w, "You cannot follow yourself", 400)
		return
	}

	var followedName string
	err = db.QueryRow("SELECT username FROM users WHERE id = ? AND active = 1", followedID).Scan(&followedName)
	if err == sql.ErrNoRows {
		jsonErr(w, "User not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?", u.ID, followedID).Scan(&exists)
	if exists > 0 {
		jsonErr(w, "You are already following this user", 400)
		return
	}

	if _, err := db.Exec("INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)", u.ID, followedID); err != nil {
		jsonErr(w, "Failed to follow user", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionCreate, "follows", idStr, "Followed "+followedName)
	broadcast("follow", "create", followedID)
	notify(followedID, "new_follower", u.Username+" started following you", "", itoa(u.ID))

	jsonResp(w, map[string]string{"message": "Now following " + followedName})
}

func handleUnfollowUser(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	followedID, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}

	res, err := db.Exec("DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", u.ID, followedID)
	if err != nil {
		jsonErr(w, "Failed to unfollow user", 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "You are not following this user", 400)
		return
	}

	broadcast("follow", "delete", followedID)
	jsonResp(w, map[string]string{"message": "Unfollowed"})
}

func listRelatedUsers(w http.ResponseWriter, query string, id int) {
	rows, err := db.Query(query, id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	users := []UserResponse{}
	for rows.Next() {
		var u UserResponse
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Role); err != nil {
			continue
		}
		users = append(users, u)
	}
	jsonResp(w, users)
}

func handleListFollowers(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}
	listRelatedUsers(w, `SELECT u.id, u.username, u.email, u.display_name, u.role
		FROM follows f JOIN users u ON f.follower_id = u.id
		WHERE f.followed_id = ? ORDER BY f.created_at DESC`, id)
}

func handleListFollowing(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid user id", 400)
		return
	}
	listRelatedUsers(w, `SELECT u.id, u.username, u.email, u.display_name, u.role
		FROM follows f JOIN users u ON f.followed_id = u.id
		WHERE f.follower_id = ? ORDER BY f.created_at DESC`, id)
}

// handleFeed returns posts from accounts the caller follows, newest first.
func handleFeed(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, limit, offset := parsePagination(r)

	var total int
	err := db.QueryRow(`SELECT COUNT(*) FROM posts p
		WHERE p.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)`, u.ID).Scan(&total)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	rows, err := db.Query(postSelect+`
		WHERE p.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)
		ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`, u.ID, limit, offset)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			continue
		}
		posts = append(posts, p)
	}
	jsonMeta(w, posts, total, page, limit)
}
