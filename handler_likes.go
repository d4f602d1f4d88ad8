package main

import (
	"database/sql"
	"net/http"
	"strconv"

	"pulse/internal/audit"
	"pulse/internal/models"
)

func handleLikePost(w http.ResponseWriter, r *http.Request, postIDStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := strconv.Atoi(postIDStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	var postOwner int
	err = db.QueryRow("SELECT user_id FROM posts WHERE id = ?", postID).Scan(&postOwner)
	if err == sql.ErrNoRows {
		jsonErr(w, "Post not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM likes WHERE post_id = ? AND user_id = ?", postID, u.ID).Scan(&exists)
	if exists > 0 {
		jsonErr(w, "You have already liked this post", 400)
		return
	}

	if _, err := db.Exec("INSERT INTO likes (post_id, user_id) VALUES (?, ?)", postID, u.ID); err != nil {
		jsonErr(w, "Failed to like post", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionCreate, "likes", postIDStr, "Liked post "+postIDStr)
	broadcast("like", "create", postID)
	if postOwner != u.ID {
		notify(postOwner, "new_like", u.Username+" liked your post", "", postIDStr)
	}

	jsonResp(w, map[string]string{"message": "Post liked successfully"})
}

func handleUnlikePost(w http.ResponseWriter, r *http.Request, postIDStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := strconv.Atoi(postIDStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	res, err := db.Exec("DELETE FROM likes WHERE post_id = ? AND user_id = ?", postID, u.ID)
	if err != nil {
		jsonErr(w, "Failed to unlike post", 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "You have not liked this post", 400)
		return
	}

	broadcast("like", "delete", postID)
	jsonResp(w, map[string]string{"message": "Like removed"})
}

func handleGetLikes(w http.ResponseWriter, r *http.Request, postIDStr string) {
	postID, err := strconv.Atoi(postIDStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	var exists int
	db.QueryRow("SELECT COUNT(*) FROM posts WHERE id = ?", postID).Scan(&exists)
	if exists == 0 {
		jsonErr(w, "Post not found", 404)
		return
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM likes WHERE post_id = ?", postID).Scan(&count); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	// Include who liked when asked for
	if r.URL.Query().Get("users") == "true" {
		rows, err := db.Query(`SELECT l.id, l.post_id, l.user_id, l.created_at
			FROM likes l WHERE l.post_id = ? ORDER BY l.created_at ASC`, postID)
		if err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
		defer rows.Close()
		likes := []models.Like{}
		for rows.Next() {
			var l models.Like
			if err := rows.Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt); err != nil {
				continue
			}
			likes = append(likes, l)
		}
		jsonResp(w, map[string]interface{}{"post_id": postID, "likes": count, "users": likes})
		return
	}

	jsonResp(w, map[string]interface{}{"post_id": postID, "likes": count})
}
