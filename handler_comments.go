package main

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"pulse/internal/audit"
	"pulse/internal/models"
)

type CommentRequest struct {
	Content string `json:"content"`
}

func handleCreateComment(w http.ResponseWriter, r *http.Request, postIDStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := strconv.Atoi(postIDStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	var req CommentRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonErr(w, "content is required", 400)
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

	var id int
	err = db.QueryRow("INSERT INTO comments (post_id, user_id, content) VALUES (?, ?, ?) RETURNING id",
		postID, u.ID, req.Content).Scan(&id)
	if err != nil {
		jsonErr(w, "Failed to create comment", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionCreate, "comments", itoa(id), "Commented on post "+postIDStr)
	broadcast("comment", "create", id)
	if postOwner != u.ID {
		notify(postOwner, "new_comment", u.Username+" commented on your post",
			req.Content, postIDStr)
	}

	var c models.Comment
	err = db.QueryRow(`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at
		FROM comments c JOIN users u ON c.user_id = u.id WHERE c.id = ?`, id).
		Scan(&c.ID, &c.PostID, &c.UserID, &c.Author, &c.Content, &c.CreatedAt)
	if err != nil {
		jsonErr(w, "Failed to load comment", 500)
		return
	}
	jsonResp(w, c)
}

func handleListComments(w http.ResponseWriter, r *http.Request, postIDStr string) {
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

	rows, err := db.Query(`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at
		FROM comments c JOIN users u ON c.user_id = u.id
		WHERE c.post_id = ? ORDER BY c.created_at ASC, c.id ASC`, postID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			continue
		}
		comments = append(comments, c)
	}
	jsonResp(w, comments)
}

// handleDeleteComment removes a comment. Allowed for the comment author,
// the owner of the post it sits on, and moderators/admins.
func handleDeleteComment(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid comment id", 400)
		return
	}

	var authorID, postOwnerID int
	err = db.QueryRow(`SELECT c.user_id, p.user_id FROM comments c
		JOIN posts p ON c.post_id = p.id WHERE c.id = ?`, id).
		Scan(&authorID, &postOwnerID)
	if err == sql.ErrNoRows {
		jsonErr(w, "Comment not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if u.ID != authorID && u.ID != postOwnerID && u.Role != "admin" && u.Role != "moderator" {
		jsonErr(w, "Forbidden", 403)
		return
	}

	if _, err := db.Exec("DELETE FROM comments WHERE id = ?", id); err != nil {
		jsonErr(w, "Failed to delete comment", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionDelete, "comments", idStr, "Deleted comment")
	broadcast("comment", "delete", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
