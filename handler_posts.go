package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pulse/internal/audit"
	"pulse/internal/models"
	"pulse/internal/store"
)

type PostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

const postSelect = `SELECT p.id, p.user_id, u.username, p.title, p.content,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	p.created_at, p.updated_at
	FROM posts p JOIN users u ON p.user_id = u.id`

func scanPost(row interface{ Scan(...interface{}) error }) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Author, &p.Title, &p.Content,
		&p.Comments, &p.Likes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func handleCreatePost(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req PostRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonErr(w, "title is required", 400)
		return
	}

	var id int
	err := db.QueryRow("INSERT INTO posts (user_id, title, content) VALUES (?, ?, ?) RETURNING id",
		u.ID, req.Title, req.Content).Scan(&id)
	if err != nil {
		jsonErr(w, "Failed to create post", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionCreate, "posts", itoa(id), "Created post: "+req.Title)
	broadcast("post", "create", id)
	notifyFollowers(u.ID, "new_post", u.Username+" published a post",
		req.Title, itoa(id))

	post, err := scanPost(db.QueryRow(postSelect+" WHERE p.id = ?", id))
	if err != nil {
		jsonErr(w, "Failed to load post", 500)
		return
	}
	jsonResp(w, post)
}

func handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)

	where := " WHERE 1=1"
	var args []interface{}

	if userID := r.URL.Query().Get("user"); userID != "" {
		where += " AND p.user_id = ?"
		args = append(args, userID)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		where += " AND (p.title LIKE ? OR p.content LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM posts p"+where, args...).Scan(&total); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	query := postSelect + where + " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	rows, err := db.Query(query, append(args, limit, offset)...)
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

func handleGetPost(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	post, err := scanPost(db.QueryRow(postSelect+" WHERE p.id = ?", id))
	if err == sql.ErrNoRows {
		jsonErr(w, "Post not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	jsonResp(w, post)
}

func handleUpdatePost(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	var ownerID int
	err = db.QueryRow("SELECT user_id FROM posts WHERE id = ?", id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		jsonErr(w, "Post not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if ownerID != u.ID && u.Role != "admin" {
		jsonErr(w, "Forbidden", 403)
		return
	}

	var req PostRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonErr(w, "title is required", 400)
		return
	}

	_, err = db.Exec("UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?",
		req.Title, req.Content, store.Now(), id)
	if err != nil {
		jsonErr(w, "Failed to update post", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionUpdate, "posts", idStr, "Updated post")
	broadcast("post", "update", id)

	post, err := scanPost(db.QueryRow(postSelect+" WHERE p.id = ?", id))
	if err != nil {
		jsonErr(w, "Failed to load post", 500)
		return
	}
	jsonResp(w, post)
}

func handleDeletePost(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid post id", 400)
		return
	}

	var ownerID int
	err = db.QueryRow("SELECT user_id FROM posts WHERE id = ?", id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		jsonErr(w, "Post not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if ownerID != u.ID && u.Role != "admin" {
		jsonErr(w, "Forbidden", 403)
		return
	}

	if _, err := db.Exec("DELETE FROM posts WHERE id = ?", id); err != nil {
		jsonErr(w, "Failed to delete post", 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionDelete, "posts", idStr,
		fmt.Sprintf("Deleted post %d", id))
	broadcast("post", "delete", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
