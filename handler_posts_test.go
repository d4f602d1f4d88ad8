package main

import (
	"net/http/httptest"
	"testing"

	"pulse/internal/models"
	"pulse/internal/testutil"
)

func TestHandleCreatePost(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "writer", "writer@example.com", "Str0ng-Passw0rd!", "user", true)

	w := httptest.NewRecorder()
	handleCreatePost(w, newRequest(t, "POST", "/api/v1/posts",
		`{"title":"First post","content":"Hello world"}`, sessionFor(t, id)))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var post models.Post
	decodeData(t, w, &post)
	if post.Title != "First post" || post.Author != "writer" {
		t.Errorf("Unexpected post: %+v", post)
	}
	if post.ID == 0 {
		t.Errorf("Expected post id to be assigned")
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE module = 'posts'").Scan(&count)
	if count != 1 {
		t.Errorf("Expected audit entry for post creation, got %d", count)
	}
}

func TestHandleCreatePost_MissingTitle(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "writer", "writer@example.com", "Str0ng-Passw0rd!", "user", true)

	w := httptest.NewRecorder()
	handleCreatePost(w, newRequest(t, "POST", "/api/v1/posts",
		`{"title":"  ","content":"no title"}`, sessionFor(t, id)))

	if w.Code != 400 {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleCreatePost_Unauthenticated(t *testing.T) {
	setupTest(t)

	w := httptest.NewRecorder()
	handleCreatePost(w, newRequest(t, "POST", "/api/v1/posts",
		`{"title":"nope","content":""}`, nil))

	if w.Code != 401 {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
}

func TestHandleCreatePost_NotifiesFollowers(t *testing.T) {
	setupTest(t)
	author := testutil.CreateUser(t, db, "author", "author@example.com", "Str0ng-Passw0rd!", "user", true)
	fan := testutil.CreateUser(t, db, "fan", "fan@example.com", "Str0ng-Passw0rd!", "user", true)
	db.Exec("INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)", fan, author)

	w := httptest.NewRecorder()
	handleCreatePost(w, newRequest(t, "POST", "/api/v1/posts",
		`{"title":"Notify me","content":""}`, sessionFor(t, author)))
	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE user_id = ? AND type = 'new_post'", fan).Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 new_post notification for follower, got %d", count)
	}
}

func TestHandleListPosts(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "lister", "lister@example.com", "Str0ng-Passw0rd!", "user", true)
	for i := 0; i < 3; i++ {
		testutil.CreatePost(t, db, id, "Post "+itoa(i), "body")
	}

	w := httptest.NewRecorder()
	handleListPosts(w, newRequest(t, "GET", "/api/v1/posts", "", nil))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []models.Post `json:"data"`
		Meta struct {
			Total int `json:"total"`
			Page  int `json:"page"`
			Limit int `json:"limit"`
		} `json:"meta"`
	}
	decodeBodyJSON(t, w, &resp)
	if resp.Meta.Total != 3 || len(resp.Data) != 3 {
		t.Errorf("Expected 3 posts, got total=%d len=%d", resp.Meta.Total, len(resp.Data))
	}
}

func TestHandleListPosts_Search(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "searcher", "searcher@example.com", "Str0ng-Passw0rd!", "user", true)
	testutil.CreatePost(t, db, id, "Golang tips", "channels and goroutines")
	testutil.CreatePost(t, db, id, "Gardening", "tomatoes")

	w := httptest.NewRecorder()
	handleListPosts(w, newRequest(t, "GET", "/api/v1/posts?search=golang", "", nil))

	var resp struct {
		Data []models.Post `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	decodeBodyJSON(t, w, &resp)
	if resp.Meta.Total != 1 {
		t.Errorf("Expected 1 match, got %d", resp.Meta.Total)
	}
}

func TestHandleListPosts_ByUser(t *testing.T) {
	setupTest(t)
	a := testutil.CreateUser(t, db, "ua", "ua@example.com", "Str0ng-Passw0rd!", "user", true)
	b := testutil.CreateUser(t, db, "ub", "ub@example.com", "Str0ng-Passw0rd!", "user", true)
	testutil.CreatePost(t, db, a, "A post", "")
	testutil.CreatePost(t, db, b, "B post", "")

	w := httptest.NewRecorder()
	handleListPosts(w, newRequest(t, "GET", "/api/v1/posts?user="+itoa(a), "", nil))

	var resp struct {
		Data []models.Post `json:"data"`
	}
	decodeBodyJSON(t, w, &resp)
	if len(resp.Data) != 1 || resp.Data[0].Author != "ua" {
		t.Errorf("Expected only ua's post, got %+v", resp.Data)
	}
}

func TestHandleGetPost_NotFound(t *testing.T) {
	setupTest(t)

	w := httptest.NewRecorder()
	handleGetPost(w, newRequest(t, "GET", "/api/v1/posts/999", "", nil), "999")

	if w.Code != 404 {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Post not found" {
		t.Errorf("Unexpected error message: %q", msg)
	}
}

func TestHandleGetPost_Counts(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "counter", "counter@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "Counted", "")
	testutil.CreateComment(t, db, postID, id, "first")
	testutil.CreateComment(t, db, postID, id, "second")
	db.Exec("INSERT INTO likes (post_id, user_id) VALUES (?, ?)", postID, id)

	w := httptest.NewRecorder()
	handleGetPost(w, newRequest(t, "GET", "/api/v1/posts/"+itoa(postID), "", nil), itoa(postID))

	var post models.Post
	decodeData(t, w, &post)
	if post.Comments != 2 || post.Likes != 1 {
		t.Errorf("Expected 2 comments and 1 like, got %d/%d", post.Comments, post.Likes)
	}
}

func TestHandleUpdatePost_Owner(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "Before", "old")

	w := httptest.NewRecorder()
	handleUpdatePost(w, newRequest(t, "PUT", "/api/v1/posts/"+itoa(postID),
		`{"title":"After","content":"new"}`, sessionFor(t, id)), itoa(postID))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var post models.Post
	decodeData(t, w, &post)
	if post.Title != "After" {
		t.Errorf("Expected updated title, got %q", post.Title)
	}
}

func TestHandleUpdatePost_NotOwner(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	other := testutil.CreateUser(t, db, "other", "other@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "Mine", "")

	w := httptest.NewRecorder()
	handleUpdatePost(w, newRequest(t, "PUT", "/api/v1/posts/"+itoa(postID),
		`{"title":"Hijacked","content":""}`, sessionFor(t, other)), itoa(postID))

	if w.Code != 403 {
		t.Fatalf("Expected status 403, got %d", w.Code)
	}
}

func TestHandleDeletePost_AdminOverride(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	admin := testutil.CreateUser(t, db, "boss", "boss@example.com", "Str0ng-Passw0rd!", "admin", true)
	postID := testutil.CreatePost(t, db, owner, "Doomed", "")

	w := httptest.NewRecorder()
	handleDeletePost(w, newRequest(t, "DELETE", "/api/v1/posts/"+itoa(postID), "", sessionFor(t, admin)), itoa(postID))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM posts WHERE id = ?", postID).Scan(&count)
	if count != 0 {
		t.Errorf("Expected post to be deleted")
	}
}

func TestHandleDeletePost_NotOwner(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	other := testutil.CreateUser(t, db, "other", "other@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "Safe", "")

	w := httptest.NewRecorder()
	handleDeletePost(w, newRequest(t, "DELETE", "/api/v1/posts/"+itoa(postID), "", sessionFor(t, other)), itoa(postID))

	if w.Code != 403 {
		t.Fatalf("Expected status 403, got %d", w.Code)
	}
}
