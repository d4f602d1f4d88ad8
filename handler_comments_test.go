package main

import (
	"net/http/httptest"
	"testing"

	"pulse/internal/models"
	"pulse/internal/testutil"
)

func TestHandleCreateComment(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	commenter := testutil.CreateUser(t, db, "commenter", "commenter@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "Discuss", "")

	w := httptest.NewRecorder()
	handleCreateComment(w, newRequest(t, "POST", "/api/v1/posts/1/comments",
		`{"content":"Nice post"}`, sessionFor(t, commenter)), itoa(postID))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var c models.Comment
	decodeData(t, w, &c)
	if c.Content != "Nice post" || c.Author != "commenter" || c.PostID != postID {
		t.Errorf("Unexpected comment: %+v", c)
	}

	// Post owner gets notified
	var count int
	db.QueryRow("SELECT COUNT(*) FROM notifications WHERE user_id = ? AND type = 'new_comment'", owner).Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 new_comment notification, got %d", count)
	}
}

func TestHandleCreateComment_OwnPostNoNotification(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "Self reply", "")

	w := httptest.NewRecorder()
	handleCreateComment(w, newRequest(t, "POST", "/api/v1/posts/1/comments",
		`{"content":"replying to myself"}`, sessionFor(t, owner)), itoa(postID))
	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM notifications").Scan(&count)
	if count != 0 {
		t.Errorf("Expected no notification for own comment, got %d", count)
	}
}

func TestHandleCreateComment_PostNotFound(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "lost", "lost@example.com", "Str0ng-Passw0rd!", "user", true)

	w := httptest.NewRecorder()
	handleCreateComment(w, newRequest(t, "POST", "/api/v1/posts/999/comments",
		`{"content":"into the void"}`, sessionFor(t, id)), "999")

	if w.Code != 404 {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Post not found" {
		t.Errorf("Unexpected error message: %q", msg)
	}
}

func TestHandleCreateComment_EmptyContent(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "quiet", "quiet@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "A post", "")

	w := httptest.NewRecorder()
	handleCreateComment(w, newRequest(t, "POST", "/api/v1/posts/1/comments",
		`{"content":"   "}`, sessionFor(t, id)), itoa(postID))

	if w.Code != 400 {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleListComments_Order(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "orderer", "orderer@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "Ordered", "")
	testutil.CreateComment(t, db, postID, id, "first")
	testutil.CreateComment(t, db, postID, id, "second")

	w := httptest.NewRecorder()
	handleListComments(w, newRequest(t, "GET", "/api/v1/posts/1/comments", "", nil), itoa(postID))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var comments []models.Comment
	decodeData(t, w, &comments)
	if len(comments) != 2 {
		t.Fatalf("Expected 2 comments, got %d", len(comments))
	}
	if comments[0].Content != "first" || comments[1].Content != "second" {
		t.Errorf("Expected oldest-first order, got %q then %q", comments[0].Content, comments[1].Content)
	}
}

func TestHandleListComments_PostNotFound(t *testing.T) {
	setupTest(t)

	w := httptest.NewRecorder()
	handleListComments(w, newRequest(t, "GET", "/api/v1/posts/42/comments", "", nil), "42")

	if w.Code != 404 {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
}

func TestHandleDeleteComment_Author(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "author", "author@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "A post", "")
	commentID := testutil.CreateComment(t, db, postID, id, "delete me")

	w := httptest.NewRecorder()
	handleDeleteComment(w, newRequest(t, "DELETE", "/api/v1/comments/1", "", sessionFor(t, id)), itoa(commentID))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM comments WHERE id = ?", commentID).Scan(&count)
	if count != 0 {
		t.Errorf("Expected comment to be deleted")
	}
}

func TestHandleDeleteComment_PostOwner(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	troll := testutil.CreateUser(t, db, "troll", "troll@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "My post", "")
	commentID := testutil.CreateComment(t, db, postID, troll, "spam")

	w := httptest.NewRecorder()
	handleDeleteComment(w, newRequest(t, "DELETE", "/api/v1/comments/1", "", sessionFor(t, owner)), itoa(commentID))

	if w.Code != 200 {
		t.Fatalf("Expected post owner to be able to delete, got %d", w.Code)
	}
}

func TestHandleDeleteComment_Moderator(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	mod := testutil.CreateUser(t, db, "mod", "mod@example.com", "Str0ng-Passw0rd!", "moderator", true)
	postID := testutil.CreatePost(t, db, owner, "Moderated", "")
	commentID := testutil.CreateComment(t, db, postID, owner, "off-topic")

	w := httptest.NewRecorder()
	handleDeleteComment(w, newRequest(t, "DELETE", "/api/v1/comments/1", "", sessionFor(t, mod)), itoa(commentID))

	if w.Code != 200 {
		t.Fatalf("Expected moderator to be able to delete, got %d: %s", w.Code, w.Body.String())
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM comments WHERE id = ?", commentID).Scan(&count)
	if count != 0 {
		t.Errorf("Expected comment to be deleted")
	}
}

func TestHandleDeleteComment_Forbidden(t *testing.T) {
	setupTest(t)
	owner := testutil.CreateUser(t, db, "owner", "owner@example.com", "Str0ng-Passw0rd!", "user", true)
	bystander := testutil.CreateUser(t, db, "bystander", "bystander@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, owner, "My post", "")
	commentID := testutil.CreateComment(t, db, postID, owner, "mine")

	w := httptest.NewRecorder()
	handleDeleteComment(w, newRequest(t, "DELETE", "/api/v1/comments/1", "", sessionFor(t, bystander)), itoa(commentID))

	if w.Code != 403 {
		t.Fatalf("Expected status 403, got %d", w.Code)
	}
}
