package main

import (
	"net/http/httptest"
	"testing"

	"pulse/internal/testutil"
)

func TestHandleHealth(t *testing.T) {
	setupTest(t)

	w := httptest.NewRecorder()
	handleHealth(w, newRequest(t, "GET", "/healthz", "", nil))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Driver string `json:"driver"`
	}
	decodeData(t, w, &resp)
	if resp.Status != "ok" || resp.Driver != "sqlite" {
		t.Errorf("Unexpected health payload: %+v", resp)
	}
}

func TestHandleDashboard(t *testing.T) {
	setupTest(t)
	id := testutil.CreateUser(t, db, "dash", "dash@example.com", "Str0ng-Passw0rd!", "user", true)
	postID := testutil.CreatePost(t, db, id, "Today's post", "")
	testutil.CreateComment(t, db, postID, id, "today's comment")
	db.Exec("INSERT INTO likes (post_id, user_id) VALUES (?, ?)", postID, id)

	w := httptest.NewRecorder()
	handleDashboard(w, newRequest(t, "GET", "/api/v1/dashboard", "", sessionFor(t, id)))

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var counts map[string]int
	decodeData(t, w, &counts)
	if counts["users"] != 1 || counts["posts"] != 1 || counts["comments"] != 1 || counts["likes"] != 1 {
		t.Errorf("Unexpected totals: %+v", counts)
	}
	if counts["posts_today"] != 1 {
		t.Errorf("Expected posts_today to count today's post, got %d", counts["posts_today"])
	}
}

func TestHandleDashboard_Unauthenticated(t *testing.T) {
	setupTest(t)

	w := httptest.NewRecorder()
	handleDashboard(w, newRequest(t, "GET", "/api/v1/dashboard", "", nil))

	if w.Code != 401 {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
}
