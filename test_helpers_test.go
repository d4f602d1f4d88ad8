package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulse/internal/testutil"
)

// setupTest swaps the global db for a fresh in-memory database and
// restores it when the test finishes.
func setupTest(t *testing.T) {
	t.Helper()
	old := db
	db = testutil.SetupTestDB(t)
	resetLoginRateLimit()
	t.Cleanup(func() {
		db.Close()
		db = old
	})
}

func sessionFor(t *testing.T, userID int) *http.Cookie {
	t.Helper()
	token := testutil.CreateSession(t, db, userID)
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func newRequest(t *testing.T, method, url, body string, cookie *http.Cookie) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.RemoteAddr = "127.0.0.1:12345"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

// decodeData unmarshals the "data" field of the standard envelope into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("Failed to decode response data: %v", err)
	}
}

// decodeBodyJSON unmarshals the whole response body, envelope included.
func decodeBodyJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp["error"]
}
