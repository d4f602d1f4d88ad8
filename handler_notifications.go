package main

import (
	"log"
	"net/http"

	"pulse/internal/models"
	"pulse/internal/store"
)

// notify records a notification for the user and pushes it over the
// WebSocket hub. Email delivery happens later in the background pass.
func notify(userID int, ntype, title, message, recordID string) {
	var id int
	err := db.QueryRow(`INSERT INTO notifications (user_id, type, title, message, record_id)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		userID, ntype, title, message, recordID).Scan(&id)
	if err != nil {
		log.Printf("notify: %v", err)
		return
	}
	broadcast("notification", "create", id)
}

// notifyFollowers fans a notification out to everyone following userID.
func notifyFollowers(userID int, ntype, title, message, recordID string) {
	rows, err := db.Query("SELECT follower_id FROM follows WHERE followed_id = ?", userID)
	if err != nil {
		log.Printf("notifyFollowers: %v", err)
		return
	}
	defer rows.Close()

	var followers []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err == nil {
			followers = append(followers, id)
		}
	}
	for _, id := range followers {
		notify(id, ntype, title, message, recordID)
	}
}

func handleListNotifications(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := `SELECT id, user_id, type, severity, title, message, record_id, read_at, created_at
		FROM notifications WHERE user_id = ?`
	if r.URL.Query().Get("unread") == "true" {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT 50`

	rows, err := db.Query(q, u.ID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	notifs := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Severity, &n.Title, &n.Message,
			&n.RecordID, &n.ReadAt, &n.CreatedAt); err != nil {
			continue
		}
		notifs = append(notifs, n)
	}
	jsonResp(w, notifs)
}

func handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, idStr string) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	res, err := db.Exec("UPDATE notifications SET read_at = ? WHERE id = ? AND user_id = ?",
		store.Now(), idStr, u.ID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "Notification not found", 404)
		return
	}
	jsonResp(w, map[string]string{"status": "read"})
}

func handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}
	if _, err := db.Exec("UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL",
		store.Now(), u.ID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	jsonResp(w, map[string]string{"status": "read"})
}

// emailPendingNotifications delivers unread notifications that haven't
// been emailed yet. Called from the background loop in main.
func emailPendingNotifications() {
	enabled, _ := emailEnabled()
	if !enabled {
		return
	}

	rows, err := db.Query(`SELECT n.id, n.type, n.title, n.message, u.email
		FROM notifications n JOIN users u ON n.user_id = u.id
		WHERE n.emailed = 0 AND n.read_at IS NULL AND u.active = 1
		ORDER BY n.created_at ASC LIMIT 100`)
	if err != nil {
		log.Printf("email notifications: %v", err)
		return
	}
	defer rows.Close()

	type pending struct {
		id                    int
		ntype, title, msg, to string
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.ntype, &p.title, &p.msg, &p.to); err == nil {
			batch = append(batch, p)
		}
	}

	for _, p := range batch {
		body := p.title
		if p.msg != "" {
			body += "\n\n" + p.msg
		}
		if err := sendEmail(p.to, p.title, body, p.ntype); err != nil {
			log.Printf("email notification %d: %v", p.id, err)
			continue
		}
		db.Exec("UPDATE notifications SET emailed = 1 WHERE id = ?", p.id)
	}
}
