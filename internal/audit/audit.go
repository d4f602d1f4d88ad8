// Package audit records who did what to which record.
package audit

import (
	"database/sql"
	"log"

	"pulse/internal/websocket"
)

// Action constants.
const (
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionExport  = "EXPORT"
	ActionLogin   = "LOGIN"
	ActionLogout  = "LOGOUT"
	ActionApprove = "APPROVE"
)

// DB is the minimal database surface the audit log needs.
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Log writes an audit entry and notifies connected clients.
func Log(db DB, hub *websocket.Hub, username, action, module, recordID, summary string) {
	_, err := db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES (?, ?, ?, ?, ?)",
		username, action, module, recordID, summary)
	if err != nil {
		log.Printf("audit log error: %v", err)
	}
	if hub != nil {
		hub.Broadcast(websocket.Event{
			Type:   "audit_" + action,
			ID:     recordID,
			Action: action,
		})
	}
}
