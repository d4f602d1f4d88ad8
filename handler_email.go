package main

import (
	"fmt"
	"net/http"
	"net/smtp"

	"pulse/internal/audit"
	"pulse/internal/models"
)

// SMTPSendFunc is the function used to send emails. Override in tests.
var SMTPSendFunc = smtp.SendMail

func emailEnabled() (bool, error) {
	var enabled int
	err := db.QueryRow("SELECT enabled FROM email_config WHERE id = 1").Scan(&enabled)
	if err != nil {
		return false, err
	}
	return enabled == 1, nil
}

// sendEmail delivers a message using the stored SMTP configuration and
// records the outcome in email_log.
func sendEmail(to, subject, body, eventType string) error {
	var c models.EmailConfig
	err := db.QueryRow(`SELECT COALESCE(smtp_host,''), COALESCE(smtp_port,587), COALESCE(smtp_user,''),
		COALESCE(smtp_password,''), COALESCE(from_address,''), COALESCE(from_name,'Pulse'), enabled
		FROM email_config WHERE id = 1`).
		Scan(&c.SMTPHost, &c.SMTPPort, &c.SMTPUser, &c.SMTPPassword, &c.FromAddress, &c.FromName, &c.Enabled)
	if err != nil {
		return fmt.Errorf("load email config: %w", err)
	}
	if c.Enabled == 0 {
		return fmt.Errorf("email notifications are disabled")
	}
	if c.SMTPHost == "" || c.FromAddress == "" {
		return fmt.Errorf("email configuration incomplete")
	}

	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		c.FromName, c.FromAddress, to, subject, body))

	addr := fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
	var auth smtp.Auth
	if c.SMTPUser != "" {
		auth = smtp.PlainAuth("", c.SMTPUser, c.SMTPPassword, c.SMTPHost)
	}

	sendErr := SMTPSendFunc(addr, auth, c.FromAddress, []string{to}, msg)

	status := "sent"
	errMsg := ""
	if sendErr != nil {
		status = "failed"
		errMsg = sendErr.Error()
	}
	db.Exec("INSERT INTO email_log (to_address, subject, body, event_type, status, error) VALUES (?, ?, ?, ?, ?, ?)",
		to, subject, body, eventType, status, errMsg)

	return sendErr
}

func handleGetEmailConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var c models.EmailConfig
	err := db.QueryRow(`SELECT id, COALESCE(smtp_host,''), COALESCE(smtp_port,587), COALESCE(smtp_user,''),
		COALESCE(smtp_password,''), COALESCE(from_address,''), COALESCE(from_name,'Pulse'), enabled
		FROM email_config WHERE id = 1`).
		Scan(&c.ID, &c.SMTPHost, &c.SMTPPort, &c.SMTPUser, &c.SMTPPassword, &c.FromAddress, &c.FromName, &c.Enabled)
	if err != nil {
		jsonResp(w, models.EmailConfig{ID: 1, SMTPPort: 587, FromName: "Pulse"})
		return
	}
	if c.SMTPPassword != "" {
		c.SMTPPassword = "****"
	}
	jsonResp(w, c)
}

func handleUpdateEmailConfig(w http.ResponseWriter, r *http.Request) {
	u, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var c models.EmailConfig
	if err := decodeBody(r, &c); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	if c.SMTPPassword == "****" {
		var existing string
		db.QueryRow("SELECT COALESCE(smtp_password,'') FROM email_config WHERE id = 1").Scan(&existing)
		c.SMTPPassword = existing
	}
	if c.SMTPPort <= 0 {
		c.SMTPPort = 587
	}

	_, err := db.Exec(`INSERT INTO email_config (id, smtp_host, smtp_port, smtp_user, smtp_password, from_address, from_name, enabled)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			smtp_host = excluded.smtp_host, smtp_port = excluded.smtp_port,
			smtp_user = excluded.smtp_user, smtp_password = excluded.smtp_password,
			from_address = excluded.from_address, from_name = excluded.from_name,
			enabled = excluded.enabled`,
		c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.FromAddress, c.FromName, c.Enabled)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, wsHub, u.Username, audit.ActionUpdate, "email_config", "1", "Updated email configuration")
	c.ID = 1
	if c.SMTPPassword != "" {
		c.SMTPPassword = "****"
	}
	jsonResp(w, c)
}

func handleTestEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var body struct {
		To string `json:"to"`
	}
	if err := decodeBody(r, &body); err != nil {
		jsonErr(w, "invalid request body", 400)
		return
	}
	if body.To == "" {
		jsonErr(w, "to address required", 400)
		return
	}

	audit.Log(db, wsHub, u.Username, "test_email", "email_config", "1", "Test email to "+body.To)

	if err := sendEmail(body.To, "Pulse Test Email",
		"This is a test email from Pulse. If you received this, email notifications are configured correctly.", "test"); err != nil {
		jsonErr(w, "send failed: "+err.Error(), 500)
		return
	}
	jsonResp(w, map[string]string{"status": "sent", "to": body.To})
}

func handleListEmailLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	rows, err := db.Query(`SELECT id, to_address, subject, COALESCE(body,''), COALESCE(event_type,''),
		status, COALESCE(error,''), sent_at FROM email_log ORDER BY sent_at DESC, id DESC LIMIT 100`)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.EmailLogEntry{}
	for rows.Next() {
		var e models.EmailLogEntry
		if err := rows.Scan(&e.ID, &e.To, &e.Subject, &e.Body, &e.EventType, &e.Status, &e.Error, &e.SentAt); err != nil {
			continue
		}
		items = append(items, e)
	}
	jsonResp(w, items)
}
