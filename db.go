package main

import (
	"fmt"
	"log"
	"time"

	"pulse/internal/config"
	"pulse/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var db *store.DB

// initDB opens the database, waits for it to answer, applies migrations
// and seeds initial rows.
func initDB(cfg *config.Config) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	db, err = store.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}

	if cfg.DatabaseURL != "" {
		log.Printf("waiting for database to accept connections")
		db.WaitReady(2 * time.Second)
	}

	if err := db.Migrate(); err != nil {
		return err
	}
	return seedDB(cfg)
}

// seedDB creates the initial admin account and the email configuration
// row when the database is empty.
func seedDB(cfg *config.Config) error {
	var userCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
		return fmt.Errorf("seed: count users: %w", err)
	}
	if userCount == 0 {
		password := cfg.AdminPassword
		if password == "" {
			password = "admin"
			log.Printf("seeding admin user with default password; set PULSE_ADMIN_PASSWORD")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := db.Exec(
			"INSERT INTO users (username, email, password_hash, display_name, role) VALUES (?, ?, ?, ?, ?)",
			"admin", "admin@example.com", string(hash), "Administrator", "admin"); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	enabled := 0
	if cfg.Mail.Username != "" && cfg.Mail.From != "" {
		enabled = 1
	}
	_, err := db.Exec(`INSERT INTO email_config (id, smtp_host, smtp_port, smtp_user, smtp_password, from_address, from_name, enabled)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		cfg.Mail.Server, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, cfg.Mail.FromName, enabled)
	if err != nil {
		return fmt.Errorf("seed email config: %w", err)
	}
	return nil
}
