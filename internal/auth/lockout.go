package auth

import (
	"database/sql"
	"time"

	"pulse/internal/store"
)

const (
	MaxFailedLoginAttempts = 10
	AccountLockoutDuration = 15 * time.Minute
)

// IncrementFailedLoginAttempts increments the failed login counter and
// locks the account once the threshold is reached.
func IncrementFailedLoginAttempts(db DB, username string) error {
	if _, err := db.Exec(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1
		WHERE username = ?`, username); err != nil {
		return err
	}
	lockUntil := store.FormatTime(time.Now().Add(AccountLockoutDuration))
	_, err := db.Exec(`
		UPDATE users
		SET locked_until = ?
		WHERE username = ? AND failed_login_attempts >= ?`,
		lockUntil, username, MaxFailedLoginAttempts)
	return err
}

// ResetFailedLoginAttempts resets the failed login counter after successful login.
func ResetFailedLoginAttempts(db DB, username string) error {
	_, err := db.Exec(`
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE username = ?`, username)
	return err
}

// IsAccountLocked checks if an account is currently locked.
func IsAccountLocked(db DB, username string) (bool, error) {
	var lockedUntil sql.NullTime
	err := db.QueryRow("SELECT locked_until FROM users WHERE username = ?", username).Scan(&lockedUntil)
	if err != nil {
		return false, err
	}
	if !lockedUntil.Valid {
		return false, nil
	}
	return time.Now().UTC().Before(lockedUntil.Time), nil
}
