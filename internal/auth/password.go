package auth

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// ValidatePasswordStrength checks password complexity.
func ValidatePasswordStrength(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}

	var (
		hasUpper   = regexp.MustCompile(`[A-Z]`).MatchString
		hasLower   = regexp.MustCompile(`[a-z]`).MatchString
		hasNumber  = regexp.MustCompile(`[0-9]`).MatchString
		hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=]`).MatchString
	)

	checks := 0
	if hasUpper(password) {
		checks++
	}
	if hasLower(password) {
		checks++
	}
	if hasNumber(password) {
		checks++
	}
	if hasSpecial(password) {
		checks++
	}

	if checks < 3 {
		return errors.New("password must contain at least 3 of: uppercase, lowercase, numbers, special characters")
	}

	return nil
}

// CheckPasswordHistory verifies a password hasn't been used recently.
func CheckPasswordHistory(db DB, userID int, newPassword string) error {
	rows, err := db.Query(`
		SELECT password_hash FROM password_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 5`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var oldHash string
		if err := rows.Scan(&oldHash); err != nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(oldHash), []byte(newPassword)) == nil {
			return ErrPasswordReused
		}
	}
	return nil
}

// AddPasswordHistory adds a password hash to the user's history.
func AddPasswordHistory(db DB, userID int, passwordHash string) error {
	_, err := db.Exec(
		"INSERT INTO password_history (user_id, password_hash) VALUES (?, ?)",
		userID, passwordHash)
	return err
}
