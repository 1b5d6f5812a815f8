package utils

import (
	"fmt"
	"regexp"
)

// Edited hour counts must stay within a sane monthly range.
const (
	MinHours = 1
	MaxHours = 300
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateHours validates an edited hour count
func ValidateHours(hours int) error {
	if hours < MinHours || hours > MaxHours {
		return fmt.Errorf("hours must be between %d and %d: %d", MinHours, MaxHours, hours)
	}
	return nil
}
