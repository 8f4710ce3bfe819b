// Package review holds the review and user records, the store contract and the
// approved-review search built on top of it.
package review

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Status is the moderation status of a stored review. Rejected reviews are
// deleted, so there is no rejected status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	// ErrNotFound reports a missing row, or a review that is no longer pending
	// when a moderation transition is requested.
	ErrNotFound = errors.New("review: not found")
	// ErrInvalidRating is returned for ratings outside [MinRating, MaxRating].
	ErrInvalidRating = errors.New("review: rating out of range")
	// ErrInvalidEmployer is returned for empty or non Latin-script employer names.
	ErrInvalidEmployer = errors.New("review: employer must be latin text")
)

// Review is an employer review. Employer is stored case-preserved and matched
// case-insensitively.
type Review struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	UserName    string    `db:"user_name"`
	Employer    string    `db:"employer"`
	Rating      int       `db:"rating"`
	Comment     string    `db:"comment"`
	City        string    `db:"city"`
	Language    string    `db:"language"`
	SubmittedAt time.Time `db:"submitted_at"`
	Status      Status    `db:"status"`
}

// Validate checks the invariants of a review about to be stored.
func (r Review) Validate() error {
	if err := ValidateRating(r.Rating); err != nil {
		return err
	}
	if !IsLatinText(r.Employer) {
		return ErrInvalidEmployer
	}
	if strings.TrimSpace(r.City) == "" {
		return errors.New("review: city is required")
	}
	return nil
}

// User is the persisted profile of a chat user. Empty Language or City means
// the user has not picked one yet.
type User struct {
	ID          int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
	Language    string `db:"language"`
	City        string `db:"city"`
}

// ValidateRating reports ErrInvalidRating unless 1 <= r <= 5.
func ValidateRating(r int) error {
	if r < MinRating || r > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// ParseRating parses user input as an integer rating in [MinRating, MaxRating].
func ParseRating(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidRating
	}
	if err := ValidateRating(n); err != nil {
		return 0, err
	}
	return n, nil
}

// IsLatinText reports whether s consists only of printable ASCII and carries at
// least one ASCII letter. Spaces, digits and punctuation are allowed so that
// names like "Acme Corp." and "3M" pass.
func IsLatinText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	letters := 0
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			letters++
		}
	}
	return letters > 0
}

// NormalizeEmployer trims and collapses inner whitespace, keeping case.
func NormalizeEmployer(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
