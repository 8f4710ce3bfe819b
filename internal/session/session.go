// Package session keeps the transient per-user conversation state: the current
// step, the chosen language and city, the review draft and the search context.
package session

import (
	"context"
	"time"
)

// State identifies a step of the conversation.
type State string

const (
	// StateNew is the state of a user the bot has not talked to yet.
	StateNew            State = ""
	StateLanguage       State = "language"
	StateCity           State = "city"
	StateIdle           State = "idle"
	StateReviewEmployer State = "review_employer"
	StateReviewRating   State = "review_rating"
	StateReviewComment  State = "review_comment"
	StateSearchEmployer State = "search_employer"
)

// Draft holds the review being entered.
type Draft struct {
	Employer string `json:"employer,omitempty"`
	Rating   int    `json:"rating,omitempty"`
}

// Search is the context of the last shown search result.
type Search struct {
	Query      string `json:"query"`
	Employer   string `json:"employer"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	PageSize   int    `json:"page_size"`
	// MessageID is the results message the navigation buttons belong to.
	MessageID int `json:"message_id,omitempty"`
}

// Session is one user's conversation state.
type Session struct {
	UserID    int64     `json:"user_id"`
	State     State     `json:"state"`
	Language  string    `json:"language,omitempty"`
	City      string    `json:"city,omitempty"`
	Draft     *Draft    `json:"draft,omitempty"`
	Search    *Search   `json:"search,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InProgress reports whether the user is inside a step that consumes free text.
func (s Session) InProgress() bool {
	return s.State != StateNew && s.State != StateIdle
}

// Reset drops everything but the user id; used when (re)entering language
// selection.
func (s *Session) Reset() {
	*s = Session{UserID: s.UserID, State: StateLanguage}
}

// FinishFlow returns to the menu discarding the review draft. The search
// context survives so result pages stay navigable.
func (s *Session) FinishFlow() {
	s.State = StateIdle
	s.Draft = nil
}

// Store persists sessions keyed by user id. Get never fails on a missing
// session; it returns a StateNew session instead.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context, userID int64) error
}
