// Package action defines the typed button actions of the bot and their wire
// form. Every action is encoded as a telebot callback endpoint (the kind) plus
// a compact JSON payload, so ids and city codes never need delimiter escaping.
package action

import (
	"errors"
	"fmt"

	"github.com/m3rciful/reviewbot/core/telegram/callbacks"
)

// Kind names an action and doubles as the telebot callback unique.
type Kind string

const (
	KindApprove     Kind = "approve"
	KindReject      Kind = "reject"
	KindUserReviews Kind = "user_reviews"
	KindNavigate    Kind = "navigate"
	KindSearchPrev  Kind = "search_prev"
	KindSearchNext  Kind = "search_next"
	KindHideReviews Kind = "hide_reviews"
)

// Kinds lists every action kind in registration order.
var Kinds = []Kind{
	KindApprove, KindReject, KindUserReviews, KindNavigate,
	KindSearchPrev, KindSearchNext, KindHideReviews,
}

// ErrMalformed is returned for unknown kinds or payloads that do not decode
// into the kind's shape.
var ErrMalformed = errors.New("action: malformed token")

// Action is one of the concrete action types below.
type Action interface {
	Kind() Kind
}

// Approve moves the pending review (City, ID) to approved.
type Approve struct {
	City string `json:"c"`
	ID   int64  `json:"i"`
}

// Reject deletes the pending review (City, ID).
type Reject struct {
	City string `json:"c"`
	ID   int64  `json:"i"`
}

// UserReviews opens the first page of a user's reviews for the moderator.
type UserReviews struct {
	User int64 `json:"u"`
}

// Navigate shows Page of a user's reviews.
type Navigate struct {
	User int64 `json:"u"`
	Page int   `json:"p"`
}

// SearchPrev and SearchNext carry the page currently displayed.
type SearchPrev struct {
	Page int `json:"p"`
}

type SearchNext struct {
	Page int `json:"p"`
}

// HideReviews deletes the rendered user-reviews list.
type HideReviews struct{}

func (Approve) Kind() Kind     { return KindApprove }
func (Reject) Kind() Kind      { return KindReject }
func (UserReviews) Kind() Kind { return KindUserReviews }
func (Navigate) Kind() Kind    { return KindNavigate }
func (SearchPrev) Kind() Kind  { return KindSearchPrev }
func (SearchNext) Kind() Kind  { return KindSearchNext }
func (HideReviews) Kind() Kind { return KindHideReviews }

// Token is the wire form of an action.
type Token struct {
	Unique string
	Data   string
}

// Encode serializes a into its callback endpoint and payload.
func Encode(a Action) (Token, error) {
	if a == nil {
		return Token{}, fmt.Errorf("%w: nil action", ErrMalformed)
	}
	unique := string(a.Kind())
	data, err := callbacks.EncodePayload(unique, a)
	if err != nil {
		return Token{}, err
	}
	return Token{Unique: unique, Data: data}, nil
}

// MustEncode is Encode for actions whose size is known to fit.
func MustEncode(a Action) Token {
	t, err := Encode(a)
	if err != nil {
		panic(err)
	}
	return t
}

// Decode parses the callback endpoint and payload back into a typed action.
func Decode(unique, data string) (Action, error) {
	var (
		a   Action
		err error
	)
	switch Kind(unique) {
	case KindApprove:
		var v Approve
		err = callbacks.DecodePayload(data, &v)
		if err == nil && (v.ID <= 0 || v.City == "") {
			err = errors.New("missing review key")
		}
		a = v
	case KindReject:
		var v Reject
		err = callbacks.DecodePayload(data, &v)
		if err == nil && (v.ID <= 0 || v.City == "") {
			err = errors.New("missing review key")
		}
		a = v
	case KindUserReviews:
		var v UserReviews
		err = callbacks.DecodePayload(data, &v)
		if err == nil && v.User == 0 {
			err = errors.New("missing user")
		}
		a = v
	case KindNavigate:
		var v Navigate
		err = callbacks.DecodePayload(data, &v)
		if err == nil && (v.User == 0 || v.Page < 0) {
			err = errors.New("bad navigation target")
		}
		a = v
	case KindSearchPrev:
		var v SearchPrev
		err = callbacks.DecodePayload(data, &v)
		if err == nil && v.Page < 0 {
			err = errors.New("negative page")
		}
		a = v
	case KindSearchNext:
		var v SearchNext
		err = callbacks.DecodePayload(data, &v)
		if err == nil && v.Page < 0 {
			err = errors.New("negative page")
		}
		a = v
	case KindHideReviews:
		var v HideReviews
		err = callbacks.DecodePayload(data, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, unique)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, unique, err)
	}
	return a, nil
}
