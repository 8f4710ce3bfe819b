package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/reviewbot/core/telegram/callbacks"
)

func TestEncodeDecode(t *testing.T) {
	cases := []Action{
		Approve{City: "warsaw", ID: 42},
		Reject{City: "wroclaw", ID: 7},
		UserReviews{User: 123456789},
		Navigate{User: 123456789, Page: 3},
		SearchPrev{Page: 1},
		SearchNext{Page: 0},
		HideReviews{},
	}
	for _, a := range cases {
		tok, err := Encode(a)
		require.NoError(t, err, a.Kind())
		assert.Equal(t, string(a.Kind()), tok.Unique)

		got, err := Decode(tok.Unique, tok.Data)
		require.NoError(t, err, a.Kind())
		assert.Equal(t, a, got)
	}
}

func TestEncodeWireShape(t *testing.T) {
	tok := MustEncode(Approve{City: "warsaw", ID: 42})
	assert.Equal(t, `{"c":"warsaw","i":42}`, tok.Data)
	assert.Empty(t, MustEncode(HideReviews{}).Data)
}

func TestCityWithDelimiterSurvives(t *testing.T) {
	a := Reject{City: "new_york|x", ID: 5}
	tok := MustEncode(a)
	got, err := Decode(tok.Unique, tok.Data)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestEncodeTooLong(t *testing.T) {
	_, err := Encode(Approve{City: strings.Repeat("x", 60), ID: 1})
	assert.ErrorIs(t, err, callbacks.ErrTooLong)
}

func TestLargestTokensFit(t *testing.T) {
	tok := MustEncode(Navigate{User: 9_999_999_999_999, Page: 99_999})
	assert.LessOrEqual(t, len(tok.Unique)+len(tok.Data)+2, callbacks.MaxDataLen)
}

func TestDecodeMalformed(t *testing.T) {
	bad := [][2]string{
		{"explode", ""},
		{"approve", "not json"},
		{"approve", `{"c":"warsaw"}`},
		{"approve", `{"c":"warsaw","i":1,"extra":true}`},
		{"navigate", `{"u":1,"p":-1}`},
		{"user_reviews", ""},
		{"search_next", `{"p":"one"}`},
	}
	for _, b := range bad {
		_, err := Decode(b[0], b[1])
		assert.True(t, errors.Is(err, ErrMalformed), "%v: %v", b, err)
	}
}
