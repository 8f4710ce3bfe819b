package callbacks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxDataLen is Telegram's limit for callback_data in bytes.
const MaxDataLen = 64

// ErrTooLong is returned when an encoded button would exceed MaxDataLen.
var ErrTooLong = errors.New("callbacks: callback data exceeds 64 bytes")

// EncodePayload marshals v as compact JSON and checks the resulting button data
// against Telegram's limit. Telebot sends data as "\f<unique>|<payload>".
func EncodePayload(unique string, v any) (string, error) {
	var data string
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("callbacks: encode %s: %w", unique, err)
		}
		data = string(raw)
		if data == "{}" || data == "null" {
			data = ""
		}
	}
	if len(unique)+len(data)+2 > MaxDataLen {
		return "", fmt.Errorf("%w: %s", ErrTooLong, unique)
	}
	return data, nil
}

// DecodePayload unmarshals a JSON payload into dst rejecting unknown fields.
// An empty payload decodes as an empty object.
func DecodePayload(data string, dst any) error {
	if data == "" {
		data = "{}"
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("callbacks: decode payload: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("callbacks: decode payload: trailing data")
	}
	return nil
}
