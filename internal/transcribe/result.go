package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResult reports an envelope that does not match the
// {success, text, error?} schema.
var ErrMalformedResult = errors.New("failed to parse transcription result")

// fallbackEnvelope is returned verbatim when a Result cannot be encoded.
const fallbackEnvelope = `{"success":false,"text":"","error":"JSON encoding failed"}`

type Result struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func success(text string) Result {
	return Result{Success: true, Text: text}
}

func failure(message string) Result {
	return Result{Error: message}
}

// Encode renders r as the JSON envelope handed across the C boundary.
func Encode(r Result) string {
	return encodeWith(r, json.Marshal)
}

func encodeWith(r Result, marshal func(any) ([]byte, error)) string {
	raw, err := marshal(r)
	if err != nil {
		return fallbackEnvelope
	}
	return string(raw)
}

// ParseResult decodes an envelope produced by Encode.
func ParseResult(envelope string) (Result, error) {
	var payload struct {
		Success *bool   `json:"success"`
		Text    *string `json:"text"`
		Error   string  `json:"error"`
	}
	if err := json.Unmarshal([]byte(envelope), &payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if payload.Success == nil || payload.Text == nil {
		return Result{}, fmt.Errorf("%w: missing success or text", ErrMalformedResult)
	}
	return Result{Success: *payload.Success, Text: *payload.Text, Error: payload.Error}, nil
}
