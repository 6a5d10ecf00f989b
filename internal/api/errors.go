package api

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Error is the single failure type surfaced by the client. Network, HTTP and
// decoding failures all collapse into a human-readable message.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Message returns the text to show for err. Non-transport errors fall back to
// err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func statusError(code int, body []byte) *Error {
	if gjson.ValidBytes(body) {
		if detail := gjson.GetBytes(body, "detail"); detail.Type == gjson.String && detail.String() != "" {
			return &Error{Message: detail.String()}
		}
	}
	return &Error{Message: fmt.Sprintf("Request failed: %d", code)}
}

func networkError(err error) *Error {
	return &Error{Message: err.Error()}
}

func decodeError(err error) *Error {
	return &Error{Message: fmt.Sprintf("invalid response: %v", err)}
}
