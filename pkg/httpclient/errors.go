package httpclient

import (
	"encoding/json"
	"strings"
)

// upstreamError covers the error bodies the backend emits: a plain
// {"message": "..."}, a validation list {"message": ["a", "b"]}, or the
// {"error": {"code", "message"}} envelope this service writes itself.
type upstreamError struct {
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// ExtractMessage pulls a human-readable message from an error body.
func ExtractMessage(body []byte) string {
	var ue upstreamError
	if json.Unmarshal(body, &ue) != nil {
		return ""
	}
	if m := rawToMessage(ue.Message); m != "" {
		return m
	}
	if len(ue.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(ue.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		return rawToMessage(ue.Error)
	}
	return ""
}

func rawToMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, ", ")
	}
	return ""
}
