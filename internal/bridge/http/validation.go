package http

import (
	"bytes"
	"encoding/json"
	"strings"

	"tgbridge/internal/bridge/ports"
)

// Validation messages returned to /send callers.
const (
	msgInvalidJSON     = "Invalid JSON body"
	msgFieldsRequired  = "chat_id and message are required"
	msgChatIDType      = "chat_id must be a string or number"
	msgChatIDInteger   = "chat_id must be an integer"
	msgChatIDEmpty     = "chat_id must not be empty"
	msgMessageNonEmpty = "message must be a non-empty string"
)

// ValidationError reports malformed /send input. It never reaches the core.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type sendRequest struct {
	Chat    ports.ChatRef
	Message string
}

// parseSendRequest validates the raw body field by field so that type errors
// map to precise messages. Anything that is valid JSON but not an object is
// treated as an empty object.
func parseSendRequest(body []byte) (sendRequest, *ValidationError) {
	body = bytes.TrimSpace(body)
	var fields map[string]json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			return sendRequest{}, &ValidationError{Message: msgInvalidJSON}
		}
		if err := json.Unmarshal(body, &fields); err != nil {
			fields = nil
		}
	}

	chatRaw, hasChat := fields["chat_id"]
	messageRaw, hasMessage := fields["message"]
	if !hasChat || !hasMessage {
		return sendRequest{}, &ValidationError{Message: msgFieldsRequired}
	}

	chat, verr := parseChatID(chatRaw)
	if verr != nil {
		return sendRequest{}, verr
	}

	var message string
	if err := json.Unmarshal(messageRaw, &message); err != nil || strings.TrimSpace(message) == "" {
		return sendRequest{}, &ValidationError{Message: msgMessageNonEmpty}
	}

	return sendRequest{Chat: chat, Message: message}, nil
}

func parseChatID(raw json.RawMessage) (ports.ChatRef, *ValidationError) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return ports.ChatRef{}, &ValidationError{Message: msgChatIDType}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return ports.ChatRef{}, &ValidationError{Message: msgChatIDEmpty}
		}
		return ports.TextChat(v), nil
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return ports.ChatRef{}, &ValidationError{Message: msgChatIDInteger}
		}
		return ports.NumericChat(id), nil
	default:
		return ports.ChatRef{}, &ValidationError{Message: msgChatIDType}
	}
}
