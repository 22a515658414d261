package tgui

import (
	"errors"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// It covers the full "scope:action:payload" string.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats inline callback data as "scope:action:payload".
// Payload is kept as-is (no escaping).
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// SplitData parses "scope:action:payload" produced by Data. The payload
// part may itself contain ':'.
func SplitData(data string) (scope, action, payload string) {
	scope, rest, _ := strings.Cut(data, ":")
	action, payload, _ = strings.Cut(rest, ":")
	return scope, action, payload
}
