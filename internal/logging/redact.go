package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// sensitiveKeys never reach a log sink with their value. Session tokens are
// bearer credentials, so a leaked log line is a leaked login.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"session_token": {},
	"authorization": {},
	"cookie":        {},
	"secret":        {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// redact replaces the value of a sensitive attribute. Groups are left to the
// caller so nested keys are checked one at a time.
func redact(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindGroup && isSensitive(attr.Key) {
		return slog.String(attr.Key, redacted)
	}
	return attr
}
