// Package logging assembles the slog loggers used across clipshelf.
//
// New builds a console or JSON handler over one or more sinks. The console
// form lifts the component, request id and clip id into a line prefix so a
// request can be followed by eye; the JSON form keeps them as fields.
// Attributes that carry credentials (passwords, session tokens, cookies) are
// redacted by both handlers before they reach a sink.
//
// WarnWithContext and ErrorWithContext give operator-facing events such as
// recorded inconsistencies one shape: event_type, error_hint and impact.
package logging
