package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// shortRequestID is how many characters of a request id the console prefix
// keeps; the full id stays available in JSON output.
const shortRequestID = 8

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO  server req=1a2b3c4d clip=7: clip ingested key=value
//
// The component, request id and clip id are lifted out of the attributes into
// the prefix so lines from one request read together.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Level
	addSource bool
	attrs     []field
	group     string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(out io.Writer, level slog.Level, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.attrs)+record.NumAttrs())
	fields = append(fields, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.group, attr)
		return true
	})

	var component, requestID, clipID string
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if component == "" {
				component = f.value.String()
			}
		case FieldCorrelationID:
			if requestID == "" {
				requestID = f.value.String()
			}
		case FieldClipID:
			if clipID == "" {
				clipID = renderValue(f.value)
			}
		default:
			rest = append(rest, f)
		}
	}

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(when.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, " %-5s ", levelName(record.Level))

	prefix := make([]string, 0, 3)
	if component != "" {
		prefix = append(prefix, component)
	}
	if requestID != "" {
		if len(requestID) > shortRequestID {
			requestID = requestID[:shortRequestID]
		}
		prefix = append(prefix, "req="+requestID)
	}
	if clipID != "" {
		prefix = append(prefix, "clip="+clipID)
	}
	if len(prefix) > 0 {
		buf.WriteString(strings.Join(prefix, " "))
		buf.WriteString(": ")
	}

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(renderValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]field(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = appendField(next.attrs, h.group, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

// appendField flattens groups into dotted keys and applies redaction.
func appendField(dst []field, group string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := joinKey(group, attr.Key)
		for _, child := range attr.Value.Group() {
			dst = appendField(dst, inner, child)
		}
		return dst
	}
	attr = redact(attr)
	return append(dst, field{key: joinKey(group, attr.Key), value: attr.Value})
}

func joinKey(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	default:
		return group + "." + key
	}
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
