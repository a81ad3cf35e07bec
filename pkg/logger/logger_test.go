package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@bvm.edu", "u***@***.edu"},
		{"a@b.c", "a@*.c"},
		{"no-at-sign", "[invalid-email]"},
		{"x@y@z", "[invalid-email]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedEmail(tt.in), tt.in)
	}
}

func TestSanitizedID(t *testing.T) {
	assert.Equal(t, "23***01", SanitizedID("23CP001"))
	assert.Equal(t, "****", SanitizedID("abcd"))
	assert.Equal(t, "", SanitizedID(""))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("reset=1&code=123456"))
	assert.True(t, SanitizeQueryString("Token=abc"))
	assert.False(t, SanitizeQueryString("page=2"))
}

func TestAuditLogger_MasksStudentID(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(AuditEvent{
		EventType:     "login",
		StudentID:     "23CP001",
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "auth", rec["audit_type"])
	assert.Equal(t, "23***01", rec["student_id"])
	assert.NotContains(t, buf.String(), "23CP001")
}

func TestAuditLogger_SessionAndAccountEvents(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogSessionEvent(AuditEvent{EventType: "session_rotated", StudentID: "23CP001", Success: true})
	al.LogAccountAction("profile_updated", "23CP001", "127.0.0.1", map[string]string{"field": "name"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var session, account map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &session))
	require.NoError(t, json.Unmarshal(lines[1], &account))

	assert.Equal(t, "session", session["audit_type"])
	assert.Equal(t, "INFO", session["level"])
	assert.Equal(t, "account", account["audit_type"])
	assert.Equal(t, "name", account["field"])
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	assert.NotPanics(t, func() {
		al.LogSessionEvent(AuditEvent{EventType: "x"})
	})
}
