package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one security-relevant outcome.
type AuditEvent struct {
	EventType     string
	StudentID     string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through slog. Student IDs are always
// masked before they reach the handler.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthAttempt records signup, login and demo outcomes.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.emit("auth", event)
}

// LogSessionEvent records issue, rotation and teardown of the session slot.
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	al.emit("session", event)
}

// LogAccountAction records profile updates and password recovery.
func (al *AuditLogger) LogAccountAction(eventType, studentID, ipAddress string, metadata map[string]string) {
	al.emit("account", AuditEvent{
		EventType: eventType,
		StudentID: studentID,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  metadata,
	})
}

func (al *AuditLogger) emit(auditType string, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.StudentID != "" {
		attrs = append(attrs, slog.String("student_id", SanitizedID(event.StudentID)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
