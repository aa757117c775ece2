package common

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"kefctl/internal/storage"
)

// AuditSink записывает аудиторные события.
type AuditSink interface {
	Write(ctx context.Context, ev storage.AuditEvent) error
}

// NewRequestID возвращает новый идентификатор запроса.
func NewRequestID() string {
	return uuid.NewString()
}

func auditValue(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
