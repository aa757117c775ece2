package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается, если запрошенной записи нет.
var ErrNotFound = errors.New("record not found")

// AuditEvent фиксирует одну управляющую команду, пришедшую через фасад.
type AuditEvent struct {
	Source    string
	Command   string
	Value     string
	Status    string
	Error     string
	RequestID string
	TS        time.Time
}

// StatusSnapshot хранит периодический снимок полного статуса колонки.
type StatusSnapshot struct {
	Online  bool
	Payload []byte
	TS      time.Time
}

// AuditQuery задает фильтры выборки аудита.
type AuditQuery struct {
	From   time.Time
	To     time.Time
	Source string
	Limit  int
}

// Store описывает операции хранилища.
type Store interface {
	SaveAudit(ctx context.Context, ev AuditEvent) error
	QueryAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	SaveSnapshot(ctx context.Context, snap StatusSnapshot) error
	LatestSnapshot(ctx context.Context) (StatusSnapshot, error)
	Close() error
}
