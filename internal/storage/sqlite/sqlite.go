package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"kefctl/internal/storage"
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS status_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			online INTEGER NOT NULL,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON status_snapshots(ts);`,
		`CREATE TABLE IF NOT EXISTS command_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			source TEXT NOT NULL,
			command TEXT NOT NULL,
			value TEXT,
			status TEXT NOT NULL,
			error TEXT,
			request_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON command_audit(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_source_ts ON command_audit(source, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveSnapshot сохраняет снимок статуса.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.StatusSnapshot) error {
	ts := snap.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO status_snapshots(online, payload, ts) VALUES(?,?,?)`, snap.Online, snap.Payload, ts)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot возвращает последний снимок статуса.
func (s *Store) LatestSnapshot(ctx context.Context) (storage.StatusSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT online, payload, ts FROM status_snapshots ORDER BY ts DESC, id DESC LIMIT 1`)
	var snap storage.StatusSnapshot
	var ts string
	if err := row.Scan(&snap.Online, &snap.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StatusSnapshot{}, fmt.Errorf("latest snapshot: %w", storage.ErrNotFound)
		}
		return storage.StatusSnapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.StatusSnapshot{}, fmt.Errorf("parse snapshot timestamp: %w", err)
	}
	snap.TS = parsedTS
	return snap, nil
}

// SaveAudit сохраняет аудиторное событие.
func (s *Store) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO command_audit(source, command, value, status, error, request_id, ts) VALUES(?,?,?,?,?,?,?)`,
		ev.Source, ev.Command, ev.Value, ev.Status, ev.Error, ev.RequestID, ts)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// QueryAudit возвращает аудит по фильтрам, новые записи первыми.
func (s *Store) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT source, command, value, status, error, request_id, ts
FROM command_audit
WHERE ts >= ? AND ts <= ? AND (? = '' OR source = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from, to, q.Source, q.Source, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, limit)
	for rows.Next() {
		var (
			ev                 storage.AuditEvent
			value, errText, id sql.NullString
			ts                 string
		)
		if err := rows.Scan(&ev.Source, &ev.Command, &value, &ev.Status, &errText, &id, &ts); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		ev.Value, ev.Error, ev.RequestID = value.String, errText.String, id.String
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		ev.TS = parsedTS
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return events, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Write реализует AuditSink фасадов.
func (s *Store) Write(ctx context.Context, ev storage.AuditEvent) error {
	return s.SaveAudit(ctx, ev)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarshalPayload сериализует данные снимка.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
