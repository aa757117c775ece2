package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kefctl/internal/core"
	"kefctl/internal/storage"
)

var errEmptyCommand = errors.New("empty command")

const (
	auditOK     = "ok"
	auditError  = "error"
	auditDenied = "denied"
)

// Service объединяет общий пайплайн фасадов: command -> authz -> core.Dispatcher -> audit.
// Authorizer и AuditSink необязательны.
type Service struct {
	Dispatcher *core.Dispatcher
	Authorizer core.Authorizer
	AuditSink  AuditSink
	Logger     *slog.Logger
}

// Execute выполняет команду и пишет аудит. Ошибки команды возвращаются в Result.
func (s *Service) Execute(ctx context.Context, source, requestID, command string, args ...string) core.Result {
	if s.Authorizer != nil {
		// Неизвестное имя не проверяется здесь: его отклонит диспетчер.
		if cmd, ok := s.Dispatcher.Registry().Lookup(command); ok {
			if err := s.Authorizer.Authorize(source, cmd.Name); err != nil {
				res := core.Failure(err)
				s.writeAudit(ctx, source, requestID, command, args, res, auditDenied)
				return res
			}
		}
	}
	res := s.Dispatcher.Execute(ctx, command, args...)
	status := auditOK
	if !res.Success {
		status = auditError
	}
	s.writeAudit(ctx, source, requestID, command, args, res, status)
	return res
}

// Status возвращает полный статус колонки. Опрос статуса не аудируется.
func (s *Service) Status(ctx context.Context) core.Result {
	return s.Dispatcher.FullStatus(ctx)
}

// Online проверяет доступность колонки.
func (s *Service) Online(ctx context.Context) bool {
	return s.Dispatcher.CheckOnline(ctx)
}

// Commands возвращает реестр команд.
func (s *Service) Commands() []core.Command {
	return s.Dispatcher.Commands()
}

// ExecuteText разбирает текстовую команду "name [value]" и выполняет ее.
// Возвращает имя команды, чтобы фасад мог подписать ответ.
func (s *Service) ExecuteText(ctx context.Context, source, requestID, text string) (string, core.Result) {
	command, args, err := ParseTextCommand(text)
	if err != nil {
		return "", core.Failure(err)
	}
	return command, s.Execute(ctx, source, requestID, command, args...)
}

func (s *Service) writeAudit(ctx context.Context, source, requestID, command string, args []string, res core.Result, status string) {
	if s.AuditSink == nil {
		return
	}
	if requestID == "" {
		requestID = NewRequestID()
	}
	ev := storage.AuditEvent{
		Source:    source,
		Command:   command,
		Value:     auditValue(args),
		Status:    status,
		Error:     res.Message(),
		RequestID: requestID,
		TS:        time.Now().UTC(),
	}
	if err := s.AuditSink.Write(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.Warn("audit write failed", slog.String("command", command), slog.String("request_id", requestID), slog.Any("err", err))
	}
}

// ParseTextCommand переводит текст в (command, args).
// Формат: [/]command [value]
func ParseTextCommand(text string) (string, []string, error) {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "/")
	parts := strings.Fields(t)
	if len(parts) == 0 {
		return "", nil, errEmptyCommand
	}
	if len(parts) > 2 {
		return "", nil, fmt.Errorf("invalid command format %q: expected \"command [value]\"", text)
	}
	return parts[0], parts[1:], nil
}
