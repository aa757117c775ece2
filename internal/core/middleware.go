package core

import (
	"context"
	"log/slog"
	"time"
)

// Middleware оборачивает точку входа диспетчера. op задает идентификатор операции
// (OpCheckOnline, OpExecute, OpStatus), по нему middleware выбирают поведение.
type Middleware func(op string, next Endpoint) Endpoint

// Chain применяет middleware так, что первый в списке вызывается первым.
func Chain(op string, e Endpoint, mws ...Middleware) Endpoint {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](op, e)
	}
	return e
}

// LogMiddleware пишет начало и итог каждого вызова. Для операций из throttled
// запись выполняется не чаще одного раза в StatusLogWindow.
func LogMiddleware(logger *slog.Logger, throttle *Throttle, clock Clock, throttled ...string) Middleware {
	if clock == nil {
		clock = time.Now
	}
	limited := make(map[string]struct{}, len(throttled))
	for _, op := range throttled {
		limited[op] = struct{}{}
	}
	return func(op string, next Endpoint) Endpoint {
		_, isLimited := limited[op]
		return func(ctx context.Context, req Request) Result {
			if isLimited && !throttle.ShouldEmit(op, clock()) {
				return next(ctx, req)
			}
			start := clock()
			logger.Info("calling operation", "op", op, "command", req.Command)
			res := next(ctx, req)
			attrs := []any{"op", op, "command", req.Command, "duration_ms", clock().Sub(start).Milliseconds()}
			if !res.Success {
				logger.Error("operation failed", append(attrs, "err", res.Message())...)
				return res
			}
			logger.Info("operation completed", attrs...)
			return res
		}
	}
}
