// Package middleware содержит промежуточные обработчики HTTP API:
// логирование запросов, восстановление после паники, rate-limiting
// и аутентификацию администратора.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader: заголовок с идентификатором запроса.
const RequestIDHeader = "X-Request-ID"

// RequestObserver получает итог каждого запроса (метрики).
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// RequestIDFrom возвращает идентификатор запроса из контекста.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID берёт X-Request-ID клиента или выдаёт новый uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// Logger логирует запрос и передаёт его длительность в observer (может быть nil).
func Logger(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			// Шаблон маршрута, а не путь: иначе у метрик будет по серии на user_id
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if observer != nil {
				observer.ObserveRequest(route, r.Method, status, elapsed)
			}

			entry := log.WithFields(log.Fields{
				"request_id": RequestIDFrom(r.Context()),
				"method":     r.Method,
				"route":      route,
				"status":     status,
				"elapsed":    elapsed.String(),
				"remote":     r.RemoteAddr,
			})
			if status >= http.StatusInternalServerError {
				entry.Error("HTTP запрос")
			} else {
				entry.Debug("HTTP запрос")
			}
		})
	}
}
