// logging.go — access-лог Builder Module через slog.
// Пишет одну запись на запрос после завершения обработки; агрегаты
// (счётчики, гистограммы) собирает MetricsMiddleware, здесь — детали
// конкретного запроса для разбора инцидентов.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseWriter — обёртка для перехвата статус-кода и размера ответа.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// statusLevel отображает статус-код в уровень логирования:
// 5xx — ERROR, 4xx — WARN, остальное — INFO. Ошибки клиента
// (невалидные тела, чужие записи) не должны шуметь на уровне ERROR.
func statusLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return slog.LevelError
	case statusCode >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware access-лога.
// Атрибуты записи: метод, путь, строка запроса (если есть), статус,
// длительность в миллисекундах, размер ответа, remote_addr, user_agent.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	accessLog := logger.With(slog.String("component", "http_access"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("response_bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}

			accessLog.LogAttrs(r.Context(), statusLevel(wrapped.statusCode), "Запрос обработан", attrs...)
		})
	}
}
