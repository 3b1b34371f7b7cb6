package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// NewRecoveryMiddleware はハンドラー内のpanicを捕捉して500を返すミドルウェアを生成する。
// /api 配下は統一エラーフォーマットのJSON、画面はプレーンテキストで応答する。
// http.ErrAbortHandlerはnet/httpに処理させるため再度panicする。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				if st, ok := StateFromContext(r.Context()); ok {
					attrs = append(attrs,
						slog.String("user_id", st.UserID),
						slog.String("team", st.Team),
					)
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				slog.Error("panic recovered", attrs...)

				if strings.HasPrefix(r.URL.Path, "/api/") {
					WriteInternalServerError(w)
					return
				}
				http.Error(w, internalErrorMessage, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
