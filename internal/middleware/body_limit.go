package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
)

// NewBodyLimitMiddleware はリクエストボディをlimitバイトまでに制限する。
// Content-Lengthで上限超過が分かる場合は本文を読まずに413を返す。
// 後続のミドルウェアがフォームを読むより前に置くこと。
func NewBodyLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteRequestTooLarge(w, r)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRequestTooLarge は413を返す。APIはJSON、画面はテキスト。
func WriteRequestTooLarge(w http.ResponseWriter, r *http.Request) {
	apiErr := model.NewRequestTooLargeError()
	if strings.HasPrefix(r.URL.Path, "/api/") {
		WriteAPIError(w, apiErr)
		return
	}
	http.Error(w, apiErr.Message, http.StatusRequestEntityTooLarge)
}
