package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// CSRFFormField は画面のフォームからCSRFトークンを送信する際のフィールド名。
	CSRFFormField = "csrf_token"

	csrfCookieMaxAge = 24 * 60 * 60
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF対策ミドルウェアを返す。
// GET・HEAD・OPTIONSは検証せず、Cookieが無ければ発行してCSRFTokenで参照できるようにする。
// それ以外のメソッドはCookieの値とX-CSRF-Tokenヘッダー（画面のフォームではcsrf_tokenフィールド）の一致を要求する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token, err := ensureCSRFCookie(w, r, config)
				if err != nil {
					slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				} else {
					r = r.WithContext(context.WithValue(r.Context(), csrfContextKey, token))
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := verifyCSRF(r); reason != "" {
				rejectCSRF(w, r, reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyCSRF は検証に失敗した理由を返す。成功した場合は空文字。
func verifyCSRF(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}

	requestToken := r.Header.Get(csrfHeaderName)
	if requestToken == "" && isFormRequest(r) {
		requestToken = r.PostFormValue(CSRFFormField)
	}
	if requestToken == "" {
		return "missing request token"
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(requestToken)) != 1 {
		return "token mismatch"
	}
	return ""
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// 既存のCookieがあればその値を、なければ新しく発行した値をJSONで返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ensureCSRFCookie(w, r, config)
		if err != nil {
			slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
			WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

// rejectCSRF はCSRF検証失敗をログに記録し、403を返す。
func rejectCSRF(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("CSRF validation failed: "+reason,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFFailedError())
}

// isFormRequest はリクエストボディがフォーム形式かどうかを判定する。
func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

// csrfContextKey は安全なメソッドのリクエストで発行・確認したCSRFトークンを格納するキー。
var csrfContextKey = contextKey("csrf_token")

// CSRFToken はリクエストのCSRFトークンを返す。
// 画面のフォームにトークンを埋め込む際に使用する。
// 同じレスポンスで新規発行したトークンも返す。未設定の場合は空文字を返す。
func CSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfContextKey).(string); ok && token != "" {
		return token
	}
	if c, err := r.Cookie(csrfCookieName); err == nil {
		return c.Value
	}
	return ""
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はリクエストのCSRFトークンを返す。Cookieが無ければ発行して設定する。
// JavaScriptから読めるようHttpOnlyにはしない。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) (string, error) {
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
