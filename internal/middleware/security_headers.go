package middleware

import "net/http"

// contentSecurityPolicy は画面向けのCSP。
// エディタのキーバインドはインラインscriptで実装しているため'unsafe-inline'を許可する。
// プロフィール画像やMarkdown中の画像は外部ホストにあるためimg-srcはhttpsを許可する。
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self'; " +
	"img-src 'self' https: data:; " +
	"form-action 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'"

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与するミドルウェアを返す。
// Cache-Controlは既定でno-storeとし、キャッシュさせたいハンドラー側で上書きする。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), interest-cohort=()")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
