package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	t.Run("既定のヘッダーを付与する", func(t *testing.T) {
		handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		want := map[string]string{
			"X-Content-Type-Options": "nosniff",
			"X-Frame-Options":        "DENY",
			"Referrer-Policy":        "same-origin",
			"Cache-Control":          "no-store",
		}
		for header, value := range want {
			if got := w.Header().Get(header); got != value {
				t.Errorf("%s = %q, want %q", header, got, value)
			}
		}

		csp := w.Header().Get("Content-Security-Policy")
		for _, directive := range []string{"default-src 'self'", "frame-ancestors 'none'", "form-action 'self'"} {
			if !strings.Contains(csp, directive) {
				t.Errorf("CSP %q does not contain %q", csp, directive)
			}
		}
	})

	t.Run("ハンドラーはCache-Controlを上書きできる", func(t *testing.T) {
		handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "private, max-age=3600")
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/u1/avatar", nil))

		if got := w.Header().Get("Cache-Control"); got != "private, max-age=3600" {
			t.Errorf("Cache-Control = %q", got)
		}
	})
}
