package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/springboard/internal/model"
)

func TestBodyLimitMiddleware(t *testing.T) {
	const limit = 16

	tests := []struct {
		name        string
		path        string
		body        string
		chunked     bool
		wantStatus  int
		wantJSON    bool
		wantHandler bool
	}{
		{"上限以内はそのまま通す", "/snippet/2025-06-15", strings.Repeat("a", limit), false, http.StatusOK, false, true},
		{"画面はテキストの413", "/snippet/2025-06-15", strings.Repeat("a", limit+1), false, http.StatusRequestEntityTooLarge, false, false},
		{"APIはJSONの413", "/api/preview", strings.Repeat("a", limit+1), false, http.StatusRequestEntityTooLarge, true, false},
		{"長さ不明の本文は読み込み時に止める", "/snippet/2025-06-15", strings.Repeat("a", limit+1), true, http.StatusRequestEntityTooLarge, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if _, err := io.ReadAll(r.Body); err != nil {
					WriteRequestTooLarge(w, r)
					return
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			NewBodyLimitMiddleware(limit)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantHandler {
				t.Errorf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if tt.wantJSON {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Code != model.ErrCodeRequestTooLarge {
					t.Errorf("body = %+v, err = %v", body, err)
				}
			}
		})
	}
}
