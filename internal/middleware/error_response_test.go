package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/springboard/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスをデコードできない: %v", err)
	}
	return body
}

// 全フィールドが利用者向けに埋まっていること。
func TestWriteAPIError_Body(t *testing.T) {
	errs := []*model.APIError{
		model.NewUnauthorizedError(),
		model.NewNotAuthorizedError(),
		model.NewInvalidDateError("2026-13-01"),
		model.NewFutureDayError(),
		model.NewEditWindowClosedError("2026-03-30"),
		model.NewSnippetNotFoundError("2026-03-30"),
		model.NewSnippetTooLargeError(64 << 10),
		model.NewRequestTooLargeError(),
		model.NewConfirmationRequiredError(),
		model.NewNoTeamError(),
		model.NewRateLimitedError(),
		model.NewCSRFFailedError(),
		model.NewInternalError(),
	}

	for _, apiErr := range errs {
		t.Run(apiErr.Code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, apiErr)

			body := decodeErrorBody(t, w)
			if body != (ErrorResponseBody{Code: apiErr.Code, Message: apiErr.Message, Category: apiErr.Category, Action: apiErr.Action}) {
				t.Errorf("body = %+v, want %+v", body, *apiErr)
			}
			if body.Message == "" || body.Category == "" || body.Action == "" {
				t.Errorf("空のフィールドがある: %+v", body)
			}
		})
	}
}

func TestWriteErrorResponse_ExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewInternalError())

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		apiErr *model.APIError
		want   int
	}{
		{"未ログインは401", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"チーム未所属は403", model.NewNoTeamError(), http.StatusForbidden},
		{"CSRF失敗は403", model.NewCSRFFailedError(), http.StatusForbidden},
		{"日付形式の誤りは400", model.NewInvalidDateError("2026-13-01"), http.StatusBadRequest},
		{"未来日は422", model.NewFutureDayError(), http.StatusUnprocessableEntity},
		{"編集期限切れは422", model.NewEditWindowClosedError("2026-03-30"), http.StatusUnprocessableEntity},
		{"削除確認なしは428", model.NewConfirmationRequiredError(), http.StatusPreconditionRequired},
		{"スニペットなしは404", model.NewSnippetNotFoundError("2026-03-30"), http.StatusNotFound},
		{"本文の上限超過は413", model.NewSnippetTooLargeError(64 << 10), http.StatusRequestEntityTooLarge},
		{"リクエストの上限超過は413", model.NewRequestTooLargeError(), http.StatusRequestEntityTooLarge},
		{"レート制限は429", model.NewRateLimitedError(), http.StatusTooManyRequests},
		{"内部エラーは500", model.NewInternalError(), http.StatusInternalServerError},
		{"未知のコードは500", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.apiErr); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.apiErr.Code, got, tt.want)
			}
		})
	}
}
