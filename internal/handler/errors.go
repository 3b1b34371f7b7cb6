package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/springboard/internal/middleware"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// requireState はリクエストコンテキストからセッション状態を取得する。
// 取得できない場合は401を書き込んでfalseを返す。
func requireState(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	st, ok := middleware.StateFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return st, true
}

// parseDayParam はURLの日付パラメータを解析する。不正な場合は400を書き込む。
func parseDayParam(w http.ResponseWriter, value string) (model.Day, bool) {
	day, err := model.ParseDay(value)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(value))
		return "", false
	}
	return day, true
}
