package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/springboard/internal/model"
)

// internalErrorMessage は画面向けの500応答本文。
const internalErrorMessage = "内部エラーが発生しました。しばらく待ってから再度お試しください。"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードとHTTPステータスの対応表。
// 未来日や編集期限切れは入力形式としては正しいため422で返す。
var statusByCode = map[string]int{
	model.ErrCodeUnauthorized:         http.StatusUnauthorized,
	model.ErrCodeNotAuthorized:        http.StatusForbidden,
	model.ErrCodeAuthorizationFailed:  http.StatusForbidden,
	model.ErrCodeNoTeam:               http.StatusForbidden,
	model.ErrCodeCSRFFailed:           http.StatusForbidden,
	model.ErrCodeInvalidDate:          http.StatusBadRequest,
	model.ErrCodeInvalidMonth:         http.StatusBadRequest,
	model.ErrCodeInvalidRequest:       http.StatusBadRequest,
	model.ErrCodeRequestTooLarge:      http.StatusRequestEntityTooLarge,
	model.ErrCodeFutureMonth:          http.StatusUnprocessableEntity,
	model.ErrCodeFutureDay:            http.StatusUnprocessableEntity,
	model.ErrCodeEditWindowClosed:     http.StatusUnprocessableEntity,
	model.ErrCodeConfirmationRequired: http.StatusPreconditionRequired,
	model.ErrCodeSnippetTooLarge:      http.StatusRequestEntityTooLarge,
	model.ErrCodeSnippetNotFound:      http.StatusNotFound,
	model.ErrCodeUserNotFound:         http.StatusNotFound,
	model.ErrCodeAvatarNotFound:       http.StatusNotFound,
	model.ErrCodeRateLimited:          http.StatusTooManyRequests,
}

// StatusFor はAPIErrorに対応するHTTPステータスを返す。未知のコードは500。
func StatusFor(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError はエラーコードから決まるステータスで統一エラーを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusFor(apiErr), apiErr)
}

// WriteInternalServerError は内部エラーを書き込む。原因はログにのみ記録すること。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAPIError(w, model.NewInternalError())
}
