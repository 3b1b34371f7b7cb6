package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, snippet, calendar, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeAuthorizationFailed  = "AUTHORIZATION_FAILED"
	ErrCodeInvalidDate          = "INVALID_DATE"
	ErrCodeInvalidMonth         = "INVALID_MONTH"
	ErrCodeFutureMonth          = "FUTURE_MONTH"
	ErrCodeFutureDay            = "FUTURE_DAY"
	ErrCodeEditWindowClosed     = "EDIT_WINDOW_CLOSED"
	ErrCodeSnippetNotFound      = "SNIPPET_NOT_FOUND"
	ErrCodeSnippetTooLarge      = "SNIPPET_TOO_LARGE"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeNoTeam               = "NO_TEAM"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeAvatarNotFound       = "AVATAR_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeRequestTooLarge      = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeCSRFFailed           = "CSRF_VALIDATION_FAILED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotAuthorizedError は利用権限がない場合のエラーを生成する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  NoticeNotAuthorized,
		Category: "auth",
		Action:   "管理者に利用権限の付与を依頼してください。",
	}
}

// NewAuthorizationFailedError は権限確認そのものが失敗した場合のエラーを生成する。
// 確認に失敗した場合も利用は許可しない。
func NewAuthorizationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationFailed,
		Message:  NoticeAuthError,
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", value),
		Category: "validation",
		Action:   "日付は yyyy-MM-dd 形式で指定してください。",
	}
}

// NewInvalidMonthError は月の指定が不正な場合のエラーを生成する。
func NewInvalidMonthError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMonth,
		Message:  fmt.Sprintf("無効な月です: %s", value),
		Category: "validation",
		Action:   "月は yyyy-MM 形式で指定してください。",
	}
}

// NewFutureMonthError は今月より先の月へ移動しようとした場合のエラーを生成する。
func NewFutureMonthError() *APIError {
	return &APIError{
		Code:     ErrCodeFutureMonth,
		Message:  NoticeFutureMonth,
		Category: "calendar",
		Action:   "今月以前の月を選択してください。",
	}
}

// NewFutureDayError は未来の日付を選択しようとした場合のエラーを生成する。
func NewFutureDayError() *APIError {
	return &APIError{
		Code:     ErrCodeFutureDay,
		Message:  NoticeFutureDay,
		Category: "calendar",
		Action:   "今日以前の日付を選択してください。",
	}
}

// NewEditWindowClosedError は編集可能期間外の操作に対するエラーを生成する。
func NewEditWindowClosedError(day Day) *APIError {
	return &APIError{
		Code:     ErrCodeEditWindowClosed,
		Message:  fmt.Sprintf("%s のスニペットは編集できません。", day),
		Category: "snippet",
		Action:   "編集できるのは今日の分と、午前9時までの前日分のみです。",
	}
}

// NewSnippetTooLargeError は本文が上限を超えた場合のエラーを生成する。
func NewSnippetTooLargeError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeSnippetTooLarge,
		Message:  "スニペットが長すぎます。",
		Category: "validation",
		Action:   fmt.Sprintf("本文を%dKB以内にしてください。", limit/1024),
	}
}

// NewSnippetNotFoundError はスニペットが見つからない場合のエラーを生成する。
func NewSnippetNotFoundError(day Day) *APIError {
	return &APIError{
		Code:     ErrCodeSnippetNotFound,
		Message:  fmt.Sprintf("%s のスニペットが見つかりません。", day),
		Category: "snippet",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewConfirmationRequiredError は削除確認が行われていない場合のエラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  NoticeDeleteConfirm,
		Category: "snippet",
		Action:   "削除を確認したうえで再度実行してください。",
	}
}

// NewNoTeamError はチームに所属していない場合のエラーを生成する。
func NewNoTeamError() *APIError {
	return &APIError{
		Code:     ErrCodeNoTeam,
		Message:  "所属チームが見つかりません。",
		Category: "auth",
		Action:   "管理者にチームへの登録を依頼してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAvatarNotFoundError はアバター画像がキャッシュされていない場合のエラーを生成する。
func NewAvatarNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarNotFound,
		Message:  "アバター画像がありません。",
		Category: "system",
		Action:   "頭文字アイコンを表示してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewRequestTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewRequestTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTooLarge,
		Message:  "リクエストが大きすぎます。",
		Category: "validation",
		Action:   "本文を短くしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFFailedError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
