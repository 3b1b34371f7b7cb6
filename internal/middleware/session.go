// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// stateContextKey はリクエストコンテキストにセッション状態を格納するためのキー。
var stateContextKey = contextKey("session_state")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// StateLoader はセッション状態の取得に必要なインターフェース。
// session.Managerが実装する。
type StateLoader interface {
	Current(ctx context.Context, sessionID, userID string) (*session.State, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効なセッションのユーザーIDとセッション状態をリクエストコンテキストに注入する。
// セッションがない場合もリクエストは拒否せず、そのまま次のハンドラーに渡す。
// 拒否はRequireAPIAuth / RequirePageAuthが行う。statesがnilの場合はユーザーIDのみ注入する。
func NewSessionMiddleware(sessionFinder SessionFinder, states StateLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. セッションの有効性を検証
			sess, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 3. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, sess.UserID)

			// 4. セッション状態をコンテキストに注入
			if states != nil {
				st, err := states.Current(ctx, sess.ID, sess.UserID)
				if err != nil {
					slog.Error("failed to load session state",
						slog.String("user_id", sess.UserID),
						slog.String("error", err.Error()),
					)
				} else if st != nil {
					ctx = context.WithValue(ctx, stateContextKey, st)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIAuth はAPIルート用の認可ミドルウェアを返す。
// 未ログインの場合は401、利用権限がない場合は403を統一エラーフォーマットで返す。
func RequireAPIAuth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := UserIDFromContext(r.Context()); err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			st, ok := StateFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusForbidden, model.NewAuthorizationFailedError())
				return
			}
			if !st.Authorized() {
				apiErr := st.AuthError
				if apiErr == nil {
					apiErr = model.NewNotAuthorizedError()
				}
				WriteErrorResponse(w, http.StatusForbidden, apiErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePageAuth は画面ルート用の認可ミドルウェアを返す。
// 未ログインまたは利用権限がない場合はloginPathへ303でリダイレクトする。
func RequirePageAuth(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := StateFromContext(r.Context())
			if !ok || !st.Authorized() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// StateFromContext はリクエストコンテキストからセッション状態を取得する。
func StateFromContext(ctx context.Context) (*session.State, bool) {
	st, ok := ctx.Value(stateContextKey).(*session.State)
	return st, ok && st != nil
}

// ContextWithState はコンテキストにセッション状態とそのユーザーIDを注入する。
func ContextWithState(ctx context.Context, st *session.State) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, st.UserID)
	return context.WithValue(ctx, stateContextKey, st)
}
