// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/springboard/internal/middleware"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, *session.State, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int    // セッションCookieの有効期間（秒）
	StateSecret   string // OAuth stateの署名鍵
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	nonce, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// nonceをCookieに保存し、IdPには署名付きのstateを渡す
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(h.signState(nonce))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// 利用権限がない場合もセッションは作成し、ログイン画面で理由を表示する。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || !h.verifyState(state, stateCookie.Value) {
		slog.Warn("oauth state mismatch")
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理（権限確認とチーム解決を含む）
	sess, st, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. 権限に応じてリダイレクト
	dest := h.config.BaseURL + "/"
	if !st.Authorized() {
		dest = h.config.BaseURL + "/login"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusSeeOther)
}

// meResponse は/auth/meのレスポンス。
type meResponse struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	PhotoURL    string          `json:"photo_url"`
	Initial     string          `json:"initial"`
	Status      string          `json:"status"`
	Team        string          `json:"team"`
	AuthError   *apiErrorDetail `json:"auth_error,omitempty"`
}

// apiErrorDetail はレスポンスに埋め込むエラー情報。
type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Me は現在のログインユーザーの情報と利用権限の状態を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	st, ok := middleware.StateFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	resp := meResponse{
		ID:          st.UserID,
		Email:       st.Email,
		DisplayName: st.DisplayName,
		PhotoURL:    st.PhotoURL,
		Initial:     st.Profile().Initial(),
		Status:      string(st.Status),
		Team:        st.Team,
	}
	if st.AuthError != nil {
		resp.AuthError = &apiErrorDetail{Code: st.AuthError.Code, Message: st.AuthError.Message}
	}
	writeJSON(w, http.StatusOK, resp)
}

// signState はnonceに署名を付けたstate値を返す。
func (h *AuthHandler) signState(nonce string) string {
	return nonce + "." + h.stateMAC(nonce)
}

// verifyState はstateの署名とCookieのnonceを検証する。
func (h *AuthHandler) verifyState(state, cookieNonce string) bool {
	nonce, mac, ok := strings.Cut(state, ".")
	if !ok || nonce == "" || cookieNonce == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(nonce), []byte(cookieNonce)) != 1 {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(h.stateMAC(nonce)))
}

func (h *AuthHandler) stateMAC(nonce string) string {
	m := hmac.New(sha256.New, []byte(h.config.StateSecret))
	m.Write([]byte(nonce))
	return hex.EncodeToString(m.Sum(nil))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
