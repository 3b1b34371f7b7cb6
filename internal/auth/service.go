// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/repository"
	"github.com/hitoshi/springboard/internal/session"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	PhotoURL       string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// UserCreator は初回サインイン時のユーザー作成に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserCreator interface {
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// SignInNotifier はサインイン状態の変化をセッション状態の購読者へ通知するインターフェース。
// session.Managerが実装する。
type SignInNotifier interface {
	SignIn(ctx context.Context, sessionID string, user model.User) (*session.State, error)
	SignOut(ctx context.Context, sessionID string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	users       UserCreator
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	notifier    SignInNotifier
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	users UserCreator,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	notifier SignInNotifier,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		users:       users,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		config:      config,
		now:         time.Now,
	}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// セッション発行後にサインインイベントを送信し、構築されたセッション状態を返す。
// 利用権限がない場合もセッションは発行し、状態のStatusで判別する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, *session.State, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
		if err := s.identRepo.RecordSignIn(ctx, identity.ID, s.now()); err != nil {
			slog.Warn("failed to record sign-in",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		// 3. 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
		now := s.now()
		newUser := &model.User{
			ID:          uuid.New().String(),
			Email:       userInfo.Email,
			DisplayName: userInfo.Name,
			PhotoURL:    userInfo.PhotoURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.users.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	sess, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 5. サインインイベント（プロフィールのマージ、権限確認、チーム解決）
	st, err := s.notifier.SignIn(ctx, sess.ID, model.User{
		ID:          userID,
		Email:       userInfo.Email,
		DisplayName: userInfo.Name,
		PhotoURL:    userInfo.PhotoURL,
	})
	if err != nil {
		if delErr := s.sessionRepo.DeleteByID(ctx, sess.ID); delErr != nil {
			slog.Error("failed to discard session", slog.String("error", delErr.Error()))
		}
		return nil, nil, fmt.Errorf("failed to sign in: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", userID),
		slog.String("provider", userInfo.Provider),
		slog.String("status", string(st.Status)),
	)
	return sess, st, nil
}

// Logout はセッション状態とセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.notifier.SignOut(ctx, sessionID); err != nil {
		slog.Warn("failed to clear session state",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	sess := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
