package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/springboard/internal/authz"
	"github.com/hitoshi/springboard/internal/model"
)

// UserStore はサインイン時のユーザー情報の読み書きに必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	MergeProfile(ctx context.Context, user *model.User) (*model.User, error)
}

// AuthChecker は利用権限の確認に必要なインターフェース。
type AuthChecker interface {
	Check(ctx context.Context, email string) authz.Result
}

// TeamResolver は所属チームの解決に必要なインターフェース。
type TeamResolver interface {
	Resolve(ctx context.Context, email string) (string, bool, error)
}

// SignInObserver はサインイン処理の結果を受け取るインターフェース。
// メトリクス収集などに使用する。
type SignInObserver interface {
	ObserveSignIn(status authz.Status)
}

// Manager はサインインイベントを購読し、セッション状態を構築する。
// サインインのたびにプロフィールのマージ更新、権限確認、所属チーム解決を行う。
type Manager struct {
	stream   *Stream
	store    Store
	users    UserStore
	checker  AuthChecker
	teams    TeamResolver
	observer SignInObserver
	logger   *slog.Logger
	now      func() time.Time
}

// ManagerDeps はManagerの依存関係。
type ManagerDeps struct {
	Stream   *Stream
	Store    Store
	Users    UserStore
	Checker  AuthChecker
	Teams    TeamResolver
	Observer SignInObserver
	Logger   *slog.Logger
}

// NewManager はManagerを生成する。
func NewManager(deps ManagerDeps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		stream:   deps.Stream,
		store:    deps.Store,
		users:    deps.Users,
		checker:  deps.Checker,
		teams:    deps.Teams,
		observer: deps.Observer,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Run はイベントの購読を開始し、コンテキストがキャンセルされるまで処理を続ける。
// 起動時に1度だけ呼び出す。
func (m *Manager) Run(ctx context.Context) {
	defer m.stream.Close()

	m.logger.Info("セッションイベントの購読を開始しました")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("セッションイベントの購読を停止しました")
			return
		case ev := <-m.stream.events:
			st, err := m.handle(ctx, ev)
			ev.reply <- reply{state: st, err: err}
		}
	}
}

// SignIn はサインインイベントを送信し、構築されたセッション状態を返す。
func (m *Manager) SignIn(ctx context.Context, sessionID string, user model.User) (*State, error) {
	return m.stream.Publish(ctx, Event{Kind: SignedIn, SessionID: sessionID, User: user})
}

// SignOut はサインアウトイベントを送信する。
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	_, err := m.stream.Publish(ctx, Event{Kind: SignedOut, SessionID: sessionID})
	return err
}

// Current はセッション状態を返す。
// 保存先に状態がない場合（再起動後やTTL切れなど）は保存済みのユーザー情報で状態を作り直す。
// 作り直しでは権限確認とチーム解決だけを行い、最終ログイン日時とサインイン数は更新しない。
func (m *Manager) Current(ctx context.Context, sessionID, userID string) (*State, error) {
	st, err := m.store.Load(ctx, sessionID)
	if err != nil {
		m.logger.Warn("セッション状態の読み込みに失敗しました。状態を再構築します",
			slog.String("error", err.Error()),
		)
	}
	if st != nil && st.UserID == userID {
		return st, nil
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return m.stream.Publish(ctx, Event{Kind: Restored, SessionID: sessionID, User: *user})
}

// Save は更新されたセッション状態を保存する。
func (m *Manager) Save(ctx context.Context, st *State) error {
	st.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

func (m *Manager) handle(ctx context.Context, ev Event) (*State, error) {
	switch ev.Kind {
	case SignedIn:
		return m.onSignedIn(ctx, ev)
	case Restored:
		if ev.SessionID == "" || ev.User.ID == "" {
			return nil, errors.New("restore event requires session and user")
		}
		user := ev.User
		return m.buildState(ctx, ev.SessionID, &user, false)
	case SignedOut:
		if err := m.store.Delete(ctx, ev.SessionID); err != nil {
			return nil, fmt.Errorf("failed to delete session state: %w", err)
		}
		m.logger.Info("session state cleared", slog.String("session_id", ev.SessionID))
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown session event: %d", ev.Kind)
	}
}

func (m *Manager) onSignedIn(ctx context.Context, ev Event) (*State, error) {
	if ev.SessionID == "" || ev.User.ID == "" {
		return nil, errors.New("sign-in event requires session and user")
	}

	now := m.now().UTC()

	// プロフィールのマージ更新
	incoming := ev.User
	incoming.LastLogin = now
	user, err := m.users.MergeProfile(ctx, &incoming)
	if err != nil {
		return nil, fmt.Errorf("failed to merge user profile: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return m.buildState(ctx, ev.SessionID, user, true)
}

// buildState は権限確認とチーム解決を行い、状態を保存する。
// signIn が false の場合はサインイン数に数えない。
func (m *Manager) buildState(ctx context.Context, sessionID string, user *model.User, signIn bool) (*State, error) {
	now := m.now().UTC()
	st := &State{
		SessionID:   sessionID,
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
		Status:      authz.StatusUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	st.PutProfile(user.Profile())

	// 利用権限の確認
	result := m.checker.Check(ctx, user.Email)
	st.Status = result.Status
	st.AuthError = result.Err
	if signIn && m.observer != nil {
		m.observer.ObserveSignIn(result.Status)
	}

	// 所属チームの解決（失敗してもチームなしとして続行する）
	if st.Authorized() {
		team, ok, err := m.teams.Resolve(ctx, user.Email)
		if err != nil {
			m.logger.Error("所属チームの解決に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			st.Team = team
		}
	}

	if err := m.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}

	m.logger.Info("session state built",
		slog.String("user_id", st.UserID),
		slog.Bool("sign_in", signIn),
		slog.String("status", string(st.Status)),
		slog.String("team", st.Team),
	)
	return st, nil
}
