// Package session はサインイン中のユーザーごとの状態（権限、所属チーム、
// プロフィールキャッシュ）と、サインインイベントの購読を提供する。
package session

import (
	"strings"
	"time"

	"github.com/hitoshi/springboard/internal/authz"
	"github.com/hitoshi/springboard/internal/model"
)

// State はセッションに紐づくユーザーの状態。
// サインインのたびに作り直され、リクエストコンテキスト経由でハンドラーに渡される。
type State struct {
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	PhotoURL    string          `json:"photo_url"`
	Status      authz.Status    `json:"status"`
	AuthError   *model.APIError `json:"auth_error,omitempty"`
	Team        string          `json:"team"`

	// Profiles はチームメンバーのプロフィールキャッシュ（キーは小文字のメールアドレス）。
	Profiles          map[string]model.Profile `json:"profiles,omitempty"`
	ProfilesFetchedAt time.Time                `json:"profiles_fetched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Authorized は利用を許可されているかを返す。
func (s *State) Authorized() bool {
	return s != nil && s.Status == authz.StatusAuthorized
}

// HasTeam はチームに所属しているかを返す。
func (s *State) HasTeam() bool {
	return s != nil && s.Team != ""
}

// Profile はユーザー自身の公開プロフィールを返す。
func (s *State) Profile() model.Profile {
	return model.Profile{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		PhotoURL:    s.PhotoURL,
	}
}

// CachedProfile はキャッシュ済みのプロフィールを返す。
func (s *State) CachedProfile(email string) (model.Profile, bool) {
	p, ok := s.Profiles[profileKey(email)]
	return p, ok
}

// PutProfile はプロフィールをキャッシュに追加する。
func (s *State) PutProfile(p model.Profile) {
	if s.Profiles == nil {
		s.Profiles = make(map[string]model.Profile)
	}
	s.Profiles[profileKey(p.Email)] = p
}

func profileKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
