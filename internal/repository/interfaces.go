// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindProfilesByEmails は指定メールアドレスのユーザーの公開プロフィールを一括取得する。
	// メールアドレスの大文字小文字は区別しない。存在しないユーザーは結果に含まれない。
	FindProfilesByEmails(ctx context.Context, emails []string) ([]model.Profile, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// MergeProfile はサインイン時のプロフィールをマージ更新する。
	// 空でない項目のみ上書きし、空の項目は既存の値を維持する。last_loginは常に更新する。
	MergeProfile(ctx context.Context, user *model.User) (*model.User, error)

	// FindAvatar はキャッシュ済みアバター画像を取得する。未取得の場合はnilを返す。
	FindAvatar(ctx context.Context, userID string) (*model.Avatar, error)

	// UpdateAvatar はアバター画像のキャッシュを更新する。
	UpdateAvatar(ctx context.Context, avatar *model.Avatar) error

	// ListNeedingAvatarFetch はアバター画像の取得が必要なユーザーを取得する。
	// photo_urlを持ち、未取得またはstaleBeforeより前に取得したユーザーが対象。
	ListNeedingAvatarFetch(ctx context.Context, staleBefore time.Time, limit int) ([]*model.User, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	// RecordSignIn は最終サインイン日時を更新する。
	RecordSignIn(ctx context.Context, identityID string, at time.Time) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// SaveData はセッションに紐づく状態データを保存する。
	SaveData(ctx context.Context, id string, data []byte) error
	// FindData はセッションに紐づく状態データを取得する。未保存の場合はnilを返す。
	FindData(ctx context.Context, id string) ([]byte, error)
}

// TeamRepository はチーム参照データの永続化インターフェース。
// アプリケーションからは読み取り専用で、書き込みはseed-teamsコマンドのみが行う。
type TeamRepository interface {
	// FindTeamNamesByEmail はメールアドレスが所属するチーム名をチーム名の昇順で返す。
	FindTeamNamesByEmail(ctx context.Context, email string) ([]string, error)

	// ListMemberEmails はチームのメンバーのメールアドレスを登録順に返す。
	ListMemberEmails(ctx context.Context, teamName string) ([]string, error)

	// ReplaceAll は全チームと所属情報を入れ替える。
	ReplaceAll(ctx context.Context, teams []model.Team) error
}

// MemberRepository は利用許可メンバーの永続化インターフェース。
type MemberRepository interface {
	// Exists はメールアドレスが登録済みかを返す。大文字小文字は区別しない。
	Exists(ctx context.Context, email string) (bool, error)

	// ReplaceAll は利用許可メンバーを全件入れ替える。
	ReplaceAll(ctx context.Context, emails []string) error
}

// SnippetRepository はスニペットの永続化インターフェース。
type SnippetRepository interface {
	// FindByID は指定IDのスニペットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Snippet, error)

	// ListByTeamAndRange はチームの指定期間（両端を含む）のスニペットを返す。
	ListByTeamAndRange(ctx context.Context, teamName string, from, to model.Day) ([]*model.Snippet, error)

	// ListByUser はユーザーの全スニペットを日付の昇順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Snippet, error)

	// FindLatestBefore はユーザーの同一チームでの指定日より前で最も新しいスニペットを返す。
	// 見つからない場合はnilを返す。
	FindLatestBefore(ctx context.Context, userID, teamName string, day model.Day) (*model.Snippet, error)

	// Upsert はスニペットを作成または更新する。
	// 既存の場合はcreated_atを維持し、本文とmodified_atのみを更新する。
	Upsert(ctx context.Context, snippet *model.Snippet) (*model.Snippet, error)

	// Delete は指定IDのスニペットを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
