package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/springboard/internal/model"
	"github.com/lib/pq"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, display_name, photo_url, last_login, created_at, updated_at`

// scanUser は1行分のユーザーを読み取る。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var lastLogin sql.NullTime
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PhotoURL, &lastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindProfilesByEmails は指定メールアドレスのユーザーの公開プロフィールを一括取得する。
func (r *PostgresUserRepo) FindProfilesByEmails(ctx context.Context, emails []string) ([]model.Profile, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(e)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, display_name, photo_url
		 FROM users
		 WHERE lower(email) = ANY($1)
		 ORDER BY email`,
		pq.Array(lowered),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.UserID, &p.Email, &p.DisplayName, &p.PhotoURL); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, photo_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.DisplayName, user.PhotoURL, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MergeProfile はサインイン時のプロフィールをマージ更新する。
// 空文字の項目は既存値を維持する。プロフィール画像URLが変わった場合は
// アバターキャッシュを無効化して再取得対象にする。
func (r *PostgresUserRepo) MergeProfile(ctx context.Context, user *model.User) (*model.User, error) {
	lastLogin := user.LastLogin
	if lastLogin.IsZero() {
		lastLogin = time.Now()
	}

	merged, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET
			email = COALESCE(NULLIF($2, ''), email),
			display_name = COALESCE(NULLIF($3, ''), display_name),
			photo_url = COALESCE(NULLIF($4, ''), photo_url),
			avatar_fetched_at = CASE WHEN NULLIF($4, '') IS NOT NULL AND $4 <> photo_url THEN NULL ELSE avatar_fetched_at END,
			last_login = $5,
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		user.ID, user.Email, user.DisplayName, user.PhotoURL, lastLogin,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to merge user profile: %w", err)
	}

	return merged, nil
}

// FindAvatar はキャッシュ済みアバター画像を取得する。未取得の場合はnilを返す。
func (r *PostgresUserRepo) FindAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	avatar := &model.Avatar{UserID: userID}
	var mime sql.NullString
	var fetchedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT avatar_data, avatar_mime, avatar_fetched_at
		 FROM users
		 WHERE id = $1 AND avatar_data IS NOT NULL`,
		userID,
	).Scan(&avatar.Data, &mime, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find avatar: %w", err)
	}

	avatar.Mime = mime.String
	if fetchedAt.Valid {
		avatar.FetchedAt = fetchedAt.Time.UTC()
	}
	return avatar, nil
}

// UpdateAvatar はアバター画像のキャッシュを更新する。
// 画像が取得できなかった場合（Dataがnil）も取得日時を記録し、TTLまで再取得しない。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, avatar *model.Avatar) error {
	var mime sql.NullString
	if avatar.Mime != "" {
		mime = sql.NullString{String: avatar.Mime, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET avatar_data = $2, avatar_mime = $3, avatar_fetched_at = $4
		 WHERE id = $1`,
		avatar.UserID, avatar.Data, mime, avatar.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

// ListNeedingAvatarFetch はアバター画像の取得が必要なユーザーを取得する。
// 未取得のユーザーを優先し、次に取得日時が古い順に返す。
func (r *PostgresUserRepo) ListNeedingAvatarFetch(ctx context.Context, staleBefore time.Time, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE photo_url <> ''
		   AND (avatar_fetched_at IS NULL OR avatar_fetched_at < $1)
		 ORDER BY avatar_fetched_at ASC NULLS FIRST
		 LIMIT $2`,
		staleBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users needing avatar fetch: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
