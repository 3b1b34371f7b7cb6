package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// PostgresIdentityRepo はGoogleアカウントとユーザーの紐付けを保持する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnil, nilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var (
		identity     model.Identity
		lastSignInAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at, last_sign_in_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt, &lastSignInAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if lastSignInAt.Valid {
		identity.LastSignInAt = &lastSignInAt.Time
	}
	return &identity, nil
}

// RecordSignIn は最終サインイン日時を更新する。
// 古い時刻での上書きはしない（同時ログインで順序が前後しても巻き戻らない）。
func (r *PostgresIdentityRepo) RecordSignIn(ctx context.Context, identityID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities
		 SET last_sign_in_at = GREATEST(COALESCE(last_sign_in_at, $2), $2)
		 WHERE id = $1`,
		identityID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record sign-in: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("identity %s not found", identityID)
	}
	return nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
