package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresMemberRepo はPostgreSQLを使用した利用許可メンバーリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// Exists はメールアドレスが登録済みかを返す。
func (r *PostgresMemberRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE lower(email) = lower($1))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member: %w", err)
	}
	return exists, nil
}

// ReplaceAll は利用許可メンバーを全件入れ替える。
func (r *PostgresMemberRepo) ReplaceAll(ctx context.Context, emails []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO members (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
			strings.ToLower(email),
		)
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
