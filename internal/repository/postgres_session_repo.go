package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/springboard/internal/model"
)

// emptySessionData はsessions.dataのカラムデフォルト。状態が未保存であることを表す。
var emptySessionData = []byte("{}")

const (
	insertSession = `INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`

	selectLiveSession = `SELECT id, user_id, expires_at, created_at FROM sessions
		WHERE id = $1 AND expires_at > now()`

	updateLiveSessionData = `UPDATE sessions SET data = $2 WHERE id = $1 AND expires_at > now()`

	selectLiveSessionData = `SELECT data FROM sessions WHERE id = $1 AND expires_at > now()`

	deleteSession = `DELETE FROM sessions WHERE id = $1`
)

// PostgresSessionRepo はsessionsテーブルを扱うリポジトリ。
// 期限切れの行は存在しないものとして扱い、物理削除はクリーンアップジョブが行う。
type PostgresSessionRepo struct {
	db *sql.DB
}

func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	if _, err := r.db.ExecContext(ctx, insertSession, s.ID, s.UserID, s.ExpiresAt, s.CreatedAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は有効なセッションを返す。存在しないか期限切れならnil。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx, selectLiveSession, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session %s: %w", id, err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// SaveData は状態データ(JSON)を書き込む。対象が無効なセッションなら何もしない。
func (r *PostgresSessionRepo) SaveData(ctx context.Context, id string, data []byte) error {
	if len(data) == 0 {
		data = emptySessionData
	}
	if _, err := r.db.ExecContext(ctx, updateLiveSessionData, id, data); err != nil {
		return fmt.Errorf("failed to save session data: %w", err)
	}
	return nil
}

// FindData は状態データを返す。無効なセッションや未保存の場合はnil。
func (r *PostgresSessionRepo) FindData(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, selectLiveSessionData, id).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find session data: %w", err)
	case len(data) == 0 || bytes.Equal(data, emptySessionData):
		return nil, nil
	}
	return data, nil
}

// DeleteByID はセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteSession, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
