package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// PostgresSnippetRepo はPostgreSQLを使用したスニペットリポジトリ。
type PostgresSnippetRepo struct {
	db *sql.DB
}

// NewPostgresSnippetRepo はPostgresSnippetRepoを生成する。
func NewPostgresSnippetRepo(db *sql.DB) *PostgresSnippetRepo {
	return &PostgresSnippetRepo{db: db}
}

const snippetColumns = `id, user_id, user_email, team_name, date, body, created_at, modified_at`

// scanSnippet は1行分のスニペットを読み取り、日付とタイムスタンプを正規化する。
func scanSnippet(row interface{ Scan(...any) error }) (*model.Snippet, error) {
	s := &model.Snippet{}
	var date time.Time
	if err := row.Scan(&s.ID, &s.UserID, &s.UserEmail, &s.TeamName, &date, &s.Body, &s.CreatedAt, &s.ModifiedAt); err != nil {
		return nil, err
	}
	s.Date = model.Day(date.Format(model.DayLayout))
	s.CreatedAt = s.CreatedAt.UTC()
	s.ModifiedAt = s.ModifiedAt.UTC()
	return s, nil
}

// FindByID は指定IDのスニペットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnippetRepo) FindByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := scanSnippet(r.db.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snippet: %w", err)
	}
	return s, nil
}

// ListByTeamAndRange はチームの指定期間（両端を含む）のスニペットを返す。
func (r *PostgresSnippetRepo) ListByTeamAndRange(ctx context.Context, teamName string, from, to model.Day) ([]*model.Snippet, error) {
	return r.list(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE team_name = $1 AND date BETWEEN $2::date AND $3::date
		 ORDER BY date, modified_at`,
		teamName, from.String(), to.String(),
	)
}

// ListByUser はユーザーの全スニペットを日付の昇順で返す。
func (r *PostgresSnippetRepo) ListByUser(ctx context.Context, userID string) ([]*model.Snippet, error) {
	return r.list(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE user_id = $1
		 ORDER BY date`,
		userID,
	)
}

// FindLatestBefore はユーザーの同一チームでの指定日より前で最も新しいスニペットを返す。
func (r *PostgresSnippetRepo) FindLatestBefore(ctx context.Context, userID, teamName string, day model.Day) (*model.Snippet, error) {
	s, err := scanSnippet(r.db.QueryRowContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE user_id = $1 AND team_name = $2 AND date < $3::date
		 ORDER BY date DESC
		 LIMIT 1`,
		userID, teamName, day.String(),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snippet: %w", err)
	}
	return s, nil
}

// Upsert はスニペットを作成または更新する。
// 1文のINSERT ... ON CONFLICTで行い、同時保存でも重複レコードは作られない。
func (r *PostgresSnippetRepo) Upsert(ctx context.Context, snippet *model.Snippet) (*model.Snippet, error) {
	saved, err := scanSnippet(r.db.QueryRowContext(ctx,
		`INSERT INTO snippets (id, user_id, user_email, team_name, date, body, created_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5::date, $6, $7, $7)
		 ON CONFLICT (id) DO UPDATE SET
			body = EXCLUDED.body,
			user_email = EXCLUDED.user_email,
			team_name = EXCLUDED.team_name,
			modified_at = EXCLUDED.modified_at
		 RETURNING `+snippetColumns,
		snippet.ID, snippet.UserID, snippet.UserEmail, snippet.TeamName,
		snippet.Date.String(), snippet.Body, snippet.ModifiedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snippet: %w", err)
	}
	return saved, nil
}

// Delete は指定IDのスニペットを削除する。削除した場合はtrueを返す。
func (r *PostgresSnippetRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete snippet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *PostgresSnippetRepo) list(ctx context.Context, query string, args ...any) ([]*model.Snippet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []*model.Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snippets: %w", err)
	}
	return snippets, nil
}

// compile-time interface check
var _ SnippetRepository = (*PostgresSnippetRepo)(nil)
