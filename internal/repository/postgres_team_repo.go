package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db *sql.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sql.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

// FindTeamNamesByEmail はメールアドレスが所属するチーム名をチーム名の昇順で返す。
func (r *PostgresTeamRepo) FindTeamNamesByEmail(ctx context.Context, email string) ([]string, error) {
	return r.queryStrings(ctx,
		`SELECT team_name FROM team_members WHERE lower(email) = lower($1) ORDER BY team_name`,
		email,
	)
}

// ListMemberEmails はチームのメンバーのメールアドレスを登録順に返す。
func (r *PostgresTeamRepo) ListMemberEmails(ctx context.Context, teamName string) ([]string, error) {
	return r.queryStrings(ctx,
		`SELECT email FROM team_members WHERE team_name = $1 ORDER BY position, email`,
		teamName,
	)
}

// ReplaceAll は全チームと所属情報を同一トランザクションで入れ替える。
// 同じチーム内で重複したメールアドレスは最初の1件のみ登録する。
func (r *PostgresTeamRepo) ReplaceAll(ctx context.Context, teams []model.Team) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return fmt.Errorf("failed to clear teams: %w", err)
	}

	for _, team := range teams {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teams (name) VALUES ($1)`, team.Name); err != nil {
			return fmt.Errorf("failed to insert team %s: %w", team.Name, err)
		}
		seen := make(map[string]bool, len(team.Emails))
		position := 0
		for _, email := range team.Emails {
			email = strings.TrimSpace(email)
			key := strings.ToLower(email)
			if email == "" || seen[key] {
				continue
			}
			seen[key] = true
			_, err := tx.ExecContext(ctx,
				`INSERT INTO team_members (team_name, email, position) VALUES ($1, $2, $3)`,
				team.Name, email, position,
			)
			if err != nil {
				return fmt.Errorf("failed to insert team member %s: %w", email, err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresTeamRepo) queryStrings(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team members: %w", err)
	}
	return values, nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
