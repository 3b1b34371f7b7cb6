// Package team はユーザーの所属チーム解決とチーム参照データの投入を提供する。
package team

import (
	"context"
	"fmt"
	"log/slog"
)

// MembershipFinder はチーム所属の検索に必要なインターフェース。
// repository.TeamRepositoryの部分集合として定義する。
type MembershipFinder interface {
	FindTeamNamesByEmail(ctx context.Context, email string) ([]string, error)
	ListMemberEmails(ctx context.Context, teamName string) ([]string, error)
}

// Resolver はメールアドレスから所属チームを解決する。
type Resolver struct {
	repo   MembershipFinder
	logger *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(repo MembershipFinder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve はメールアドレスが所属するチーム名を返す。
// 複数のチームに所属している場合はチーム名の昇順で最初のチームを採用する。
// 所属チームがない場合はokがfalseになる。
func (r *Resolver) Resolve(ctx context.Context, email string) (string, bool, error) {
	if email == "" {
		return "", false, nil
	}

	names, err := r.repo.FindTeamNamesByEmail(ctx, email)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve team: %w", err)
	}
	if len(names) == 0 {
		return "", false, nil
	}
	if len(names) > 1 {
		r.logger.Warn("複数のチームに所属しています。先頭のチームを使用します",
			slog.String("email", email),
			slog.Any("teams", names),
			slog.String("selected", names[0]),
		)
	}
	return names[0], true, nil
}

// Members はチームのメンバーのメールアドレスを返す。
func (r *Resolver) Members(ctx context.Context, teamName string) ([]string, error) {
	if teamName == "" {
		return nil, nil
	}
	emails, err := r.repo.ListMemberEmails(ctx, teamName)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return emails, nil
}
