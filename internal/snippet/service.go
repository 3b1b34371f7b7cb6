// Package snippet はスニペットの読み書きを提供する。
package snippet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/springboard/internal/markdown"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/repository"
)

// Service はスニペットに関するビジネスロジックを提供する。
type Service struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.SnippetRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Get はユーザー自身の指定日のスニペットを返す。存在しない場合はnilを返す。
func (s *Service) Get(ctx context.Context, userID string, day model.Day) (*model.Snippet, error) {
	sn, err := s.repo.FindByID(ctx, model.SnippetID(userID, day))
	if err != nil {
		return nil, fmt.Errorf("スニペットの取得に失敗: %w", err)
	}
	return sn, nil
}

// ListTeamDay はチームの指定日の全スニペットを返す。
func (s *Service) ListTeamDay(ctx context.Context, teamName string, day model.Day) ([]*model.Snippet, error) {
	return s.ListTeamRange(ctx, teamName, day, day)
}

// ListTeamRange はチームの指定期間（両端を含む）のスニペットを返す。
// チーム未所属の場合は空の結果を返す。
func (s *Service) ListTeamRange(ctx context.Context, teamName string, from, to model.Day) ([]*model.Snippet, error) {
	if teamName == "" {
		return nil, nil
	}
	list, err := s.repo.ListByTeamAndRange(ctx, teamName, from, to)
	if err != nil {
		return nil, fmt.Errorf("チームのスニペット一覧の取得に失敗: %w", err)
	}
	return list, nil
}

// ListByUser はユーザーの全スニペットを返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Snippet, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーのスニペット一覧の取得に失敗: %w", err)
	}
	return list, nil
}

// LatestBefore は同一チームで指定日より前の最新のスニペットを返す。
func (s *Service) LatestBefore(ctx context.Context, userID, teamName string, day model.Day) (*model.Snippet, error) {
	sn, err := s.repo.FindLatestBefore(ctx, userID, teamName, day)
	if err != nil {
		return nil, fmt.Errorf("直近のスニペットの取得に失敗: %w", err)
	}
	return sn, nil
}

// Author はスニペットの書き手。
type Author struct {
	UserID   string
	Email    string
	TeamName string
}

// Save はスニペットを保存する。
// 初回保存では作成日時と更新日時を同じ値にし、以降の保存では作成日時を維持する。
// 本文は表示時に変換できるサイズまでに制限する。
func (s *Service) Save(ctx context.Context, author Author, day model.Day, body string) (*model.Snippet, error) {
	if author.TeamName == "" {
		return nil, model.NewNoTeamError()
	}
	if len(body) > markdown.MaxSourceBytes {
		return nil, model.NewSnippetTooLargeError(markdown.MaxSourceBytes)
	}

	saved, err := s.repo.Upsert(ctx, &model.Snippet{
		ID:         model.SnippetID(author.UserID, day),
		UserID:     author.UserID,
		UserEmail:  author.Email,
		TeamName:   author.TeamName,
		Date:       day,
		Body:       body,
		ModifiedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("スニペットの保存に失敗: %w", err)
	}

	s.logger.Info("snippet saved",
		slog.String("snippet_id", saved.ID),
		slog.String("team", saved.TeamName),
	)
	return saved, nil
}

// Delete はユーザー自身のスニペットを削除する。
// 存在しない場合はSNIPPET_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, userID string, day model.Day) error {
	id := model.SnippetID(userID, day)
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("スニペットの削除に失敗: %w", err)
	}
	if !deleted {
		return model.NewSnippetNotFoundError(day)
	}

	s.logger.Info("snippet deleted", slog.String("snippet_id", id))
	return nil
}

// SortForViewer は閲覧者自身のスニペットを先頭に、残りを更新日時の昇順に並べる。
// 更新日時が同じ場合はメールアドレス順とする。引数のスライスを並べ替えて返す。
func SortForViewer(list []*model.Snippet, viewerID string) []*model.Snippet {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		aMine, bMine := a.UserID == viewerID, b.UserID == viewerID
		if aMine != bMine {
			return aMine
		}
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.Before(b.ModifiedAt)
		}
		return a.UserEmail < b.UserEmail
	})
	return list
}

// Merge は保存したスニペットを一覧に反映する。
// 同じIDのエントリがあれば置き換え、なければ追加する。
func Merge(list []*model.Snippet, saved *model.Snippet) []*model.Snippet {
	for i, sn := range list {
		if sn.ID == saved.ID {
			out := make([]*model.Snippet, len(list))
			copy(out, list)
			out[i] = saved
			return out
		}
	}
	out := make([]*model.Snippet, 0, len(list)+1)
	out = append(out, list...)
	return append(out, saved)
}
