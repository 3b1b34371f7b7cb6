package calendar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// SnippetLister はチームの期間指定のスニペット取得に必要なインターフェース。
type SnippetLister interface {
	ListTeamRange(ctx context.Context, teamName string, from, to model.Day) ([]*model.Snippet, error)
}

// ProfileEnsurer はプロフィールキャッシュの取得に必要なインターフェース。
type ProfileEnsurer interface {
	Ensure(ctx context.Context, st *session.State, emails []string) (map[string]model.Profile, error)
}

// Service は月表示カレンダーを構築する。
type Service struct {
	snippets  SnippetLister
	profiles  ProfileEnsurer
	navigator *Navigator
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(snippets SnippetLister, profiles ProfileEnsurer, navigator *Navigator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{snippets: snippets, profiles: profiles, navigator: navigator, logger: logger}
}

// Navigator は月移動の判定に使うNavigatorを返す。
func (s *Service) Navigator() *Navigator {
	return s.navigator
}

// Month は閲覧者のチームの1か月分のカレンダーを返す。
// スニペットの取得に失敗した場合は空のカレンダーとエラーを返す。
// プロフィールの取得に失敗した場合はアバターなしのカレンダーを返す。
func (s *Service) Month(ctx context.Context, st *session.State, m Month) (Grid, error) {
	grid := BuildGrid(m, s.navigator.Today())
	if !st.HasTeam() {
		return grid, nil
	}

	list, err := s.snippets.ListTeamRange(ctx, st.Team, m.First(), m.Last())
	if err != nil {
		return grid, fmt.Errorf("failed to load month snippets: %w", err)
	}

	byDay := Aggregate(list, st.UserID)
	emails := Emails(byDay)

	profiles, err := s.profiles.Ensure(ctx, st, emails)
	if err != nil {
		s.logger.Warn("プロフィールの取得に失敗しました。アバターなしで表示します",
			slog.String("team", st.Team),
			slog.String("error", err.Error()),
		)
		grid.Annotate(byDay, nil)
		return grid, nil
	}

	grid.Annotate(byDay, func(email string) model.Profile {
		return session.Lookup(profiles, email)
	})
	return grid, nil
}
