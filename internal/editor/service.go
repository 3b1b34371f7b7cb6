package editor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
	"github.com/hitoshi/springboard/internal/snippet"
)

// DefaultTemplate は過去のスニペットがない場合に提案する定型文。
const DefaultTemplate = "## 昨日やったこと\n- \n\n## 今日やること\n- \n\n## 困っていること\n- \n"

// SnippetStore はEditorが必要とするスニペット操作のインターフェース。
// snippet.Serviceの部分集合として定義する。
type SnippetStore interface {
	ListTeamDay(ctx context.Context, teamName string, day model.Day) ([]*model.Snippet, error)
	LatestBefore(ctx context.Context, userID, teamName string, day model.Day) (*model.Snippet, error)
	Save(ctx context.Context, author snippet.Author, day model.Day, body string) (*model.Snippet, error)
	Delete(ctx context.Context, userID string, day model.Day) error
}

// ProfileEnsurer はセッション状態のプロフィールキャッシュを補完するインターフェース。
type ProfileEnsurer interface {
	Ensure(ctx context.Context, st *session.State, emails []string) (map[string]model.Profile, error)
}

// Entry は同じ日の一覧に表示する1件のスニペット。
type Entry struct {
	Snippet *model.Snippet
	Profile model.Profile
	IsMine  bool
}

// View は1日分の編集画面の表示内容。
type View struct {
	Day           model.Day
	Mode          Mode
	Entries       []Entry
	Mine          *model.Snippet
	SnippetExists bool
	CanEdit       bool
	IsToday       bool
	AvatarsReady  bool
}

// Body は自分のスニペットの本文を返す。未作成の場合は空文字を返す。
func (v View) Body() string {
	if v.Mine == nil {
		return ""
	}
	return v.Mine.Body
}

// Service はスニペット編集画面のサーバー側の操作を提供する。
type Service struct {
	snippets SnippetStore
	profiles ProfileEnsurer
	window   *Window
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(snippets SnippetStore, profiles ProfileEnsurer, window *Window, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{snippets: snippets, profiles: profiles, window: window, logger: logger}
}

// Window は編集可能期間のポリシーを返す。
func (s *Service) Window() *Window {
	return s.window
}

// Load はチームの指定日のスニペットを取得して画面の初期状態を決める。
// 自分のスニペットがあれば閲覧モード、なければ今日かつ一覧が空の場合のみ編集モードで開く。
func (s *Service) Load(ctx context.Context, st *session.State, day model.Day) (View, error) {
	v := View{
		Day:     day,
		Mode:    ModeLoading,
		IsToday: day == s.window.Today(),
		CanEdit: s.window.Allows(day),
	}

	list, err := s.snippets.ListTeamDay(ctx, st.Team, day)
	if err != nil {
		s.logger.Error("failed to load snippets",
			slog.String("user_id", st.UserID),
			slog.String("date", day.String()),
			slog.String("error", err.Error()),
		)
		return v, err
	}

	snippet.SortForViewer(list, st.UserID)
	v.Entries = make([]Entry, 0, len(list))
	for _, sn := range list {
		mine := sn.UserID == st.UserID
		if mine {
			v.Mine = sn
		}
		v.Entries = append(v.Entries, Entry{Snippet: sn, IsMine: mine, Profile: model.Profile{UserID: sn.UserID, Email: sn.UserEmail}})
	}
	v.SnippetExists = v.Mine != nil

	switch {
	case v.SnippetExists:
		v.Mode = ModeViewContent
	case v.IsToday && len(v.Entries) == 0:
		v.Mode = ModeEdit
	default:
		v.Mode = ModeViewEmpty
	}

	s.annotate(ctx, st, &v)
	return v, nil
}

// annotate は一覧の書き手のプロフィールを補完する。
// 取得に失敗した場合はメールアドレスのみで表示する。
func (s *Service) annotate(ctx context.Context, st *session.State, v *View) {
	v.AvatarsReady = false
	if s.profiles == nil || len(v.Entries) == 0 {
		return
	}

	emails := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		emails = append(emails, e.Snippet.UserEmail)
	}
	profiles, err := s.profiles.Ensure(ctx, st, emails)
	if err != nil {
		s.logger.Warn("failed to load author profiles",
			slog.String("user_id", st.UserID),
			slog.String("error", err.Error()),
		)
		return
	}

	for i, e := range v.Entries {
		p := session.Lookup(profiles, e.Snippet.UserEmail)
		if p.UserID == "" {
			p.UserID = e.Snippet.UserID
		}
		v.Entries[i].Profile = p
	}
	v.AvatarsReady = true
}

// Save はスニペットを保存し、保存結果を画面の状態に反映する。
// 失敗した場合は元の状態をそのまま返す。
func (s *Service) Save(ctx context.Context, st *session.State, v View, body string) (View, error) {
	if err := s.window.Check(v.Day); err != nil {
		return v, err
	}

	saved, err := s.snippets.Save(ctx, snippet.Author{
		UserID:   st.UserID,
		Email:    st.Email,
		TeamName: st.Team,
	}, v.Day, body)
	if err != nil {
		s.logger.Error("failed to save snippet",
			slog.String("user_id", st.UserID),
			slog.String("date", v.Day.String()),
			slog.String("error", err.Error()),
		)
		return v, err
	}

	next := v
	list := make([]*model.Snippet, 0, len(v.Entries)+1)
	for _, e := range v.Entries {
		list = append(list, e.Snippet)
	}
	list = snippet.SortForViewer(snippet.Merge(list, saved), st.UserID)

	next.Entries = make([]Entry, 0, len(list))
	for _, sn := range list {
		e := Entry{Snippet: sn, IsMine: sn.UserID == st.UserID, Profile: model.Profile{UserID: sn.UserID, Email: sn.UserEmail}}
		for _, old := range v.Entries {
			if old.Snippet.ID == sn.ID {
				e.Profile = old.Profile
			}
		}
		next.Entries = append(next.Entries, e)
	}
	next.Mine = saved
	next.SnippetExists = true
	next.Mode = ModeViewContent
	next.CanEdit = s.window.Allows(v.Day)

	s.annotate(ctx, st, &next)
	return next, nil
}

// Delete は自分のスニペットを削除し、一覧から取り除く。
// confirmedがfalseの場合は削除せずCONFIRMATION_REQUIREDを返す。
func (s *Service) Delete(ctx context.Context, st *session.State, v View, confirmed bool) (View, error) {
	if err := s.window.Check(v.Day); err != nil {
		return v, err
	}
	if !confirmed {
		return v, model.NewConfirmationRequiredError()
	}

	if err := s.snippets.Delete(ctx, st.UserID, v.Day); err != nil {
		s.logger.Error("failed to delete snippet",
			slog.String("user_id", st.UserID),
			slog.String("date", v.Day.String()),
			slog.String("error", err.Error()),
		)
		return v, err
	}

	id := model.SnippetID(st.UserID, v.Day)
	next := v
	next.Entries = make([]Entry, 0, len(v.Entries))
	for _, e := range v.Entries {
		if e.Snippet.ID != id {
			next.Entries = append(next.Entries, e)
		}
	}
	next.Mine = nil
	next.SnippetExists = false
	next.Mode = ModeViewEmpty
	return next, nil
}

// Suggest は編集の提案として、同じチームで指定日より前の最新のスニペットの本文を返す。
// 過去のスニペットがない場合はDefaultTemplateを返す。
func (s *Service) Suggest(ctx context.Context, st *session.State, day model.Day) (string, error) {
	prev, err := s.snippets.LatestBefore(ctx, st.UserID, st.Team, day)
	if err != nil {
		s.logger.Warn("failed to look up suggestion",
			slog.String("user_id", st.UserID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	if prev == nil || strings.TrimSpace(prev.Body) == "" {
		return DefaultTemplate, nil
	}
	return prev.Body, nil
}
