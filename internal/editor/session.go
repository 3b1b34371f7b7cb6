package editor

import (
	"context"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// Mode は編集画面の状態。
type Mode int

const (
	ModeLoading Mode = iota
	ModeViewContent
	ModeViewEmpty
	ModeEdit
)

// String はモードの名前を返す。
func (m Mode) String() string {
	switch m {
	case ModeViewContent:
		return "view"
	case ModeViewEmpty:
		return "empty"
	case ModeEdit:
		return "edit"
	default:
		return "loading"
	}
}

// Actions はSessionが呼び出すサーバー側の操作。Serviceが実装する。
type Actions interface {
	Save(ctx context.Context, st *session.State, v View, body string) (View, error)
	Delete(ctx context.Context, st *session.State, v View, confirmed bool) (View, error)
	Suggest(ctx context.Context, st *session.State, day model.Day) (string, error)
}

// Draft は前回のリクエストから引き継ぐ編集中の内容。
type Draft struct {
	Body              string
	Suggestion        string
	SuggestionChecked bool
}

// Session は1日分の編集画面の状態機械。
// 提案の検索は1セッションにつき高々1回で、取り消されても再検索しない。
type Session struct {
	actions Actions
	state   *session.State

	mode          Mode
	view          View
	body          string
	saved         string
	touched       bool
	pendingDelete bool

	suggestion        string
	suggestionChecked bool

	draft *Draft
}

// NewSession は読み込み中の状態でSessionを生成する。
func NewSession(actions Actions, st *session.State) *Session {
	return &Session{actions: actions, state: st, mode: ModeLoading}
}

// Resume は前回のリクエストの編集内容を引き継ぐ。Loadedより前に呼ぶ。
func (s *Session) Resume(d Draft) {
	s.draft = &d
	s.suggestion = d.Suggestion
	s.suggestionChecked = d.SuggestionChecked
}

// Mode は現在の状態を返す。
func (s *Session) Mode() Mode { return s.mode }

// View は現在の表示内容を返す。
func (s *Session) View() View { return s.view }

// Body は編集中の本文を返す。
func (s *Session) Body() string { return s.body }

// Suggestion は提案する本文を返す。
func (s *Session) Suggestion() string { return s.suggestion }

// SuggestionChecked は提案を検索済みかを返す。
func (s *Session) SuggestionChecked() bool { return s.suggestionChecked }

// Dirty は保存されていない入力があるかを返す。
func (s *Session) Dirty() bool { return s.touched }

// PendingDelete は削除の確認待ちかを返す。
func (s *Session) PendingDelete() bool { return s.pendingDelete }

// CanApplySuggestion は提案を挿入できるかを返す。
func (s *Session) CanApplySuggestion() bool {
	return s.mode == ModeEdit && s.suggestion != "" && strings.TrimSpace(s.body) == ""
}

// Loaded は読み込み結果を反映する。
func (s *Session) Loaded(ctx context.Context, v View) {
	s.view = v
	s.saved = v.Body()
	s.body = s.saved
	s.pendingDelete = false

	if v.Mode == ModeEdit {
		s.enterEdit(ctx)
	} else {
		s.mode = v.Mode
	}

	if d := s.draft; d != nil && s.mode == ModeEdit && d.Body != "" {
		s.body = d.Body
		s.touched = d.Body != s.saved
	}
}

// BeginEdit は編集モードに入る。編集可能期間外の場合はエラーを返す。
func (s *Session) BeginEdit(ctx context.Context) error {
	if s.mode == ModeEdit {
		return nil
	}
	if !s.view.CanEdit {
		return model.NewEditWindowClosedError(s.view.Day)
	}
	s.enterEdit(ctx)
	if d := s.draft; d != nil && d.Body != "" {
		s.body = d.Body
		s.touched = d.Body != s.saved
	}
	return nil
}

func (s *Session) enterEdit(ctx context.Context) {
	s.mode = ModeEdit
	s.body = s.saved
	s.touched = false
	s.pendingDelete = false

	// 前日の本文の提案は当日の新規作成時だけ
	if s.view.SnippetExists || s.suggestionChecked || !s.view.IsToday {
		return
	}
	s.suggestionChecked = true
	text, err := s.actions.Suggest(ctx, s.state, s.view.Day)
	if err == nil {
		s.suggestion = text
	}
}

// Input は編集中の本文を更新する。編集モード以外では無視する。
func (s *Session) Input(body string) {
	if s.mode != ModeEdit {
		return
	}
	s.body = body
	s.touched = body != s.saved
}

// ApplySuggestion は本文が空の場合に提案を挿入する。挿入した場合はtrueを返す。
func (s *Session) ApplySuggestion() bool {
	if !s.CanApplySuggestion() {
		return false
	}
	s.body = s.suggestion
	s.touched = true
	return true
}

// Save は編集中の本文を保存して閲覧モードに戻る。
// 失敗した場合は編集モードと本文をそのまま維持する。
func (s *Session) Save(ctx context.Context) error {
	if s.mode != ModeEdit {
		return nil
	}
	next, err := s.actions.Save(ctx, s.state, s.view, s.body)
	if err != nil {
		return err
	}
	s.view = next
	s.saved = s.body
	s.touched = false
	s.mode = ModeViewContent
	return nil
}

// Cancel は編集内容を破棄し、最後に保存した本文に戻す。書き込みは行わない。
func (s *Session) Cancel() {
	if s.mode != ModeEdit {
		s.pendingDelete = false
		return
	}
	s.body = s.saved
	s.touched = false
	if s.view.SnippetExists {
		s.mode = ModeViewContent
	} else {
		s.mode = ModeViewEmpty
	}
}

// RequestDelete は削除の確認を求める。
func (s *Session) RequestDelete() error {
	if !s.view.SnippetExists {
		return model.NewSnippetNotFoundError(s.view.Day)
	}
	if !s.view.CanEdit {
		return model.NewEditWindowClosedError(s.view.Day)
	}
	s.pendingDelete = true
	return nil
}

// ConfirmDelete は確認済みの削除を実行する。
// RequestDeleteを経ていない場合はCONFIRMATION_REQUIREDになる。
func (s *Session) ConfirmDelete(ctx context.Context) error {
	next, err := s.actions.Delete(ctx, s.state, s.view, s.pendingDelete)
	s.pendingDelete = false
	if err != nil {
		return err
	}
	s.view = next
	s.saved = ""
	s.body = ""
	s.touched = false
	s.mode = ModeViewEmpty
	return nil
}
