package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/springboard/internal/calendar"
	"github.com/hitoshi/springboard/internal/editor"
	"github.com/hitoshi/springboard/internal/markdown"
	"github.com/hitoshi/springboard/internal/middleware"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// maxPageFormBytes は画面から送信できるフォームの上限。
// 本文と提案はURLエンコードで最大3倍になる。
const maxPageFormBytes = 2*3*markdown.MaxSourceBytes + 8<<10

//go:embed templates/*.html
var templateFS embed.FS

// noticeKeys はリダイレクト先のクエリで受け付ける通知。
var noticeKeys = map[string]string{
	"future-day":   model.NoticeFutureDay,
	"future-month": model.NoticeFutureMonth,
}

// PageHandler はサーバーサイドで描画する画面のHTTPハンドラー。
type PageHandler struct {
	calendar  CalendarServiceInterface
	navigator Navigator
	editor    SnippetEditorInterface
	renderer  MarkdownRenderer
	metrics   SnippetMetrics
	templates map[string]*template.Template
}

// NewPageHandler はPageHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewPageHandler(cal CalendarServiceInterface, navigator Navigator, ed SnippetEditorInterface, renderer MarkdownRenderer, metrics SnippetMetrics) (*PageHandler, error) {
	templates := make(map[string]*template.Template)
	for _, name := range []string{"login", "calendar", "snippet"} {
		t, err := template.New(name).Funcs(template.FuncMap{
			"add": func(a, b int) int { return a + b },
		}).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		templates[name] = t
	}

	return &PageHandler{
		calendar:  cal,
		navigator: navigator,
		editor:    ed,
		renderer:  renderer,
		metrics:   metrics,
		templates: templates,
	}, nil
}

// pageBase は全画面に共通する表示内容。
type pageBase struct {
	Title     string
	CSRFField string
	CSRFToken string
	User      *avatarResponse
}

func newPageBase(r *http.Request, title string) pageBase {
	base := pageBase{
		Title:     title,
		CSRFField: middleware.CSRFFormField,
		CSRFToken: middleware.CSRFToken(r),
	}
	if st, ok := middleware.StateFromContext(r.Context()); ok {
		u := toAvatarResponse(st.Profile(), true)
		base.User = &u
	}
	return base
}

// render はテンプレートをバッファに描画してから書き込む。
func (h *PageHandler) render(w http.ResponseWriter, name string, status int, data any) {
	var buf bytes.Buffer
	if err := h.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// noticeOf はエラーを画面に表示する通知に変換する。
func noticeOf(err error, fallback string) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return fallback
}

// --- ログイン画面 ---

type loginPage struct {
	pageBase
	Notice string
}

// Login はログイン画面を表示する。利用を許可されたユーザーはカレンダーへリダイレクトする。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	data := loginPage{pageBase: newPageBase(r, "ログイン")}

	if st, ok := middleware.StateFromContext(r.Context()); ok {
		if st.Authorized() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		data.Notice = model.NoticeNotAuthorized
		if st.AuthError != nil {
			data.Notice = st.AuthError.Message
		}
	}
	h.render(w, "login", http.StatusOK, data)
}

// --- カレンダー画面 ---

type monthOption struct {
	Value    int
	Selected bool
}

type calendarPage struct {
	pageBase
	Calendar calendarResponse
	Weeks    [][]*dayCellResponse
	Months   []monthOption
	Notice   string
}

// weeksOf はカレンダーの週ごとの区切りをレスポンスのセルに対応づける。空白はnil。
func weeksOf(g calendar.Grid, resp *calendarResponse) [][]*dayCellResponse {
	var weeks [][]*dayCellResponse
	for _, week := range g.Weeks() {
		row := make([]*dayCellResponse, len(week))
		for i, cell := range week {
			if cell != nil {
				row[i] = &resp.Days[cell.DayOfMonth-1]
			}
		}
		weeks = append(weeks, row)
	}
	return weeks
}

// Calendar はチームの月表示カレンダーを表示する。
// GET /?month=yyyy-MM&nav=prev|next|today&year=&pick=
// 移動が拒否された場合は元の月のまま通知を表示する。
func (h *PageHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.StateFromContext(r.Context())
	data := calendarPage{pageBase: newPageBase(r, "カレンダー")}

	q := r.URL.Query()
	if notice, ok := noticeKeys[q.Get("notice")]; ok {
		data.Notice = notice
	}

	m, err := resolveMonth(h.navigator, q)
	if err != nil {
		data.Notice = noticeOf(err, model.NoticeFutureMonth)
	}

	grid, err := h.calendar.Month(r.Context(), st, m)
	if err != nil {
		slog.Error("failed to load calendar",
			slog.String("user_id", st.UserID),
			slog.String("month", m.String()),
			slog.String("error", err.Error()),
		)
		data.Notice = model.NoticeSnippetLoadError
	}

	data.Calendar = toCalendarResponse(grid, h.navigator)
	data.Weeks = weeksOf(grid, &data.Calendar)
	current := h.navigator.Current()
	for mon := time.January; mon <= time.December; mon++ {
		if m.Year == current.Year && mon > current.Month {
			break
		}
		data.Months = append(data.Months, monthOption{Value: int(mon), Selected: mon == m.Month})
	}
	h.render(w, "calendar", http.StatusOK, data)
}

// --- スニペット編集画面 ---

type snippetPage struct {
	pageBase
	View               snippetViewResponse
	Mode               string
	Body               string
	Preview            template.HTML
	Suggestion         string
	SuggestionChecked  bool
	CanApplySuggestion bool
	PendingDelete      bool
	Dirty              bool
	Notice             string
	MonthLink          string
	Placeholder        string
	SyntaxGuide        string
	MarkdownSupported  string
	KeyBindings        []editor.Binding
}

func (h *PageHandler) snippetPageData(r *http.Request, day model.Day, sess *editor.Session) snippetPage {
	data := snippetPage{
		pageBase:           newPageBase(r, day.String()),
		View:               toSnippetViewResponse(sess.View(), h.renderer.RenderOrText),
		Mode:               sess.Mode().String(),
		Body:               sess.Body(),
		Suggestion:         sess.Suggestion(),
		SuggestionChecked:  sess.SuggestionChecked(),
		CanApplySuggestion: sess.CanApplySuggestion(),
		PendingDelete:      sess.PendingDelete(),
		Dirty:              sess.Dirty(),
		MonthLink:          "/?month=" + calendar.MonthOf(day).String(),
		Placeholder:        model.SnippetPlaceholder,
		SyntaxGuide:        model.MarkdownSyntaxGuide,
		MarkdownSupported:  model.MarkdownSupported,
		KeyBindings:        editor.KeyBindings,
	}
	if sess.Mode() != editor.ModeEdit {
		data.Notice = data.View.Notice
	}
	if sess.Mode() == editor.ModeEdit && sess.Body() != "" {
		data.Preview = h.renderer.RenderOrText(sess.Body())
	}
	if sess.PendingDelete() {
		data.Notice = model.NoticeDeleteConfirm
	}
	return data
}

// pageDay はURLの日付を解析する。未来の日付はカレンダーへ戻して通知する。
func (h *PageHandler) pageDay(w http.ResponseWriter, r *http.Request) (model.Day, bool) {
	raw := chi.URLParam(r, "date")
	day, err := model.ParseDay(raw)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return "", false
	}
	if _, err := h.navigator.ClickDay(day); err != nil {
		v := url.Values{}
		v.Set("month", calendar.MonthOf(h.navigator.Today()).String())
		v.Set("notice", "future-day")
		http.Redirect(w, r, "/?"+v.Encode(), http.StatusSeeOther)
		return "", false
	}
	return day, true
}

// load は指定日の編集画面を読み込む。失敗した場合は通知付きの空の画面を描画してfalseを返す。
func (h *PageHandler) load(w http.ResponseWriter, r *http.Request, st *session.State, day model.Day, draft *editor.Draft) (*editor.Session, bool) {
	sess := editor.NewSession(h.editor, st)
	if draft != nil {
		sess.Resume(*draft)
	}

	v, err := h.editor.Load(r.Context(), st, day)
	if err != nil {
		data := h.snippetPageData(r, day, sess)
		data.Notice = model.NoticeSnippetLoadError
		h.render(w, "snippet", http.StatusOK, data)
		return nil, false
	}
	sess.Loaded(r.Context(), v)
	return sess, true
}

// Snippet は1日分の編集画面を表示する。
// GET /snippet/{date}
func (h *PageHandler) Snippet(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.StateFromContext(r.Context())
	day, ok := h.pageDay(w, r)
	if !ok {
		return
	}

	sess, ok := h.load(w, r, st, day, nil)
	if !ok {
		return
	}
	h.render(w, "snippet", http.StatusOK, h.snippetPageData(r, day, sess))
}

// SnippetAction は編集画面のフォーム操作を処理する。
// POST /snippet/{date}
// action: edit, save, cancel, delete, confirm-delete, suggest, key
// 編集中の本文と提案は隠しフィールドでリクエスト間に引き継ぐ。
func (h *PageHandler) SnippetAction(w http.ResponseWriter, r *http.Request) {
	st, _ := middleware.StateFromContext(r.Context())
	day, ok := h.pageDay(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteRequestTooLarge(w, r)
			return
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	body := r.PostFormValue("body")
	draft := &editor.Draft{
		Body:              body,
		Suggestion:        r.PostFormValue("suggestion"),
		SuggestionChecked: r.PostFormValue("suggestion_checked") == "1",
	}
	sess, ok := h.load(w, r, st, day, draft)
	if !ok {
		return
	}

	ctx := r.Context()
	action := r.PostFormValue("action")
	wasEditing := r.PostFormValue("mode") == editor.ModeEdit.String()

	// 前回のリクエストで編集中だった場合は編集モードと本文を復元する
	if wasEditing || action == "save" {
		if err := sess.BeginEdit(ctx); err != nil {
			data := h.snippetPageData(r, day, sess)
			data.Notice = noticeOf(err, model.NoticeSaveError)
			h.render(w, "snippet", http.StatusUnprocessableEntity, data)
			return
		}
		sess.Input(body)
	}

	var actionErr error
	fallback := model.NoticeSaveError
	switch action {
	case "edit":
		actionErr = sess.BeginEdit(ctx)
	case "save":
		if actionErr = sess.Save(ctx); actionErr == nil {
			h.recordSaved()
			http.Redirect(w, r, "/snippet/"+day.String(), http.StatusSeeOther)
			return
		}
	case "cancel":
		sess.Cancel()
	case "suggest":
		sess.ApplySuggestion()
	case "delete":
		fallback = model.NoticeDeleteError
		actionErr = sess.RequestDelete()
	case "confirm-delete":
		fallback = model.NoticeDeleteError
		if r.PostFormValue("pending_delete") == "1" {
			if err := sess.RequestDelete(); err != nil {
				actionErr = err
				break
			}
		}
		if actionErr = sess.ConfirmDelete(ctx); actionErr == nil {
			h.recordDeleted()
		}
	case "key":
		var cmd editor.Command
		cmd, actionErr = sess.HandleKey(ctx, editor.Key{
			Name: r.PostFormValue("key"),
			Ctrl: r.PostFormValue("ctrl") == "1",
			Meta: r.PostFormValue("meta") == "1",
		})
		if cmd == editor.CommandSave && actionErr == nil {
			h.recordSaved()
			http.Redirect(w, r, "/snippet/"+day.String(), http.StatusSeeOther)
			return
		}
	}

	data := h.snippetPageData(r, day, sess)
	status := http.StatusOK
	if actionErr != nil {
		slog.Warn("snippet action failed",
			slog.String("user_id", st.UserID),
			slog.String("date", day.String()),
			slog.String("action", action),
			slog.String("error", actionErr.Error()),
		)
		data.Notice = noticeOf(actionErr, fallback)
		var apiErr *model.APIError
		if errors.As(actionErr, &apiErr) {
			status = middleware.StatusFor(apiErr)
		} else {
			status = http.StatusInternalServerError
		}
	}
	h.render(w, "snippet", status, data)
}

func (h *PageHandler) recordSaved() {
	if h.metrics != nil {
		h.metrics.RecordSnippetSaved()
	}
}

func (h *PageHandler) recordDeleted() {
	if h.metrics != nil {
		h.metrics.RecordSnippetDeleted()
	}
}
