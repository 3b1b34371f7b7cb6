package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/springboard/internal/calendar"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// Navigator は月移動と日付選択の判定に必要なインターフェース。
// calendar.Navigatorが実装する。
type Navigator interface {
	Today() model.Day
	Current() calendar.Month
	Prev(m calendar.Month) calendar.Month
	Next(m calendar.Month) (calendar.Month, error)
	SelectYear(m calendar.Month, year int) (calendar.Month, error)
	SelectMonth(m calendar.Month, month time.Month) (calendar.Month, error)
	Years() []int
	ClickDay(day model.Day) (string, error)
}

// CalendarServiceInterface はカレンダーハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	Month(ctx context.Context, st *session.State, m calendar.Month) (calendar.Grid, error)
}

// CalendarExporter はiCalendar形式の書き出しに必要なインターフェース。
// export.Exporterが実装する。
type CalendarExporter interface {
	Write(ctx context.Context, w io.Writer, userID, calendarName string) error
}

// CalendarHandler は月表示カレンダーのHTTPハンドラー。
type CalendarHandler struct {
	service   CalendarServiceInterface
	navigator Navigator
	exporter  CalendarExporter
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface, navigator Navigator, exporter CalendarExporter) *CalendarHandler {
	return &CalendarHandler{
		service:   service,
		navigator: navigator,
		exporter:  exporter,
	}
}

// resolveMonth はクエリパラメータから表示する月を決める。
// month（yyyy-MM）を基準に year（年の選択）、pick（月の選択）、nav（prev / next / today）の順に適用する。
// 移動が拒否された場合は基準の月とエラーを返す。
func resolveMonth(nav Navigator, q url.Values) (calendar.Month, error) {
	current := nav.Current()
	m := current
	if s := q.Get("month"); s != "" {
		parsed, err := calendar.ParseMonth(s)
		if err != nil {
			return current, err
		}
		if parsed.After(current) {
			return current, model.NewFutureMonthError()
		}
		m = parsed
	}

	if s := q.Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return m, model.NewInvalidMonthError(s)
		}
		if m, err = nav.SelectYear(m, year); err != nil {
			return m, err
		}
	}

	if s := q.Get("pick"); s != "" {
		month, err := strconv.Atoi(s)
		if err != nil {
			return m, model.NewInvalidMonthError(s)
		}
		if m, err = nav.SelectMonth(m, time.Month(month)); err != nil {
			return m, err
		}
	}

	switch q.Get("nav") {
	case "prev":
		m = nav.Prev(m)
	case "next":
		next, err := nav.Next(m)
		if err != nil {
			return m, err
		}
		m = next
	case "today":
		m = current
	}
	return m, nil
}

// GetMonth は1か月分のカレンダーを返す。
// GET /api/calendar?month=yyyy-MM&nav=prev|next|today&year=&pick=
// 月の移動が拒否された場合は422、スニペットの取得に失敗した場合は空のカレンダーに通知を添えて返す。
func (h *CalendarHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}

	m, err := resolveMonth(h.navigator, r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	grid, err := h.service.Month(r.Context(), st, m)
	resp := toCalendarResponse(grid, h.navigator)
	if err != nil {
		slog.Error("failed to load calendar",
			slog.String("user_id", st.UserID),
			slog.String("month", m.String()),
			slog.String("error", err.Error()),
		)
		resp.Notice = model.NoticeSnippetLoadError
	}
	writeJSON(w, http.StatusOK, resp)
}

// dayRouteResponse は日付選択の結果。
type dayRouteResponse struct {
	Date  string `json:"date"`
	Route string `json:"route"`
}

// ClickDay は日付セルの選択を判定し、エディターのパスを返す。
// GET /api/calendar/days/{date}
func (h *CalendarHandler) ClickDay(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDayParam(w, chi.URLParam(r, "date"))
	if !ok {
		return
	}

	route, err := h.navigator.ClickDay(day)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dayRouteResponse{Date: day.String(), Route: route})
}

// ExportICS は閲覧者自身のスニペットをiCalendar形式で返す。
// GET /api/calendar.ics
func (h *CalendarHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(r.Context(), &buf, st.UserID, "Daily Springboard"); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="springboard.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
