package handler

import (
	"html/template"
	"time"

	"github.com/hitoshi/springboard/internal/calendar"
	"github.com/hitoshi/springboard/internal/editor"
	"github.com/hitoshi/springboard/internal/model"
)

// avatarResponse はアバター1件分の表示情報。
// AvatarURLが空の場合は頭文字で表示する。
type avatarResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Initial     string `json:"initial"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsViewer    bool   `json:"is_viewer"`
}

// dayCellResponse はカレンダーの1日分のセル。
type dayCellResponse struct {
	Date       string           `json:"date"`
	Day        int              `json:"day"`
	IsToday    bool             `json:"is_today"`
	IsFuture   bool             `json:"is_future"`
	HasSnippet bool             `json:"has_snippet"`
	Authors    []avatarResponse `json:"authors"`
	Overflow   int              `json:"overflow"`
}

// calendarResponse は月表示カレンダーのAPIレスポンス。
type calendarResponse struct {
	Month         string            `json:"month"`
	Year          int               `json:"year"`
	MonthNumber   int               `json:"month_number"`
	Prev          string            `json:"prev"`
	Next          string            `json:"next,omitempty"`
	Today         string            `json:"today"`
	LeadingBlanks int               `json:"leading_blanks"`
	AvatarsReady  bool              `json:"avatars_ready"`
	Days          []dayCellResponse `json:"days"`
	Years         []int             `json:"years"`
	Notice        string            `json:"notice,omitempty"`
}

// avatarURL はプロフィール画像の配信URLを返す。画像がない場合は空文字を返す。
func avatarURL(p model.Profile) string {
	if p.PhotoURL == "" || p.UserID == "" {
		return ""
	}
	return "/api/users/" + p.UserID + "/avatar"
}

func toAvatarResponse(p model.Profile, isViewer bool) avatarResponse {
	return avatarResponse{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: p.Label(),
		Initial:     p.Initial(),
		AvatarURL:   avatarURL(p),
		IsViewer:    isViewer,
	}
}

// toCalendarResponse はカレンダーをAPIレスポンスに変換する。
// 翌月が今月より先になる場合はNextを空にする。
func toCalendarResponse(g calendar.Grid, nav Navigator) calendarResponse {
	resp := calendarResponse{
		Month:         g.Month.String(),
		Year:          g.Month.Year,
		MonthNumber:   int(g.Month.Month),
		Prev:          nav.Prev(g.Month).String(),
		Today:         nav.Today().String(),
		LeadingBlanks: g.LeadingBlanks,
		AvatarsReady:  g.AvatarsReady,
		Days:          make([]dayCellResponse, len(g.Days)),
		Years:         nav.Years(),
	}
	if next, err := nav.Next(g.Month); err == nil {
		resp.Next = next.String()
	}

	for i, d := range g.Days {
		cell := dayCellResponse{
			Date:       d.Day.String(),
			Day:        d.DayOfMonth,
			IsToday:    d.IsToday,
			IsFuture:   d.IsFuture,
			HasSnippet: d.HasSnippet,
			Authors:    make([]avatarResponse, len(d.Authors)),
			Overflow:   d.Overflow,
		}
		for j, a := range d.Authors {
			cell.Authors[j] = toAvatarResponse(a.Profile, a.IsViewer)
		}
		resp.Days[i] = cell
	}
	return resp
}

// snippetEntryResponse は同じ日のスニペット1件分。
type snippetEntryResponse struct {
	ID         string         `json:"id"`
	Author     avatarResponse `json:"author"`
	Body       string         `json:"snippet"`
	HTML       template.HTML  `json:"html"`
	IsMine     bool           `json:"is_mine"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
}

// snippetViewResponse は1日分の編集画面のAPIレスポンス。
type snippetViewResponse struct {
	Date          string                 `json:"date"`
	Mode          string                 `json:"mode"`
	SnippetExists bool                   `json:"snippet_exists"`
	CanEdit       bool                   `json:"can_edit"`
	IsToday       bool                   `json:"is_today"`
	AvatarsReady  bool                   `json:"avatars_ready"`
	Body          string                 `json:"snippet"`
	Entries       []snippetEntryResponse `json:"entries"`
	Notice        string                 `json:"notice,omitempty"`
}

// toSnippetViewResponse は編集画面の状態をAPIレスポンスに変換する。
func toSnippetViewResponse(v editor.View, render func(string) template.HTML) snippetViewResponse {
	resp := snippetViewResponse{
		Date:          v.Day.String(),
		Mode:          v.Mode.String(),
		SnippetExists: v.SnippetExists,
		CanEdit:       v.CanEdit,
		IsToday:       v.IsToday,
		AvatarsReady:  v.AvatarsReady,
		Body:          v.Body(),
		Entries:       make([]snippetEntryResponse, len(v.Entries)),
	}
	for i, e := range v.Entries {
		entry := snippetEntryResponse{
			ID:         e.Snippet.ID,
			Author:     toAvatarResponse(e.Profile, e.IsMine),
			Body:       e.Snippet.Body,
			IsMine:     e.IsMine,
			CreatedAt:  e.Snippet.CreatedAt,
			ModifiedAt: e.Snippet.ModifiedAt,
		}
		if render != nil {
			entry.HTML = render(e.Snippet.Body)
		}
		resp.Entries[i] = entry
	}
	if !v.SnippetExists && len(v.Entries) == 0 {
		if v.IsToday {
			resp.Notice = model.NoticeNoSnippetToday
		} else {
			resp.Notice = model.NoticeNoSnippetForDate
		}
	}
	return resp
}
