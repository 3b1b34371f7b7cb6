package calendar

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// MaxAvatars は1日のセルに表示するアバターの上限。
const MaxAvatars = 4

// Author は日付セルに表示するスニペットの書き手。
type Author struct {
	Profile    model.Profile
	ModifiedAt time.Time
	IsViewer   bool
}

// DayCell はカレンダーの1日分のセル。
type DayCell struct {
	Day        model.Day
	DayOfMonth int
	IsToday    bool
	IsFuture   bool
	HasSnippet bool
	// Authors は表示するアバター（最大MaxAvatars件）。
	Authors []Author
	// Overflow は表示しきれなかった書き手の人数。
	Overflow int
}

// Grid は1か月分のカレンダー。
type Grid struct {
	Month Month
	// LeadingBlanks は初日の前に置く空白セルの数（日曜日始まり）。
	LeadingBlanks int
	Days          []DayCell
	// AvatarsReady はスニペットとプロフィールの両方が揃いアバターを表示できるかを表す。
	AvatarsReady bool
}

// BuildGrid は月のカレンダーの枠を作る。
func BuildGrid(m Month, today model.Day) Grid {
	g := Grid{
		Month:         m,
		LeadingBlanks: int(m.start().Weekday()),
		Days:          make([]DayCell, m.DaysIn()),
	}
	for i := range g.Days {
		d := m.First().AddDays(i)
		g.Days[i] = DayCell{
			Day:        d,
			DayOfMonth: i + 1,
			IsToday:    d == today,
			IsFuture:   d.After(today),
		}
	}
	return g
}

// Aggregate はスニペットを日付ごとにまとめる。
// 同じ書き手のエントリは最新の更新日時のものを残し、閲覧者を先頭に、
// 残りを更新日時の昇順に並べる。
func Aggregate(snippets []*model.Snippet, viewerID string) map[model.Day][]Author {
	type key struct {
		day   model.Day
		email string
	}
	latest := make(map[key]Author)
	for _, sn := range snippets {
		k := key{day: sn.Date, email: strings.ToLower(sn.UserEmail)}
		if cur, ok := latest[k]; ok && !sn.ModifiedAt.After(cur.ModifiedAt) {
			continue
		}
		latest[k] = Author{
			Profile:    model.Profile{UserID: sn.UserID, Email: sn.UserEmail},
			ModifiedAt: sn.ModifiedAt,
			IsViewer:   sn.UserID == viewerID,
		}
	}

	byDay := make(map[model.Day][]Author)
	for k, a := range latest {
		byDay[k.day] = append(byDay[k.day], a)
	}
	for day, authors := range byDay {
		sort.Slice(authors, func(i, j int) bool {
			if authors[i].IsViewer != authors[j].IsViewer {
				return authors[i].IsViewer
			}
			if !authors[i].ModifiedAt.Equal(authors[j].ModifiedAt) {
				return authors[i].ModifiedAt.Before(authors[j].ModifiedAt)
			}
			return authors[i].Profile.Email < authors[j].Profile.Email
		})
		byDay[day] = authors
	}
	return byDay
}

// Emails は集計結果に含まれる書き手のメールアドレスを重複なく返す。
func Emails(byDay map[model.Day][]Author) []string {
	seen := make(map[string]bool)
	var emails []string
	for _, authors := range byDay {
		for _, a := range authors {
			key := strings.ToLower(a.Profile.Email)
			if !seen[key] {
				seen[key] = true
				emails = append(emails, a.Profile.Email)
			}
		}
	}
	sort.Strings(emails)
	return emails
}

// Annotate は集計結果をカレンダーに反映する。
// profilesがnilの場合は投稿の有無のみを反映し、アバターは表示しない。
func (g *Grid) Annotate(byDay map[model.Day][]Author, profiles func(email string) model.Profile) {
	g.AvatarsReady = profiles != nil
	for i := range g.Days {
		authors := byDay[g.Days[i].Day]
		g.Days[i].HasSnippet = len(authors) > 0
		if !g.AvatarsReady || len(authors) == 0 {
			continue
		}

		visible := authors
		if len(visible) > MaxAvatars {
			g.Days[i].Overflow = len(visible) - MaxAvatars
			visible = visible[:MaxAvatars]
		}
		cells := make([]Author, len(visible))
		for j, a := range visible {
			p := profiles(a.Profile.Email)
			if p.UserID == "" {
				p.UserID = a.Profile.UserID
			}
			cells[j] = Author{Profile: p, ModifiedAt: a.ModifiedAt, IsViewer: a.IsViewer}
		}
		g.Days[i].Authors = cells
	}
}

// Weeks はLeadingBlanksを含めて7日ごとに区切ったセルを返す。空白はnil。
func (g Grid) Weeks() [][]*DayCell {
	cells := make([]*DayCell, 0, g.LeadingBlanks+len(g.Days))
	for i := 0; i < g.LeadingBlanks; i++ {
		cells = append(cells, nil)
	}
	for i := range g.Days {
		cells = append(cells, &g.Days[i])
	}
	for len(cells)%7 != 0 {
		cells = append(cells, nil)
	}

	weeks := make([][]*DayCell, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	return weeks
}
