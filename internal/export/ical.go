// Package export はスニペットをiCalendar形式で書き出す。
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hitoshi/springboard/internal/model"
)

// ProductID はiCalendarのPRODIDに使う識別子。
const ProductID = "-//Daily Springboard//Snippets//JA"

// maxSummaryRunes は予定のタイトルに使う最大文字数。
const maxSummaryRunes = 80

// SnippetLister はユーザーの全スニペットを取得するインターフェース。
// snippet.Serviceの部分集合として定義する。
type SnippetLister interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Snippet, error)
}

// Exporter はユーザー自身のスニペットを終日の予定として書き出す。
type Exporter struct {
	snippets SnippetLister
	now      func() time.Time
}

// NewExporter はExporterを生成する。
func NewExporter(snippets SnippetLister) *Exporter {
	return &Exporter{snippets: snippets, now: time.Now}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// Write はユーザーのスニペットをiCalendarとしてwに書き出す。
func (e *Exporter) Write(ctx context.Context, w io.Writer, userID, calendarName string) error {
	list, err := e.snippets.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list snippets for export: %w", err)
	}

	cal := BuildCalendar(list, calendarName, e.now())
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// BuildCalendar はスニペットの一覧からカレンダーを組み立てる。
// 各スニペットは日付ごとの終日予定になり、UIDはスニペットIDから決まる。
func BuildCalendar(list []*model.Snippet, name string, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}

	for _, sn := range list {
		cal.Children = append(cal.Children, snippetEvent(sn, stamp).Component)
	}
	return cal
}

func snippetEvent(sn *model.Snippet, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, sn.ID+"@springboard")
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	start := sn.Date.Time()
	event.Props.SetDate(ical.PropDateTimeStart, start)
	event.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))

	event.Props.SetText(ical.PropSummary, Summary(sn.Body))
	event.Props.SetText(ical.PropDescription, sn.Body)
	if sn.TeamName != "" {
		event.Props.SetText(ical.PropCategories, sn.TeamName)
	}
	if !sn.CreatedAt.IsZero() {
		event.Props.SetDateTime(ical.PropCreated, sn.CreatedAt.UTC())
	}
	if !sn.ModifiedAt.IsZero() {
		event.Props.SetDateTime(ical.PropLastModified, sn.ModifiedAt.UTC())
	}
	return event
}

// Summary は本文の最初の空でない行から予定のタイトルを作る。
// 見出しや箇条書きの記号は取り除く。
func Summary(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#>*-+ ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > maxSummaryRunes {
			return string(r[:maxSummaryRunes]) + "…"
		}
		return line
	}
	return "Snippet"
}
