// Package editor は1日分のスニペット編集画面の振る舞いを提供する。
package editor

import (
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// DefaultCutoffHour は前日分を編集できる締め切り時刻（時）のデフォルト値。
const DefaultCutoffHour = 9

// Window は編集可能期間のポリシー。
// 今日の分は常に、前日分は基準タイムゾーンで締め切り時刻より前に限り編集できる。
// 判定は操作のたびに現在時刻で行い、結果をキャッシュしない。
type Window struct {
	loc        *time.Location
	cutoffHour int
	now        func() time.Time
}

// NewWindow はWindowを生成する。locがnilの場合はUTCを使う。
func NewWindow(loc *time.Location, cutoffHour int) *Window {
	if loc == nil {
		loc = time.UTC
	}
	return &Window{loc: loc, cutoffHour: cutoffHour, now: time.Now}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (w *Window) SetClock(now func() time.Time) {
	w.now = now
}

// Location は基準タイムゾーンを返す。
func (w *Window) Location() *time.Location {
	return w.loc
}

// Today は基準タイムゾーンでの今日の日付を返す。
func (w *Window) Today() model.Day {
	return model.DayOf(w.now().In(w.loc))
}

// Allows は指定日のスニペットを現在編集できるかを返す。
func (w *Window) Allows(day model.Day) bool {
	now := w.now().In(w.loc)
	today := model.DayOf(now)
	switch day {
	case today:
		return true
	case today.AddDays(-1):
		return now.Hour() < w.cutoffHour
	default:
		return false
	}
}

// Check は編集できない場合にEDIT_WINDOW_CLOSEDエラーを返す。
func (w *Window) Check(day model.Day) error {
	if !w.Allows(day) {
		return model.NewEditWindowClosedError(day)
	}
	return nil
}
