package calendar

import (
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// YearOptions は年の選択肢として表示する年数。
const YearOptions = 10

// Navigator は月の移動と日付選択の可否を判定する。
// 「今日」は基準タイムゾーンの現在時刻から判定のたびに求める。
type Navigator struct {
	now func() time.Time
	loc *time.Location
}

// NewNavigator はNavigatorを生成する。locがnilの場合はUTCを使用する。
func NewNavigator(loc *time.Location) *Navigator {
	if loc == nil {
		loc = time.UTC
	}
	return &Navigator{now: time.Now, loc: loc}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (n *Navigator) SetClock(now func() time.Time) {
	n.now = now
}

// Today は今日の日付を返す。
func (n *Navigator) Today() model.Day {
	return model.DayOf(n.now().In(n.loc))
}

// Current は今日を含む月を返す。
func (n *Navigator) Current() Month {
	return MonthOf(n.Today())
}

// Prev は前月を返す。過去方向への移動は制限しない。
func (n *Navigator) Prev(m Month) Month {
	return m.Prev()
}

// Next は翌月を返す。今月より先には移動できない。
func (n *Navigator) Next(m Month) (Month, error) {
	next := m.Next()
	if next.After(n.Current()) {
		return m, model.NewFutureMonthError()
	}
	return next, nil
}

// SelectYear は年を変更する。
// 来年以降は選択できない。今年を選んで月が未来になる場合は今月に戻す。
func (n *Navigator) SelectYear(m Month, year int) (Month, error) {
	current := n.Current()
	if year > current.Year {
		return m, model.NewFutureMonthError()
	}
	selected := Month{Year: year, Month: m.Month}
	if selected.After(current) {
		return current, nil
	}
	return selected, nil
}

// SelectMonth は月を変更する。今年の未来の月は選択できない。
func (n *Navigator) SelectMonth(m Month, month time.Month) (Month, error) {
	if month < time.January || month > time.December {
		return m, model.NewInvalidMonthError(month.String())
	}
	selected := Month{Year: m.Year, Month: month}
	if selected.After(n.Current()) {
		return m, model.NewFutureMonthError()
	}
	return selected, nil
}

// Years は年の選択肢（今年から過去に遡る）を返す。
func (n *Navigator) Years() []int {
	current := n.Current().Year
	years := make([]int, YearOptions)
	for i := range years {
		years[i] = current - i
	}
	return years
}

// ClickDay は日付セルの選択を判定し、エディターのパスを返す。
// 未来の日付は選択できない。
func (n *Navigator) ClickDay(day model.Day) (string, error) {
	if day.After(n.Today()) {
		return "", model.NewFutureDayError()
	}
	return "/snippet/" + day.String(), nil
}
