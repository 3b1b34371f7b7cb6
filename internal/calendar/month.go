// Package calendar は月表示カレンダーの構築とナビゲーションを提供する。
package calendar

import (
	"fmt"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// MonthLayout は月のISO形式（yyyy-MM）。
const MonthLayout = "2006-01"

// Month は表示対象の年月。
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf は日付が属する月を返す。
func MonthOf(day model.Day) Month {
	t := day.Time()
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth は yyyy-MM 形式の文字列をMonthに変換する。
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, model.NewInvalidMonthError(s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// String は yyyy-MM 形式の文字列を返す。
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// First は月の初日を返す。
func (m Month) First() model.Day {
	return model.DayOf(m.start())
}

// Last は月の末日を返す。
func (m Month) Last() model.Day {
	return model.DayOf(m.start().AddDate(0, 1, -1))
}

// DaysIn は月の日数を返す。
func (m Month) DaysIn() int {
	return m.start().AddDate(0, 1, -1).Day()
}

// Prev は前月を返す。
func (m Month) Prev() Month {
	t := m.start().AddDate(0, -1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next は翌月を返す。
func (m Month) Next() Month {
	t := m.start().AddDate(0, 1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// After はmがoより後の月かを返す。
func (m Month) After(o Month) bool {
	if m.Year != o.Year {
		return m.Year > o.Year
	}
	return m.Month > o.Month
}
