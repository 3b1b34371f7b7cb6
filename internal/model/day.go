package model

import "time"

// DayLayout は日付のISO形式（yyyy-MM-dd）。
const DayLayout = "2006-01-02"

// Day はカレンダー上の1日を表す。常に yyyy-MM-dd 形式で保持するため、
// 文字列の辞書順比較がそのまま日付の前後関係になる。
type Day string

// ParseDay は yyyy-MM-dd 形式の文字列を検証してDayに変換する。
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", NewInvalidDateError(s)
	}
	return Day(t.Format(DayLayout)), nil
}

// DayOf は時刻が属する日付を返す。タイムゾーンは時刻自身のものを使う。
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// Time は日付の0時（UTC）を返す。
func (d Day) Time() time.Time {
	t, _ := time.Parse(DayLayout, string(d))
	return t
}

// AddDays はn日後の日付を返す。
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Before はdがoより前の日付かを返す。
func (d Day) Before(o Day) bool { return d < o }

// After はdがoより後の日付かを返す。
func (d Day) After(o Day) bool { return d > o }

// String はyyyy-MM-dd形式の文字列を返す。
func (d Day) String() string { return string(d) }
