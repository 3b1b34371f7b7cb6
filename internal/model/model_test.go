package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseDay_Valid(t *testing.T) {
	d, err := ParseDay("2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != Day("2025-06-01") {
		t.Errorf("ParseDay() = %q, want %q", d, "2025-06-01")
	}
}

func TestParseDay_Invalid(t *testing.T) {
	for _, in := range []string{"", "2025-6-1", "2025/06/01", "2025-02-30", "abc"} {
		_, err := ParseDay(in)
		if err == nil {
			t.Errorf("ParseDay(%q) expected error", in)
			continue
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeInvalidDate {
			t.Errorf("ParseDay(%q) error = %v, want INVALID_DATE", in, err)
		}
	}
}

func TestDay_AddDaysAcrossMonth(t *testing.T) {
	if got := Day("2025-03-01").AddDays(-1); got != "2025-02-28" {
		t.Errorf("AddDays(-1) = %q, want 2025-02-28", got)
	}
	if got := Day("2024-12-31").AddDays(1); got != "2025-01-01" {
		t.Errorf("AddDays(1) = %q, want 2025-01-01", got)
	}
}

func TestDay_Compare(t *testing.T) {
	a, b := Day("2025-05-31"), Day("2025-06-01")
	if !a.Before(b) || b.Before(a) {
		t.Error("2025-05-31 should be before 2025-06-01")
	}
	if !b.After(a) {
		t.Error("2025-06-01 should be after 2025-05-31")
	}
}

func TestDayOf_UsesTimeLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	// UTCでは前日の15:30だがKSTでは翌日の0:30
	ts := time.Date(2025, 6, 1, 0, 30, 0, 0, loc)
	if got := DayOf(ts); got != "2025-06-01" {
		t.Errorf("DayOf() = %q, want 2025-06-01", got)
	}
	if got := DayOf(ts.UTC()); got != "2025-05-31" {
		t.Errorf("DayOf(UTC) = %q, want 2025-05-31", got)
	}
}

func TestSnippetID(t *testing.T) {
	if got := SnippetID("user-1", "2025-06-01"); got != "user-1_2025-06-01" {
		t.Errorf("SnippetID() = %q", got)
	}
}

func TestProfile_LabelAndInitial(t *testing.T) {
	tests := []struct {
		name        string
		profile     Profile
		wantLabel   string
		wantInitial string
	}{
		{"表示名あり", Profile{Email: "a@x.com", DisplayName: "alice"}, "alice", "A"},
		{"メールのみ", Profile{Email: "bob@x.com"}, "bob@x.com", "B"},
		{"空", Profile{}, "", "?"},
		{"マルチバイト", Profile{DisplayName: "김철수"}, "김철수", "김"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Label(); got != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", got, tt.wantLabel)
			}
			if got := tt.profile.Initial(); got != tt.wantInitial {
				t.Errorf("Initial() = %q, want %q", got, tt.wantInitial)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewFutureMonthError()
	if err.Error() != "[FUTURE_MONTH] "+NoticeFutureMonth {
		t.Errorf("Error() = %q", err.Error())
	}
}
