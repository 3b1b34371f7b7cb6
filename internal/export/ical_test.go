package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hitoshi/springboard/internal/model"
)

type mockSnippetLister struct {
	listByUserFn func(ctx context.Context, userID string) ([]*model.Snippet, error)
}

func (m *mockSnippetLister) ListByUser(ctx context.Context, userID string) ([]*model.Snippet, error) {
	return m.listByUserFn(ctx, userID)
}

func TestExporter_Write(t *testing.T) {
	created := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	lister := &mockSnippetLister{listByUserFn: func(_ context.Context, userID string) ([]*model.Snippet, error) {
		if userID != "u1" {
			t.Errorf("userID = %q", userID)
		}
		return []*model.Snippet{{
			ID: "u1_2025-06-01", UserID: "u1", TeamName: "Alpha", Date: "2025-06-01",
			Body: "# hello\n- item", CreatedAt: created, ModifiedAt: created.Add(time.Hour),
		}}, nil
	}}
	e := NewExporter(lister)
	e.SetClock(func() time.Time { return time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) })

	var buf bytes.Buffer
	if err := e.Write(context.Background(), &buf, "u1", "a@x.com"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}

	ev := events[0]
	if uid := ev.Props.Get(ical.PropUID); uid == nil || uid.Value != "u1_2025-06-01@springboard" {
		t.Errorf("UID = %v", uid)
	}
	if s := ev.Props.Get(ical.PropSummary); s == nil || s.Value != "hello" {
		t.Errorf("SUMMARY = %v", s)
	}
	if d := ev.Props.Get(ical.PropDescription); d == nil {
		t.Error("DESCRIPTION is missing")
	} else if text, err := d.Text(); err != nil || text != "# hello\n- item" {
		t.Errorf("DESCRIPTION = %q, %v", text, err)
	}
	start := ev.Props.Get(ical.PropDateTimeStart)
	if start == nil || start.Value != "20250601" || start.ValueType() != ical.ValueDate {
		t.Errorf("DTSTART = %v", start)
	}
	if end := ev.Props.Get(ical.PropDateTimeEnd); end == nil || end.Value != "20250602" {
		t.Errorf("DTEND = %v", end)
	}
}

func TestExporter_Write_Error(t *testing.T) {
	e := NewExporter(&mockSnippetLister{listByUserFn: func(context.Context, string) ([]*model.Snippet, error) {
		return nil, errors.New("db down")
	}})
	var buf bytes.Buffer
	if err := e.Write(context.Background(), &buf, "u1", ""); err == nil {
		t.Error("expected error")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}

func TestBuildCalendar_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(BuildCalendar(nil, "", time.Now())); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "PRODID:"+ProductID) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"# 今日の目標", "今日の目標"},
		{"\n\n- 箇条書き", "箇条書き"},
		{"> 引用", "引用"},
		{"", "Snippet"},
		{strings.Repeat("あ", 90), strings.Repeat("あ", 80) + "…"},
	}
	for _, tt := range tests {
		if got := Summary(tt.body); got != tt.want {
			t.Errorf("Summary(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
