package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-10-10", " 2024-10-10 ", "2024-10-10 00:00:00", "2024-10-10T15:30:00Z"} {
		got, err := ParseDate(s)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v", s, got)
		}
	}
	if _, err := ParseDate("10/10/2024"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDayKeepsCalendarDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 20:00 in New York is already the next day in UTC
	got := Day(time.Date(2024, 3, 4, 20, 0, 0, 0, ny))
	if FormatDate(got) != "2024-03-04" || got.Location() != time.UTC {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected split %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("expected nil")
	}
}
