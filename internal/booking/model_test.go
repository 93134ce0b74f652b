package booking

import (
	"testing"
	"time"
)

func TestTimeWindowValid(t *testing.T) {
	for _, w := range []TimeWindow{WindowMorning, WindowAfternoon, WindowEvening} {
		if !w.Valid() {
			t.Errorf("%s should be valid", w)
		}
	}
	for _, w := range []TimeWindow{"", "NIGHT", "morning", "NOON"} {
		if w.Valid() {
			t.Errorf("%q should be invalid", w)
		}
	}
}

func TestVisitStart(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		window TimeWindow
		hour   int
	}{
		{WindowMorning, 9},
		{WindowAfternoon, 14},
		{WindowEvening, 19},
	}

	for _, tc := range cases {
		start := VisitStart(date, tc.window)
		if start.Hour() != tc.hour {
			t.Errorf("%s start hour = %d, want %d", tc.window, start.Hour(), tc.hour)
		}
		if start.Year() != 2026 || start.Month() != 3 || start.Day() != 14 {
			t.Errorf("%s start date drifted: %v", tc.window, start)
		}
	}
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2026, 3, 14, 17, 45, 12, 999, time.UTC)
	day := DateOnly(ts)
	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 || day.Nanosecond() != 0 {
		t.Errorf("DateOnly left time components: %v", day)
	}
	if day.Day() != 14 {
		t.Errorf("day = %d, want 14", day.Day())
	}
	if day.Location() != time.UTC {
		t.Errorf("location changed: %v", day.Location())
	}
}
