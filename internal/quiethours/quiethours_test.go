package quiethours

import (
	"testing"
	"time"
)

func TestIsQuiet_WrappingWindow(t *testing.T) {
	t.Parallel()

	// 21..8 spans midnight: 21,22,23,0..7 quiet, 8..20 not.
	quiet := map[int]bool{}
	for _, h := range []int{21, 22, 23, 0, 1, 2, 3, 4, 5, 6, 7} {
		quiet[h] = true
	}

	for h := 0; h < 24; h++ {
		got := IsQuiet(h, 21, 8)
		if got != quiet[h] {
			t.Errorf("IsQuiet(%d, 21, 8) = %v, want %v", h, got, quiet[h])
		}
	}
}

func TestIsQuiet_NonWrappingWindow(t *testing.T) {
	t.Parallel()

	// 8..21 does not wrap: 8..20 quiet.
	for h := 0; h < 24; h++ {
		want := h >= 8 && h < 21
		got := IsQuiet(h, 8, 21)
		if got != want {
			t.Errorf("IsQuiet(%d, 8, 21) = %v, want %v", h, got, want)
		}
	}
}

func TestIsQuiet_EqualBoundsMeansNoWindow(t *testing.T) {
	t.Parallel()

	for h := 0; h < 24; h++ {
		if IsQuiet(h, 9, 9) {
			t.Errorf("IsQuiet(%d, 9, 9) = true, want false", h)
		}
	}
}

func TestLocalHour(t *testing.T) {
	t.Parallel()

	// 2026-03-02 01:30 UTC.
	epoch := time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC).Unix()

	cases := []struct {
		offset int
		want   int
	}{
		{0, 1},
		{2, 3},
		{-3, 22}, // previous local day
		{-1, 0},
		{5, 6},
	}
	for _, tc := range cases {
		if got := LocalHour(epoch, tc.offset); got != tc.want {
			t.Errorf("LocalHour(offset=%d) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

func TestNextAllowedEpoch_SameDay(t *testing.T) {
	t.Parallel()

	// 03:30 UTC, offset 0, quiet ends at 8: expect 08:00 the same day.
	now := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC).Unix()
	want := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC).Unix()

	if got := NextAllowedEpoch(now, 0, 8); got != want {
		t.Fatalf("NextAllowedEpoch = %d, want %d", got, want)
	}
}

func TestNextAllowedEpoch_RollsToNextDay(t *testing.T) {
	t.Parallel()

	// 22:15 UTC, offset 0, quiet ends at 8: expect 08:00 tomorrow.
	now := time.Date(2026, 3, 2, 22, 15, 0, 0, time.UTC).Unix()
	want := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC).Unix()

	if got := NextAllowedEpoch(now, 0, 8); got != want {
		t.Fatalf("NextAllowedEpoch = %d, want %d", got, want)
	}
}

func TestNextAllowedEpoch_RespectsOffset(t *testing.T) {
	t.Parallel()

	// 23:00 local (UTC+2) is 21:00 UTC; quiet ends at 8 local,
	// which is 06:00 UTC the next day.
	now := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC).Unix()
	want := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC).Unix()

	if got := NextAllowedEpoch(now, 2, 8); got != want {
		t.Fatalf("NextAllowedEpoch = %d, want %d", got, want)
	}
}

func TestNextAllowedEpoch_NegativeOffset(t *testing.T) {
	t.Parallel()

	// 01:00 UTC at UTC-5 is 20:00 local the previous day; quiet ends at
	// 8 local, which is 13:00 UTC.
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC).Unix()
	want := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC).Unix()

	if got := NextAllowedEpoch(now, -5, 8); got != want {
		t.Fatalf("NextAllowedEpoch = %d, want %d", got, want)
	}
}

func TestNextAllowedEpoch_AlreadyAtQuietEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 8, 20, 0, 0, time.UTC).Unix()
	if got := NextAllowedEpoch(now, 0, 8); got != now {
		t.Fatalf("NextAllowedEpoch = %d, want now (%d)", got, now)
	}
}

func TestNextAllowedEpoch_NeverBeforeNow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Unix()
	for hour := int64(0); hour < 24; hour++ {
		now := base + hour*3600 + 917
		for _, offset := range []int{-11, -5, 0, 3, 12} {
			got := NextAllowedEpoch(now, offset, 8)
			if got < now {
				t.Fatalf("NextAllowedEpoch(now=%d, offset=%d) = %d is before now", now, offset, got)
			}
			if LocalHour(got, offset) != 8 {
				t.Fatalf("NextAllowedEpoch(now=%d, offset=%d) = %d has local hour %d, want 8",
					now, offset, got, LocalHour(got, offset))
			}
		}
	}
}
