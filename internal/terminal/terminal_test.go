package terminal

import (
	"os"
	"runtime"
	"testing"
)

func TestColorDisabled_EnvOverride(t *testing.T) {
	t.Setenv("MAGPIES_NO_COLOR", "1")
	if !ColorDisabled() {
		t.Error("expected ColorDisabled true when MAGPIES_NO_COLOR=1")
	}

	t.Setenv("MAGPIES_NO_COLOR", "")
	t.Setenv("NO_COLOR", "1")
	if !ColorDisabled() {
		t.Error("expected ColorDisabled true when NO_COLOR=1")
	}
}

func TestColorDisabled_NonWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on Windows")
	}
	t.Setenv("MAGPIES_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")
	if ColorDisabled() {
		t.Error("expected ColorDisabled false on non-Windows when no env override")
	}
}

func TestSizeFallsBackForNonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Fatal("temp file reported as terminal")
	}
	w, h := Size(f, 80, 24)
	if w != 80 || h != 24 {
		t.Fatalf("expected fallback 80x24, got %dx%d", w, h)
	}
}

func TestVisibleIntervals(t *testing.T) {
	cases := []struct{ width, per, reserved, want int }{
		{120, 2, 20, 50},
		{10, 2, 20, 1},
		{30, 0, 0, 30},
	}
	for _, tc := range cases {
		if got := VisibleIntervals(tc.width, tc.per, tc.reserved); got != tc.want {
			t.Fatalf("VisibleIntervals(%d,%d,%d)=%d want %d", tc.width, tc.per, tc.reserved, got, tc.want)
		}
	}
}
