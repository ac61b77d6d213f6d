package cronexpr

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"five fields pass through", "30 9 * * *", "30 9 * * *"},
		{"zero seconds dropped", "0 30 9 * * *", "30 9 * * *"},
		{"zero seconds with step", "0 */5 * * * *", "*/5 * * * *"},
		{"non-zero seconds kept intact", "15 30 9 * * *", "15 30 9 * * *"},
		{"whitespace collapsed", "  30   9 * * *  ", "30 9 * * *"},
		{"five fields starting with zero untouched", "0 9 * * *", "0 9 * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	exprs := []string{
		"30 9 * * *",
		"0 30 9 * * *",
		"0 0 9 * * *",
		"15 30 9 * * *",
		"*/5 * * * *",
		"not a cron",
	}
	for _, e := range exprs {
		once := Normalize(e)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", e, once, twice)
		}
	}
}

func TestParse_RejectsNonReducibleSixField(t *testing.T) {
	// A non-zero seconds field cannot be reduced to five fields and must
	// fail explicitly rather than be truncated.
	_, err := Parse("15 30 9 * * *")
	if !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestParse_RejectsGarbage(t *testing.T) {
	for _, expr := range []string{"", "banana", "61 * * * *", "* * *"} {
		if _, err := Parse(expr); !errors.Is(err, ErrInvalidExpression) {
			t.Errorf("Parse(%q): expected ErrInvalidExpression, got %v", expr, err)
		}
	}
}

func TestIsDue_FiveMinuteStep(t *testing.T) {
	// Scenario: "0 */5 * * * *" at 12:05:00 UTC reduces to "*/5 * * * *"
	// and is due; next run is 12:10:00.
	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

	due, err := IsDue("0 */5 * * * *", at)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Error("expected due at 12:05")
	}

	next, err := NextRun("0 */5 * * * *", at)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextRun = %s, want %s", next, want)
	}
}

func TestIsDue_NotOnOffMinutes(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 7, 0, 0, time.UTC)
	due, err := IsDue("*/5 * * * *", at)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Error("12:07 must not match */5")
	}
}

func TestIsDue_IgnoresSeconds(t *testing.T) {
	// Due-ness is minute-granular: any instant inside the matching minute counts.
	at := time.Date(2025, 6, 1, 12, 5, 42, 0, time.UTC)
	due, err := IsDue("*/5 * * * *", at)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Error("12:05:42 should match */5")
	}
}

func TestIsDue_Deterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	first, err := IsDue("*/5 * * * *", at)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := IsDue("*/5 * * * *", at)
		if err != nil {
			t.Fatalf("IsDue: %v", err)
		}
		if again != first {
			t.Fatal("IsDue not deterministic for identical inputs")
		}
	}
}

func TestIsDue_EvaluatesInGivenZone(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	// 02:30 UTC is 09:30 in Jakarta (UTC+7).
	utcInstant := time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC)

	due, err := IsDue("30 9 * * *", utcInstant.In(jakarta))
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Error("expected 09:30 Jakarta to match '30 9 * * *'")
	}

	due, err = IsDue("30 9 * * *", utcInstant)
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Error("02:30 UTC must not match '30 9 * * *'")
	}
}

func TestNextRun_StrictlyAfter(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	next, err := NextRun("*/5 * * * *", at)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if !next.After(at) {
		t.Errorf("NextRun = %s, want strictly after %s", next, at)
	}
}
