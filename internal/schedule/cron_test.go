package schedule

import (
	"testing"
	"time"
)

func TestParseAcceptsCommonForms(t *testing.T) {
	cases := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 2 * * *",
		"0,15,30,45 9-17 * * 1-5",
		"0 8-18/2 * * *",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", expr, err)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		"61 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"* * * *",
		"bad * * * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"1,,2 * * * *",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error, got nil", expr)
		}
	}
}

func TestSpecMatches(t *testing.T) {
	spec, err := Parse("15 2 * * 1-5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// 2026-02-20 is a Friday.
	match := time.Date(2026, 2, 20, 2, 15, 0, 0, time.UTC)
	noMatchMinute := time.Date(2026, 2, 20, 2, 16, 0, 0, time.UTC)
	noMatchDow := time.Date(2026, 2, 21, 2, 15, 0, 0, time.UTC)

	if !spec.Matches(match) {
		t.Fatalf("expected match at %s", match)
	}
	if spec.Matches(noMatchMinute) {
		t.Fatalf("expected no match at %s", noMatchMinute)
	}
	if spec.Matches(noMatchDow) {
		t.Fatalf("expected no match at %s", noMatchDow)
	}
}

func TestSpecNext(t *testing.T) {
	spec, err := Parse("30 3 * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	from := time.Date(2026, 3, 1, 3, 30, 20, 0, time.UTC)
	want := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	if got := spec.Next(from); !got.Equal(want) {
		t.Fatalf("Next(%s) = %s, want %s", from, got, want)
	}

	never, err := Parse("0 0 31 2 *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := never.Next(from); !got.IsZero() {
		t.Fatalf("expected zero time for impossible date, got %s", got)
	}
}
