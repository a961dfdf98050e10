package naturaltime

import (
	"testing"
	"time"
)

func TestParseDeadlineResolvesRelativeText(t *testing.T) {
	ref := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	got, err := ParseDeadline("tomorrow at 9am", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDeadlineRejectsUnresolvableText(t *testing.T) {
	if _, err := ParseDeadline("asdfghjkl", time.Now()); err == nil {
		t.Fatal("expected an error for unresolvable text")
	}
}
