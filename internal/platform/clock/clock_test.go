package clock

import (
	"testing"
	"time"
)

func TestTruncatedDropsSubPrecision(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 123456789, time.UTC)
	got := Truncated{Clock: Fixed(at), Precision: time.Microsecond}.Now()
	if got.Nanosecond() != 123456000 {
		t.Fatalf("expected microsecond precision, got %d ns", got.Nanosecond())
	}
}
