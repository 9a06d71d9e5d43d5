package phase

import (
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 5, 4, h, m, s, 0, time.UTC)
}

func TestCompute_Boundaries(t *testing.T) {
	start, end := at(15, 0, 0), at(15, 30, 0)
	cases := []struct {
		name      string
		now       time.Time
		phase     domain.Phase
		remaining time.Duration
	}{
		{"one minute before open", at(14, 54, 0), domain.PhaseWait, time.Minute},
		{"long before", at(9, 0, 0), domain.PhaseWait, 5*time.Hour + 55*time.Minute},
		{"open boundary", at(14, 55, 0), domain.PhaseOpen, 0},
		{"scheduled start", at(15, 0, 0), domain.PhaseOpen, 0},
		{"scheduled end", at(15, 30, 0), domain.PhaseOpen, 0},
		{"grace boundary", at(15, 40, 0), domain.PhaseOpen, 0},
		{"after grace", at(15, 40, 1), domain.PhaseClosed, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p, rem := Compute(tc.now, start, end)
			if p != tc.phase {
				t.Errorf("phase = %q, want %q", p, tc.phase)
			}
			if rem != tc.remaining {
				t.Errorf("remaining = %v, want %v", rem, tc.remaining)
			}
		})
	}
}

func TestCompute_ExactlyOnePhase(t *testing.T) {
	start, end := at(15, 0, 0), at(15, 30, 0)
	for now := at(14, 50, 0); now.Before(at(15, 45, 0)); now = now.Add(7 * time.Second) {
		p, rem := Compute(now, start, end)
		switch p {
		case domain.PhaseWait:
			if rem <= 0 {
				t.Fatalf("WAIT at %v with non-positive remaining %v", now, rem)
			}
		case domain.PhaseOpen, domain.PhaseClosed:
			if rem != 0 {
				t.Fatalf("%s at %v with remaining %v", p, now, rem)
			}
		default:
			t.Fatalf("unexpected phase %q", p)
		}
	}
}

func TestCountdown(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                "00:00",
		-time.Second:                     "00:00",
		time.Minute:                      "01:00",
		59*time.Second + time.Millisecond: "01:00",
		61 * time.Second:                 "01:01",
		99*time.Minute + 59*time.Second:  "99:59",
	}
	for d, want := range cases {
		if got := Countdown(d); got != want {
			t.Errorf("Countdown(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestSeconds(t *testing.T) {
	cases := map[time.Duration]int{
		-time.Second:             0,
		0:                        0,
		time.Millisecond:         1,
		59500 * time.Millisecond: 60,
		time.Minute:              60,
	}
	for d, want := range cases {
		if got := Seconds(d); got != want {
			t.Errorf("Seconds(%v) = %d, want %d", d, got, want)
		}
	}
}
