package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{"", StatusPending},
		{StatusPending, StatusRunning},
		{StatusRunning, StatusDone},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusCanceled},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
	}{
		{StatusPending, StatusDone},
		{StatusPending, StatusCanceled},
		{StatusDone, StatusRunning},
		{StatusFailed, StatusPending},
		{StatusCanceled, StatusDone},
		{StatusDone, StatusDone},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionJobStatus_BlocksIllegalTransition(t *testing.T) {
	job := Job{
		ID:     "job-1",
		URL:    "https://example.com/v1",
		Status: StatusPending,
	}

	if err := TransitionJobStatus(&job, StatusDone, ""); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if job.Status != StatusPending {
		t.Fatalf("status changed on rejected transition: %q", job.Status)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusDone, StatusFailed, StatusCanceled} {
		if !s.IsTerminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusRunning} {
		if s.IsTerminal() {
			t.Fatalf("expected %q not to be terminal", s)
		}
	}
}
