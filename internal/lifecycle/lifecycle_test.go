package lifecycle

import (
	"errors"
	"testing"

	"minuteride/internal/domain"
)

func TestCanTransition(t *testing.T) {
	if !CanTransition(domain.JobStatusNew, domain.JobStatusAssigned) {
		t.Fatal("expected new -> assigned to be allowed")
	}
	if !CanTransition(domain.JobStatusAssigned, domain.JobStatusEnroutePickup) {
		t.Fatal("expected assigned -> enroute_pickup to be allowed")
	}
	if !CanTransition(domain.JobStatusEnroutePickup, domain.JobStatusInProgress) {
		t.Fatal("expected enroute_pickup -> in_progress to be allowed")
	}
	if !CanTransition(domain.JobStatusInProgress, domain.JobStatusCompleted) {
		t.Fatal("expected in_progress -> completed to be allowed")
	}
	if CanTransition(domain.JobStatusNew, domain.JobStatusCompleted) {
		t.Fatal("unexpected transition allowed")
	}
	if CanTransition(domain.JobStatusCompleted, domain.JobStatusNew) {
		t.Fatal("terminal state must not transition")
	}
}

func TestCanceledReachableFromEveryNonTerminalState(t *testing.T) {
	for _, s := range domain.AllJobStatuses {
		if IsTerminal(s) {
			if CanTransition(s, domain.JobStatusCanceled) && s != domain.JobStatusCanceled {
				t.Fatalf("terminal %s must not move to canceled", s)
			}
			continue
		}
		if !CanTransition(s, domain.JobStatusCanceled) {
			t.Fatalf("expected %s -> canceled to be allowed", s)
		}
	}
}

func TestParse(t *testing.T) {
	for _, s := range domain.AllJobStatuses {
		got, err := Parse(string(s))
		if err != nil || got != s {
			t.Fatalf("Parse(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := Parse("IN_TRIP"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestCheckStart(t *testing.T) {
	tests := []struct {
		name    string
		job     domain.Job
		driver  string
		wantErr error
	}{
		{"assigned to caller", domain.Job{Status: domain.JobStatusAssigned, AssignedDriverID: "d1"}, "d1", nil},
		{"assigned to someone else", domain.Job{Status: domain.JobStatusAssigned, AssignedDriverID: "d2"}, "d1", ErrDriverNotAssigned},
		{"still new", domain.Job{Status: domain.JobStatusNew}, "d1", ErrJobNotAssigned},
		{"already running", domain.Job{Status: domain.JobStatusInProgress, AssignedDriverID: "d1"}, "d1", ErrJobNotAssigned},
		{"enroute pickup", domain.Job{Status: domain.JobStatusEnroutePickup, AssignedDriverID: "d1"}, "d1", ErrJobNotAssigned},
		{"canceled", domain.Job{Status: domain.JobStatusCanceled, AssignedDriverID: "d1"}, "d1", ErrJobNotAssigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStart(&tt.job, tt.driver)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckComplete(t *testing.T) {
	job := domain.Job{Status: domain.JobStatusInProgress, AssignedDriverID: "d1"}
	if err := CheckComplete(&job, "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckComplete(&job, "d2"); !errors.Is(err, ErrDriverNotAssigned) {
		t.Fatalf("expected ErrDriverNotAssigned, got %v", err)
	}
	job.Status = domain.JobStatusCanceled
	if err := CheckComplete(&job, "d1"); !errors.Is(err, ErrJobNotInProgress) {
		t.Fatalf("expected ErrJobNotInProgress, got %v", err)
	}
}

func TestClaimable(t *testing.T) {
	if !Claimable(&domain.Job{Status: domain.JobStatusNew}) {
		t.Fatal("new unassigned job should be claimable")
	}
	if Claimable(&domain.Job{Status: domain.JobStatusAssigned, AssignedDriverID: "d1"}) {
		t.Fatal("assigned job should not be claimable")
	}
	if Claimable(&domain.Job{Status: domain.JobStatusCanceled}) {
		t.Fatal("canceled job should not be claimable")
	}
}
