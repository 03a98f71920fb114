package domain

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	all := []JobStatus{JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed}
	allowed := map[JobStatus][]JobStatus{
		JobStatusPending: {JobStatusRunning, JobStatusFailed},
		JobStatusRunning: {JobStatusRunning, JobStatusCompleted, JobStatusFailed},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
}

func TestJobTypeValid(t *testing.T) {
	if !JobTypeNormalizeArtwork.Valid() {
		t.Fatalf("normalize should be valid")
	}
	if JobType("image_generate").Valid() {
		t.Fatalf("unknown type should be invalid")
	}
}
