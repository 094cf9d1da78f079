package model

import "testing"

func TestNormalizeReportedStatus(t *testing.T) {
	cases := []struct {
		in     string
		want   SubmissionStatus
		wantOK bool
	}{
		{"COMPLETED", StatusCompleted, true},
		{"completed", StatusCompleted, true},
		{"SUCCESS", StatusCompleted, true},
		{"SUCCESSED", StatusCompleted, true},
		{"successed", StatusCompleted, true},
		{"FAILED", StatusFailed, true},
		{"timeout", StatusTimeout, true},
		{" TIMEOUT ", StatusTimeout, true},
		{"FINALIZED", "", false},
		{"QUEUED", "", false},
		{"ACCEPTED", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeReportedStatus(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("NormalizeReportedStatus(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestSubmissionStatusIsValid(t *testing.T) {
	for _, s := range []SubmissionStatus{StatusQueued, StatusCompleted, StatusFailed, StatusTimeout, StatusFinalized} {
		if !s.IsValid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if SubmissionStatus("ACCEPTED").IsValid() {
		t.Error("expected ACCEPTED to be invalid")
	}
}
