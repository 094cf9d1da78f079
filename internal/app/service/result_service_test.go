package service_test

import (
	"context"
	"errors"
	"testing"

	"codegrade/internal/app/service"
	"codegrade/internal/common"
	"codegrade/internal/domain/model"
)

func TestApplyResult_NotFound(t *testing.T) {
	svc := service.NewResultService(&stubSubmissionRepo{})
	_, err := svc.ApplyResult(context.Background(), "missing", model.ResultReport{Status: "COMPLETED"})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("ApplyResult error = %v, want ErrNotFound", err)
	}
}

func TestApplyResult_FinalizedDropsReportWithoutWrite(t *testing.T) {
	sub := queuedSubmission("s1", "u1")
	sub.Finalized = true
	sub.Status = model.StatusFinalized
	writeCalled := false
	repo := &stubSubmissionRepo{
		getByIDFn: func(context.Context, string) (*model.Submission, error) { return sub, nil },
		applyResultFn: func(context.Context, string, model.ResultUpdate) (bool, error) {
			writeCalled = true
			return true, nil
		},
	}
	svc := service.NewResultService(repo)

	status, err := svc.ApplyResult(context.Background(), "s1", model.ResultReport{Status: "COMPLETED", Score: 90})
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if status != model.StatusFinalized {
		t.Errorf("status = %s, want FINALIZED", status)
	}
	if writeCalled {
		t.Error("report against a finalized record must not write")
	}
}

func TestApplyResult_NormalizesLegacySuccessStatus(t *testing.T) {
	var applied model.ResultUpdate
	repo := &stubSubmissionRepo{
		getByIDFn: func(context.Context, string) (*model.Submission, error) {
			return queuedSubmission("s1", "u1"), nil
		},
		applyResultFn: func(_ context.Context, _ string, upd model.ResultUpdate) (bool, error) {
			applied = upd
			return true, nil
		},
	}
	svc := service.NewResultService(repo)

	status, err := svc.ApplyResult(context.Background(), "s1", model.ResultReport{
		Status:  "successed",
		Score:   87.5,
		Metrics: model.Metrics{TimeMs: 120, MemoryMB: 32},
	})
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if status != model.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", status)
	}
	if applied.Status != model.StatusCompleted || applied.Score != 87.5 {
		t.Errorf("applied update = %+v", applied)
	}
	if applied.FailTags == nil || applied.Feedback == nil {
		t.Error("nil report slices must be stored as empty, not null")
	}
}

func TestApplyResult_RejectsInvalidStatusWithoutWrite(t *testing.T) {
	writeCalled := false
	repo := &stubSubmissionRepo{
		getByIDFn: func(context.Context, string) (*model.Submission, error) {
			return queuedSubmission("s1", "u1"), nil
		},
		applyResultFn: func(context.Context, string, model.ResultUpdate) (bool, error) {
			writeCalled = true
			return true, nil
		},
	}
	svc := service.NewResultService(repo)

	for _, raw := range []string{"FINALIZED", "QUEUED", "ACCEPTED", ""} {
		_, err := svc.ApplyResult(context.Background(), "s1", model.ResultReport{Status: raw})
		if !errors.Is(err, common.ErrBadRequest) {
			t.Errorf("ApplyResult(status=%q) error = %v, want ErrBadRequest", raw, err)
		}
	}
	if writeCalled {
		t.Error("invalid status must never reach the record store")
	}
}

func TestApplyResult_GuardRaceReturnsCurrentStatus(t *testing.T) {
	calls := 0
	repo := &stubSubmissionRepo{
		getByIDFn: func(context.Context, string) (*model.Submission, error) {
			calls++
			sub := queuedSubmission("s1", "u1")
			if calls > 1 {
				sub.Finalized = true
				sub.Status = model.StatusFinalized
			}
			return sub, nil
		},
		applyResultFn: func(context.Context, string, model.ResultUpdate) (bool, error) {
			return false, nil
		},
	}
	svc := service.NewResultService(repo)

	status, err := svc.ApplyResult(context.Background(), "s1", model.ResultReport{Status: "FAILED"})
	if err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	if status != model.StatusFinalized {
		t.Errorf("status = %s, want FINALIZED after losing the guard race", status)
	}
}
