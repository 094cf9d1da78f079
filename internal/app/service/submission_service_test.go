package service_test

import (
	"context"
	"errors"
	"testing"

	"codegrade/internal/app/service"
	"codegrade/internal/common"
	"codegrade/internal/domain/model"
	"codegrade/internal/domain/repository"
)

// stubSubmissionRepo implements repository.SubmissionRepository with
// overridable function fields.
type stubSubmissionRepo struct {
	createFn               func(ctx context.Context, sub *model.Submission) error
	getByIDFn              func(ctx context.Context, id string) (*model.Submission, error)
	listFn                 func(ctx context.Context, filter repository.ListFilter) ([]model.Submission, int, error)
	applyResultFn          func(ctx context.Context, id string, upd model.ResultUpdate) (bool, error)
	finalizeFn             func(ctx context.Context, id string, note *string) (bool, error)
	findFinalizedByOwnerFn func(ctx context.Context, userID string) (*model.Submission, error)
}

func (s *stubSubmissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	if s.createFn != nil {
		return s.createFn(ctx, sub)
	}
	return nil
}
func (s *stubSubmissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, common.ErrNotFound
}
func (s *stubSubmissionRepo) List(ctx context.Context, filter repository.ListFilter) ([]model.Submission, int, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, 0, nil
}
func (s *stubSubmissionRepo) ApplyResult(ctx context.Context, id string, upd model.ResultUpdate) (bool, error) {
	if s.applyResultFn != nil {
		return s.applyResultFn(ctx, id, upd)
	}
	return true, nil
}
func (s *stubSubmissionRepo) Finalize(ctx context.Context, id string, note *string) (bool, error) {
	if s.finalizeFn != nil {
		return s.finalizeFn(ctx, id, note)
	}
	return true, nil
}
func (s *stubSubmissionRepo) FindFinalizedByOwner(ctx context.Context, userID string) (*model.Submission, error) {
	if s.findFinalizedByOwnerFn != nil {
		return s.findFinalizedByOwnerFn(ctx, userID)
	}
	return nil, common.ErrNotFound
}

type stubPayloadStore struct {
	saveFn func(ctx context.Context, p model.SubmissionPayload) error
	saved  []model.SubmissionPayload
}

func (s *stubPayloadStore) Save(ctx context.Context, p model.SubmissionPayload) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, p)
	}
	s.saved = append(s.saved, p)
	return nil
}

type stubDispatchQueue struct {
	enqueueFn func(ctx context.Context, msg model.DispatchMessage) error
	enqueued  []model.DispatchMessage
}

func (s *stubDispatchQueue) Enqueue(ctx context.Context, msg model.DispatchMessage) error {
	if s.enqueueFn != nil {
		return s.enqueueFn(ctx, msg)
	}
	s.enqueued = append(s.enqueued, msg)
	return nil
}

func TestCreateSubmission_RejectsEmptyInput(t *testing.T) {
	svc := service.NewSubmissionService(&stubSubmissionRepo{}, &stubPayloadStore{}, &stubDispatchQueue{})

	for _, req := range []service.CreateSubmissionRequest{
		{Language: "", Code: "print(1)"},
		{Language: "python", Code: ""},
		{Language: "  ", Code: "print(1)"},
	} {
		_, err := svc.CreateSubmission(context.Background(), "u1", req)
		if !errors.Is(err, common.ErrValidation) {
			t.Errorf("CreateSubmission(%+v) error = %v, want ErrValidation", req, err)
		}
	}
}

func TestCreateSubmission_PersistsStoresAndEnqueues(t *testing.T) {
	var created *model.Submission
	repo := &stubSubmissionRepo{
		createFn: func(_ context.Context, sub *model.Submission) error {
			created = sub
			return nil
		},
	}
	payloads := &stubPayloadStore{}
	dispatch := &stubDispatchQueue{}
	svc := service.NewSubmissionService(repo, payloads, dispatch)

	sub, err := svc.CreateSubmission(context.Background(), "u1", service.CreateSubmissionRequest{
		Language: "python", Code: "print(1)",
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if sub.Status != model.StatusQueued {
		t.Errorf("status = %s, want QUEUED", sub.Status)
	}
	if sub.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", sub.Attempt)
	}
	if created == nil || created.ID != sub.ID {
		t.Fatal("submission was not persisted before payload/enqueue")
	}
	if len(payloads.saved) != 1 || payloads.saved[0].Code != "print(1)" || payloads.saved[0].SubmissionID != sub.ID {
		t.Errorf("payload store got %+v", payloads.saved)
	}
	if len(dispatch.enqueued) != 1 || dispatch.enqueued[0].SubmissionID != sub.ID || dispatch.enqueued[0].Language != "python" {
		t.Errorf("dispatch queue got %+v", dispatch.enqueued)
	}
}

func TestCreateSubmission_EnqueueFailureLeavesRecordQueued(t *testing.T) {
	// The record insert succeeded but the enqueue failed: the error is
	// surfaced and there is no rollback of the record (accepted gap).
	var created *model.Submission
	repo := &stubSubmissionRepo{
		createFn: func(_ context.Context, sub *model.Submission) error {
			created = sub
			return nil
		},
	}
	dispatch := &stubDispatchQueue{
		enqueueFn: func(context.Context, model.DispatchMessage) error {
			return errors.New("redis down")
		},
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, dispatch)

	_, err := svc.CreateSubmission(context.Background(), "u1", service.CreateSubmissionRequest{
		Language: "python", Code: "print(1)",
	})
	if err == nil {
		t.Fatal("expected error when enqueue fails")
	}
	if created == nil || created.Status != model.StatusQueued {
		t.Error("record should have been persisted QUEUED before the enqueue failure")
	}
}

func queuedSubmission(id, userID string) *model.Submission {
	return &model.Submission{
		ID: id, UserID: userID, Language: "python",
		Status: model.StatusQueued, FailTags: []string{}, Feedback: []model.FeedbackItem{},
	}
}

func TestFinalize_IsIdempotent(t *testing.T) {
	sub := queuedSubmission("s1", "u1")
	sub.Status = model.StatusFinalized
	sub.Finalized = true
	finalizeCalled := false
	repo := &stubSubmissionRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Submission, error) { return sub, nil },
		finalizeFn: func(context.Context, string, *string) (bool, error) {
			finalizeCalled = true
			return true, nil
		},
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, &stubDispatchQueue{})

	got, err := svc.Finalize(context.Background(), "u1", "s1", nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !got.Finalized || got.Status != model.StatusFinalized {
		t.Errorf("got %+v, want finalized", got)
	}
	if finalizeCalled {
		t.Error("repeated finalize must not write again")
	}
}

func TestFinalize_RejectsSecondFinalizedForOwner(t *testing.T) {
	other := queuedSubmission("s0", "u1")
	other.Finalized = true
	other.Status = model.StatusFinalized
	repo := &stubSubmissionRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Submission, error) {
			return queuedSubmission("s1", "u1"), nil
		},
		findFinalizedByOwnerFn: func(context.Context, string) (*model.Submission, error) {
			return other, nil
		},
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, &stubDispatchQueue{})

	_, err := svc.Finalize(context.Background(), "u1", "s1", nil)
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("Finalize error = %v, want ErrConflict", err)
	}
}

func TestFinalize_GuardRaceLostToSameID(t *testing.T) {
	// The conditional write reports no rows, but the re-read shows the same
	// id finalized: another finalize on this id won, which is success.
	calls := 0
	repo := &stubSubmissionRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Submission, error) {
			calls++
			sub := queuedSubmission("s1", "u1")
			if calls > 1 {
				sub.Finalized = true
				sub.Status = model.StatusFinalized
			}
			return sub, nil
		},
		finalizeFn: func(context.Context, string, *string) (bool, error) { return false, nil },
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, &stubDispatchQueue{})

	got, err := svc.Finalize(context.Background(), "u1", "s1", nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !got.Finalized {
		t.Error("expected idempotent success after losing the guard race")
	}
}

func TestFinalize_GuardFailureWithoutFinalizeIsConflict(t *testing.T) {
	repo := &stubSubmissionRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Submission, error) {
			return queuedSubmission("s1", "u1"), nil
		},
		finalizeFn: func(context.Context, string, *string) (bool, error) { return false, nil },
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, &stubDispatchQueue{})

	_, err := svc.Finalize(context.Background(), "u1", "s1", nil)
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("Finalize error = %v, want ErrConflict", err)
	}
}

func TestFinalize_WrongOwnerIsForbidden(t *testing.T) {
	repo := &stubSubmissionRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Submission, error) {
			return queuedSubmission("s1", "u1"), nil
		},
	}
	svc := service.NewSubmissionService(repo, &stubPayloadStore{}, &stubDispatchQueue{})

	_, err := svc.Finalize(context.Background(), "u2", "s1", nil)
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("Finalize error = %v, want ErrForbidden", err)
	}
}

func TestFinalize_NotFound(t *testing.T) {
	svc := service.NewSubmissionService(&stubSubmissionRepo{}, &stubPayloadStore{}, &stubDispatchQueue{})
	_, err := svc.Finalize(context.Background(), "u1", "missing", nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Finalize error = %v, want ErrNotFound", err)
	}
}
