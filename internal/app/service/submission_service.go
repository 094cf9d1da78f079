package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"codegrade/internal/common"
	"codegrade/internal/domain/model"
	"codegrade/internal/domain/repository"

	"github.com/google/uuid"
)

// DispatchQueue is the hand-off intake pushes to and the scheduler pops from.
type DispatchQueue interface {
	Enqueue(ctx context.Context, msg model.DispatchMessage) error
}

// PayloadStore receives the full code payload, keyed by submission id.
type PayloadStore interface {
	Save(ctx context.Context, p model.SubmissionPayload) error
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	payloads       PayloadStore
	dispatch       DispatchQueue
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	payloads PayloadStore,
	dispatch DispatchQueue,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		payloads:       payloads,
		dispatch:       dispatch,
	}
}

type CreateSubmissionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// CreateSubmission is intake: persist the record QUEUED, store the payload,
// enqueue the dispatch message. The sequence is best-effort; if a step after
// the record insert fails, the record stays QUEUED with no worker dispatched
// and the error is surfaced to the caller. There is no reaper for such
// records.
func (s *SubmissionService) CreateSubmission(ctx context.Context, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if strings.TrimSpace(req.Language) == "" {
		return nil, common.Errorf("language must not be empty: %w", common.ErrValidation)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, common.Errorf("code must not be empty: %w", common.ErrValidation)
	}

	now := time.Now().UTC()
	sub := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		Language:  req.Language,
		Status:    model.StatusQueued,
		FailTags:  []string{},
		Feedback:  []model.FeedbackItem{},
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	payload := model.SubmissionPayload{
		SubmissionID: sub.ID,
		UserID:       userID,
		Language:     req.Language,
		Code:         req.Code,
	}
	if err := s.payloads.Save(ctx, payload); err != nil {
		log.Printf("ERROR: submission %s persisted but payload write failed; record stays QUEUED: %v", sub.ID, err)
		return nil, common.Errorf("failed to store submission payload: %w", err)
	}

	msg := model.DispatchMessage{SubmissionID: sub.ID, Language: req.Language}
	if err := s.dispatch.Enqueue(ctx, msg); err != nil {
		log.Printf("ERROR: submission %s persisted but enqueue failed; record stays QUEUED: %v", sub.ID, err)
		return nil, common.Errorf("failed to enqueue submission: %w", err)
	}

	log.Printf("Submission %s created and enqueued.", sub.ID)
	return sub, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("submission not found: %w", common.ErrNotFound)
		}
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionService) ListSubmissions(ctx context.Context, filter repository.ListFilter) ([]model.Submission, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Size < 1 || filter.Size > 100 {
		filter.Size = 10
	}
	items, total, err := s.submissionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, common.Errorf("failed to list submissions: %w", err)
	}
	return items, total, nil
}

// Finalize locks a submission as the owner's terminal choice. Repeated calls
// on the same id are idempotent; a second finalized submission under the same
// owner is a conflict.
func (s *SubmissionService) Finalize(ctx context.Context, userID, id string, note *string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("submission not found: %w", common.ErrNotFound)
		}
		return nil, common.Errorf("failed to load submission: %w", err)
	}
	if sub.UserID != userID {
		return nil, common.Errorf("submission belongs to another user: %w", common.ErrForbidden)
	}
	if sub.Finalized {
		return sub, nil
	}

	existing, err := s.submissionRepo.FindFinalizedByOwner(ctx, sub.UserID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check finalized submissions for owner: %w", err)
	}
	if existing != nil && existing.ID != id {
		return nil, common.Errorf("finalized_submission_exists_for_user: %w", common.ErrConflict)
	}

	ok, err := s.submissionRepo.Finalize(ctx, id, note)
	if err != nil {
		return nil, common.Errorf("failed to finalize submission: %w", err)
	}
	if !ok {
		// Lost a race on the guard. If another finalize on the same id won,
		// the outcome is consistent and we report success; anything else is a
		// genuine anomaly.
		sub, err = s.submissionRepo.GetByID(ctx, id)
		if err != nil {
			return nil, common.Errorf("failed to re-read submission after finalize race: %w", err)
		}
		if !sub.Finalized {
			return nil, common.Errorf("finalize_conflict: %w", common.ErrConflict)
		}
		return sub, nil
	}

	sub, err = s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, common.Errorf("failed to re-read submission after finalize: %w", err)
	}
	log.Printf("Submission %s finalized by user %s.", id, userID)
	return sub, nil
}
