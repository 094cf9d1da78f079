package service

import (
	"context"
	"errors"
	"log"

	"codegrade/internal/common"
	"codegrade/internal/domain/model"
	"codegrade/internal/domain/repository"
)

// ResultService reconciles runner-reported outcomes into the record store.
// It is the only writer of the reported statuses and always defers to an
// already-finalized record.
type ResultService struct {
	submissionRepo repository.SubmissionRepository
}

func NewResultService(subRepo repository.SubmissionRepository) *ResultService {
	return &ResultService{submissionRepo: subRepo}
}

// ApplyResult merges a reported outcome. It returns the submission's current
// status after the call; when the record was already finalized, or a finalize
// raced in between, the report is dropped and the current status is returned
// unchanged.
func (s *ResultService) ApplyResult(ctx context.Context, submissionID string, in model.ResultReport) (model.SubmissionStatus, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.Errorf("submission not found: %w", common.ErrNotFound)
		}
		return "", common.Errorf("failed to load submission: %w", err)
	}

	// A late or duplicate report after finalize is discarded intentionally.
	if sub.Finalized || sub.Status == model.StatusFinalized {
		log.Printf("Submission %s already finalized; dropping result report.", submissionID)
		return sub.Status, nil
	}

	status, ok := model.NormalizeReportedStatus(in.Status)
	if !ok {
		return "", common.Errorf("invalid status %q: %w", in.Status, common.ErrBadRequest)
	}

	failTags := in.FailTags
	if failTags == nil {
		failTags = []string{}
	}
	feedback := in.Feedback
	if feedback == nil {
		feedback = []model.FeedbackItem{}
	}

	upd := model.ResultUpdate{
		Status:   status,
		Score:    in.Score,
		FailTags: failTags,
		Feedback: feedback,
		Metrics:  in.Metrics,
	}
	applied, err := s.submissionRepo.ApplyResult(ctx, submissionID, upd)
	if err != nil {
		return "", common.Errorf("failed to apply result: %w", err)
	}
	if !applied {
		// A finalize won the race between our read and the guarded write.
		// FINALIZED outranks any later report, so the write is dropped.
		sub, err = s.submissionRepo.GetByID(ctx, submissionID)
		if err != nil {
			return "", common.Errorf("failed to re-read submission after result race: %w", err)
		}
		log.Printf("WARN: result for submission %s lost the guard race; current status %s kept.", submissionID, sub.Status)
		return sub.Status, nil
	}

	log.Printf("Submission %s reconciled to status %s (score %.1f).", submissionID, status, in.Score)
	return status, nil
}
