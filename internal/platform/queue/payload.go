package queue

import (
	"context"

	"codegrade/internal/common"
	"codegrade/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// PayloadStore keeps the full submission payload out of the record store.
// Written once by intake, read once by the runner.
type PayloadStore struct {
	rdb    *redis.Client
	prefix string
}

func NewPayloadStore(rdb *redis.Client, prefix string) *PayloadStore {
	return &PayloadStore{rdb: rdb, prefix: prefix}
}

func (s *PayloadStore) key(submissionID string) string {
	return s.prefix + submissionID
}

func (s *PayloadStore) Save(ctx context.Context, p model.SubmissionPayload) error {
	err := s.rdb.HSet(ctx, s.key(p.SubmissionID), map[string]interface{}{
		"submission_id": p.SubmissionID,
		"user_id":       p.UserID,
		"language":      p.Language,
		"code":          p.Code,
	}).Err()
	if err != nil {
		return common.Errorf("payload store: HSET %q: %w", s.key(p.SubmissionID), err)
	}
	return nil
}

// Load returns an empty payload (not an error) when the key is absent; the
// runner maps that onto a FAILED/data_error outcome.
func (s *PayloadStore) Load(ctx context.Context, submissionID string) (model.SubmissionPayload, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(submissionID)).Result()
	if err != nil {
		return model.SubmissionPayload{}, common.Errorf("payload store: HGETALL %q: %w", s.key(submissionID), err)
	}
	return model.SubmissionPayload{
		SubmissionID: fields["submission_id"],
		UserID:       fields["user_id"],
		Language:     fields["language"],
		Code:         fields["code"],
	}, nil
}
