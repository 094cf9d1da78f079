package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codegrade/internal/common"
	"codegrade/internal/domain/model"
)

// ListFilter narrows the paginated submission listing.
type ListFilter struct {
	SubmissionID string
	Status       string
	Page         int
	Size         int
}

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	List(ctx context.Context, filter ListFilter) ([]model.Submission, int, error)

	// ApplyResult performs the reconciling write guarded by finalized=FALSE.
	// It returns false when the guard rejected the write, which callers must
	// treat as a race loss, not an error.
	ApplyResult(ctx context.Context, id string, upd model.ResultUpdate) (bool, error)

	// Finalize flips the one-way finalized flag under the same guard.
	Finalize(ctx context.Context, id string, note *string) (bool, error)

	// FindFinalizedByOwner returns the owner's finalized submission, or
	// common.ErrNotFound when none exists.
	FindFinalizedByOwner(ctx context.Context, userID string) (*model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	failTags, err := json.Marshal(sub.FailTags)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: marshal fail_tags: %w", err)
	}
	feedback, err := json.Marshal(sub.Feedback)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: marshal feedback: %w", err)
	}
	metrics, err := json.Marshal(sub.Metrics)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: marshal metrics: %w", err)
	}

	query := `INSERT INTO submissions
	          (id, user_id, language, status, score, fail_tags, feedback, metrics, finalized, attempt, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Language, sub.Status, sub.Score,
		failTags, feedback, metrics, sub.Finalized, sub.Attempt, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, user_id, language, status, score, fail_tags, feedback, metrics,
	                 finalized, finalize_note, attempt, created_at, updated_at
	          FROM submissions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgSubmissionRepository) scanOne(row *sql.Row) (*model.Submission, error) {
	sub := &model.Submission{}
	var failTags, feedback, metrics []byte
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Language, &sub.Status, &sub.Score,
		&failTags, &feedback, &metrics,
		&sub.Finalized, &sub.FinalizeNote, &sub.Attempt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.scanOne: %w", err)
	}
	if err := json.Unmarshal(failTags, &sub.FailTags); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.scanOne: fail_tags: %w", err)
	}
	if err := json.Unmarshal(feedback, &sub.Feedback); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.scanOne: feedback: %w", err)
	}
	if err := json.Unmarshal(metrics, &sub.Metrics); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.scanOne: metrics: %w", err)
	}
	return sub, nil
}

// List omits feedback and metrics; listings only need the light fields.
func (r *pgSubmissionRepository) List(ctx context.Context, filter ListFilter) ([]model.Submission, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if filter.SubmissionID != "" {
		args = append(args, filter.SubmissionID)
		where += fmt.Sprintf(" AND id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.List: count: %w", err)
	}

	args = append(args, filter.Size, (filter.Page-1)*filter.Size)
	query := fmt.Sprintf(`SELECT id, user_id, language, status, score, finalized, created_at
	          FROM submissions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.List: %w", err)
	}
	defer rows.Close()

	var items []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Language, &sub.Status, &sub.Score, &sub.Finalized, &sub.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.List: scan: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.List: rows: %w", err)
	}
	return items, total, nil
}

func (r *pgSubmissionRepository) ApplyResult(ctx context.Context, id string, upd model.ResultUpdate) (bool, error) {
	failTags, err := json.Marshal(upd.FailTags)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ApplyResult: marshal fail_tags: %w", err)
	}
	feedback, err := json.Marshal(upd.Feedback)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ApplyResult: marshal feedback: %w", err)
	}
	metrics, err := json.Marshal(upd.Metrics)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ApplyResult: marshal metrics: %w", err)
	}

	query := `UPDATE submissions
	          SET status = $2, score = $3, fail_tags = $4, feedback = $5, metrics = $6, updated_at = $7
	          WHERE id = $1 AND finalized = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, upd.Status, upd.Score, failTags, feedback, metrics, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ApplyResult: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ApplyResult: rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *pgSubmissionRepository) Finalize(ctx context.Context, id string, note *string) (bool, error) {
	query := `UPDATE submissions
	          SET status = $2, finalized = TRUE, finalize_note = $3, updated_at = $4
	          WHERE id = $1 AND finalized = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, model.StatusFinalized, note, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Finalize: rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *pgSubmissionRepository) FindFinalizedByOwner(ctx context.Context, userID string) (*model.Submission, error) {
	query := `SELECT id, user_id, language, status, score, fail_tags, feedback, metrics,
	                 finalized, finalize_note, attempt, created_at, updated_at
	          FROM submissions WHERE user_id = $1 AND finalized = TRUE LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}
