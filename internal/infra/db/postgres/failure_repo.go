package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/failures"
)

type FailureRepository struct{ db *sql.DB }

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *failures.Failure) error {
	const q = `
INSERT INTO analysis_failures (user_id, result_id, phase, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5::jsonb,$6)
RETURNING id;`
	var resultID sql.NullInt64
	if f.ResultID > 0 {
		resultID = sql.NullInt64{Int64: f.ResultID, Valid: true}
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		f.UserID, resultID, stringOrDash(string(f.Phase)), stringOrDash(f.Message),
		jsonOrWrap(f.DetailsJSON), created,
	).Scan(&f.ID)
}

func (r *FailureRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, COALESCE(result_id, 0), phase, message, details_json::text, created_at
FROM analysis_failures
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*failures.Failure
	for rows.Next() {
		var f failures.Failure
		if err := rows.Scan(&f.ID, &f.UserID, &f.ResultID, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
