package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/failures"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *failures.Failure) error {
	const q = `
INSERT INTO analysis_failures
  (user_id, result_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?);`
	phase := stringOrDash(string(f.Phase))
	msg := stringOrDash(f.Message)
	details := f.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else {
		// ensure valid json; if invalid, wrap as string field
		var js any
		if json.Unmarshal([]byte(details), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": details})
			details = string(b)
		}
	}
	var resultID sql.NullInt64
	if f.ResultID > 0 {
		resultID = sql.NullInt64{Int64: f.ResultID, Valid: true}
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	out, err := r.db.ExecContext(ctx, q, f.UserID, resultID, phase, msg, details, created)
	if err != nil {
		return err
	}
	if id, err := out.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, result_id, phase, message, details_json, created_at
FROM analysis_failures
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*failures.Failure
	for rows.Next() {
		var (
			f        failures.Failure
			resultID sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.UserID, &resultID, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.ResultID = resultID.Int64
		out = append(out, &f)
	}
	return out, rows.Err()
}
