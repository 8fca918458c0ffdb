package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts a result row with no image yet and fills r.ID.
func (r *ResultRepository) Create(ctx context.Context, res *analysis.Result) error {
	const q = `
INSERT INTO analysis_results
  (user_id, image_key, image_url, elapsed_ms, created_at)
VALUES (?, NULL, NULL, ?, ?);`
	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	out, err := r.db.ExecContext(ctx, q, res.UserID, res.ElapsedMS, created)
	if err != nil {
		return err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = id
	res.CreatedAt = created
	res.ImageURL = nil
	return nil
}

// SetImage writes the image only while image_url is still NULL.
func (r *ResultRepository) SetImage(ctx context.Context, id int64, key, url string) error {
	const q = `
UPDATE analysis_results
SET image_key = ?, image_url = ?
WHERE id = ? AND image_url IS NULL;`
	out, err := r.db.ExecContext(ctx, q, key, url, id)
	if err != nil {
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("analysis %d: image already set or result missing", id)
	}
	return nil
}

func (r *ResultRepository) AddMatch(ctx context.Context, resultID, ingredientID int64) error {
	const q = `INSERT INTO ingredient_results (result_id, ingredient_id) VALUES (?, ?);`
	_, err := r.db.ExecContext(ctx, q, resultID, ingredientID)
	return err
}

const resultColumns = `id, user_id, image_key, image_url, elapsed_ms, created_at`

func scanResult(row interface{ Scan(...any) error }) (*analysis.Result, error) {
	var (
		res      analysis.Result
		key, url sql.NullString
	)
	if err := row.Scan(&res.ID, &res.UserID, &key, &url, &res.ElapsedMS, &res.CreatedAt); err != nil {
		return nil, err
	}
	res.ImageKey = key.String
	res.ImageURL = stringPtr(url)
	return &res, nil
}

// Get returns the caller's result with its matches.
func (r *ResultRepository) Get(ctx context.Context, userID, id int64) (*analysis.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM analysis_results WHERE user_id = ? AND id = ? LIMIT 1;`
	res, err := scanResult(r.db.QueryRowContext(ctx, q, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.Matches, err = r.Matches(ctx, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// ListByUser pages through a user's results, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*analysis.Result, int64, error) {
	_, pageSize, offset := normalizePage(page, pageSize)

	q := `SELECT ` + resultColumns + `
FROM analysis_results
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying results: %w", err)
	}
	out := []*analysis.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	for _, res := range out {
		if res.Matches, err = r.Matches(ctx, res.ID); err != nil {
			return nil, 0, err
		}
	}

	var total int64
	const cq = `SELECT COUNT(*) FROM analysis_results WHERE user_id = ?;`
	if err := r.db.QueryRowContext(ctx, cq, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("getting total count: %w", err)
	}
	return out, total, nil
}

// Matches lists the ingredients linked to a result.
func (r *ResultRepository) Matches(ctx context.Context, resultID int64) ([]analysis.Match, error) {
	const q = `
SELECT i.id, i.ingredient_kr, i.level, i.reason
FROM ingredient_results ir
JOIN ingredients i ON i.id = ir.ingredient_id
WHERE ir.result_id = ?
ORDER BY i.level, i.ingredient_kr, i.id;`
	rows, err := r.db.QueryContext(ctx, q, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []analysis.Match{}
	for rows.Next() {
		var (
			m             analysis.Match
			level, reason sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &level, &reason); err != nil {
			return nil, err
		}
		m.Level = level.String
		m.Reason = reason.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a result and its match records.
func (r *ResultRepository) Delete(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `DELETE FROM analysis_results WHERE user_id = ? AND id = ?;`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return analysis.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredient_results WHERE result_id = ?;`, id); err != nil {
		return err
	}
	return tx.Commit()
}
