package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

type ResultRepository struct{ db *sql.DB }

func NewResultRepository(db *sql.DB) *ResultRepository { return &ResultRepository{db: db} }

func (r *ResultRepository) Create(ctx context.Context, res *analysis.Result) error {
	const q = `
INSERT INTO analysis_results (user_id, elapsed_ms, created_at)
VALUES ($1,$2,$3)
RETURNING id;`
	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if err := r.db.QueryRowContext(ctx, q, res.UserID, res.ElapsedMS, created).Scan(&res.ID); err != nil {
		return err
	}
	res.CreatedAt = created
	res.ImageURL = nil
	return nil
}

func (r *ResultRepository) SetImage(ctx context.Context, id int64, key, url string) error {
	const q = `
UPDATE analysis_results SET image_key = $1, image_url = $2
WHERE id = $3 AND image_url IS NULL;`
	out, err := r.db.ExecContext(ctx, q, key, url, id)
	if err != nil {
		return err
	}
	if n, err := out.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("analysis %d: image already set or result missing", id)
	}
	return nil
}

func (r *ResultRepository) AddMatch(ctx context.Context, resultID, ingredientID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingredient_results (result_id, ingredient_id) VALUES ($1,$2);`,
		resultID, ingredientID)
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

func (r *ResultRepository) Get(ctx context.Context, userID, id int64) (*analysis.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM analysis_results WHERE user_id = $1 AND id = $2 LIMIT 1;`
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

func (r *ResultRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*analysis.Result, int64, error) {
	_, pageSize, offset := normalizePage(page, pageSize)
	q := `SELECT ` + resultColumns + `
FROM analysis_results
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
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
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("iterating rows: %w", err)
	}

	for _, res := range out {
		if res.Matches, err = r.Matches(ctx, res.ID); err != nil {
			return nil, 0, err
		}
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_results WHERE user_id = $1;`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("getting total count: %w", err)
	}
	return out, total, nil
}

func (r *ResultRepository) Matches(ctx context.Context, resultID int64) ([]analysis.Match, error) {
	const q = `
SELECT i.id, i.ingredient_kr, COALESCE(i.level, ''), COALESCE(i.reason, '')
FROM ingredient_results ir
JOIN ingredients i ON i.id = ir.ingredient_id
WHERE ir.result_id = $1
ORDER BY i.level, i.ingredient_kr, i.id;`
	rows, err := r.db.QueryContext(ctx, q, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []analysis.Match{}
	for rows.Next() {
		var m analysis.Match
		if err := rows.Scan(&m.ID, &m.Name, &m.Level, &m.Reason); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ResultRepository) Delete(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `DELETE FROM analysis_results WHERE user_id = $1 AND id = $2;`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return analysis.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredient_results WHERE result_id = $1;`, id); err != nil {
		return err
	}
	return tx.Commit()
}
