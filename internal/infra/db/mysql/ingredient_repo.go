package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
)

type IngredientRepository struct {
	db *sql.DB
}

func NewIngredientRepository(db *sql.DB) *IngredientRepository {
	return &IngredientRepository{db: db}
}

const ingredientColumns = `id, category_id, effect_type, ingredient_kr, ingredient_en, level, reason, notes, created_at`

func scanIngredient(row interface{ Scan(...any) error }) (ingredient.Ingredient, error) {
	var (
		ing                                            ingredient.Ingredient
		category, effect, nameEn, level, reason, notes sql.NullString
	)
	if err := row.Scan(&ing.ID, &category, &effect, &ing.NameKr, &nameEn, &level, &reason, &notes, &ing.CreatedAt); err != nil {
		return ingredient.Ingredient{}, err
	}
	ing.CategoryID = category.String
	ing.EffectType = effect.String
	ing.NameEn = nameEn.String
	ing.Level = level.String
	ing.Reason = reason.String
	ing.Notes = notes.String
	return ing, nil
}

// FindByName is an exact match on ingredient_kr.
func (r *IngredientRepository) FindByName(ctx context.Context, nameKr string) (ingredient.Ingredient, bool, error) {
	q := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE ingredient_kr = ? LIMIT 1;`
	ing, err := scanIngredient(r.db.QueryRowContext(ctx, q, nameKr))
	if errors.Is(err, sql.ErrNoRows) {
		return ingredient.Ingredient{}, false, nil
	}
	if err != nil {
		return ingredient.Ingredient{}, false, err
	}
	return ing, true, nil
}

// Get by primary key
func (r *IngredientRepository) Get(ctx context.Context, id int64) (ingredient.Ingredient, bool, error) {
	q := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE id = ? LIMIT 1;`
	ing, err := scanIngredient(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ingredient.Ingredient{}, false, nil
	}
	if err != nil {
		return ingredient.Ingredient{}, false, err
	}
	return ing, true, nil
}

// Search does a substring match on the Korean name, newest first.
func (r *IngredientRepository) Search(ctx context.Context, keyword string, limit int) ([]ingredient.Ingredient, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + ingredientColumns + `
FROM ingredients
WHERE ingredient_kr LIKE ? ESCAPE '!'
ORDER BY id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, "%"+escapeLikePattern(keyword)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingredients: %w", err)
	}
	defer rows.Close()

	out := []ingredient.Ingredient{}
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// Insert writes items in one transaction and returns how many rows went in.
func (r *IngredientRepository) Insert(ctx context.Context, items []ingredient.Ingredient) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	const q = `
INSERT INTO ingredients
  (category_id, effect_type, ingredient_kr, ingredient_en, level, reason, notes, created_at)
VALUES (?,?,?,?,?,?,?,?);`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, it := range items {
		created := it.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx,
			nullString(it.CategoryID), nullString(it.EffectType), it.NameKr, nullString(it.NameEn),
			nullString(it.Level), nullString(it.Reason), nullString(it.Notes), created,
		); err != nil {
			_ = tx.Rollback()
			if isDuplicateKey(err) {
				return 0, fmt.Errorf("insert %q: %w", it.NameKr, ingredient.ErrDuplicate)
			}
			return 0, fmt.Errorf("insert %q: %w", it.NameKr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}
