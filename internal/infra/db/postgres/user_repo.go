package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mombo-site/mombo-api/internal/domain/user"
)

type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Get(ctx context.Context, id int64) (user.Profile, error) {
	const q = `
SELECT id, email, COALESCE(nickname, ''), COALESCE(member_type, '')
FROM users WHERE id = $1 LIMIT 1;`
	var p user.Profile
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Email, &p.Nickname, &p.MemberType)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Profile{}, user.ErrNotFound
	}
	return p, err
}
