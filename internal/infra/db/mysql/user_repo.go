package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mombo-site/mombo-api/internal/domain/user"
)

// UserRepository reads the profile store.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Get(ctx context.Context, id int64) (user.Profile, error) {
	const q = `SELECT id, email, nickname, member_type FROM users WHERE id = ? LIMIT 1;`
	var (
		p                    user.Profile
		nickname, memberType sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Email, &nickname, &memberType)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Profile{}, user.ErrNotFound
	}
	if err != nil {
		return user.Profile{}, err
	}
	p.Nickname = nickname.String
	p.MemberType = memberType.String
	return p, nil
}
