package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the profile store has no such user.
var ErrNotFound = errors.New("user not found")

// Profile is the part of the user/profile store the analysis flow needs.
type Profile struct {
	ID         int64
	Email      string
	Nickname   string
	MemberType string
}

// Summary is the user block embedded in analysis reports.
type Summary struct {
	UserNo   int64  `json:"userNo"`
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
}

func (p Profile) Summary() Summary {
	return Summary{UserNo: p.ID, Email: p.Email, Nickname: p.Nickname}
}

// Store port for the external user/profile store.
type Store interface {
	Get(ctx context.Context, id int64) (Profile, error)
}
