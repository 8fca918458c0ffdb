package failures

import "context"

// Repository persists pipeline failures.
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Failure, error)
}
