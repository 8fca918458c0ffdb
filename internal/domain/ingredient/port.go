package ingredient

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedFile is returned for imports that are neither .xlsx nor .csv.
	ErrUnsupportedFile = errors.New("unsupported dictionary file")
	// ErrInvalidFile is returned when an import file cannot be parsed.
	ErrInvalidFile = errors.New("dictionary file could not be read")
	// ErrDuplicate is returned when a name is already in the dictionary.
	ErrDuplicate = errors.New("ingredient already exists")
	// ErrEmptyKeyword is returned when a search has nothing to look for.
	ErrEmptyKeyword = errors.New("search keyword is empty")
)

// Repository port for the ingredient dictionary.
type Repository interface {
	// FindByName does an exact lookup on the Korean name. A miss is
	// reported through found=false, not through err.
	FindByName(ctx context.Context, nameKr string) (ing Ingredient, found bool, err error)
	Get(ctx context.Context, id int64) (Ingredient, bool, error)
	Search(ctx context.Context, keyword string, limit int) ([]Ingredient, error)
	Insert(ctx context.Context, items []Ingredient) (int, error)
}
