package analysis

import (
	"context"

	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
)

// ImageProcessor resizes uploads and renders OCR diagnostics.
type ImageProcessor interface {
	Resize(data []byte, targetWidth int) (Image, error)
	Annotate(img Image, ocr OCRResult) (Image, []string, error)
}

// OCRClient port for the external text recognition service.
type OCRClient interface {
	Scan(ctx context.Context, img Image) (OCRResult, error)
}

// Normalizer port for the external ingredient-name correction service.
type Normalizer interface {
	Correct(ctx context.Context, tokens []string) ([]string, error)
}

// Dictionary is the read side of the ingredient store used by the matcher.
type Dictionary interface {
	FindByName(ctx context.Context, nameKr string) (ingredient.Ingredient, bool, error)
}

// BlobStore port for image storage.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete reports success instead of returning an error.
	Delete(ctx context.Context, key string) bool
}

// Repository port for analysis results and their match records.
type Repository interface {
	Create(ctx context.Context, r *Result) error
	// SetImage sets the image key and URL only if no URL is stored yet.
	SetImage(ctx context.Context, id int64, key, url string) error
	AddMatch(ctx context.Context, resultID, ingredientID int64) error
	Get(ctx context.Context, userID, id int64) (*Result, error)
	ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*Result, int64, error)
	Matches(ctx context.Context, resultID int64) ([]Match, error)
	Delete(ctx context.Context, userID, id int64) error
}
