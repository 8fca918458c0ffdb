package analysis

import "errors"

var (
	// ErrInvalidImage means the upload is missing or cannot be decoded. User error.
	ErrInvalidImage = errors.New("invalid image")
	// ErrOCRService means the OCR provider failed, timed out or answered off-schema.
	ErrOCRService = errors.New("ocr service error")
	// ErrNormalizationService means the correction provider failed, timed out or answered off-schema.
	ErrNormalizationService = errors.New("normalization service error")
	// ErrDictionary means the ingredient dictionary could not be read.
	ErrDictionary = errors.New("ingredient dictionary unavailable")
	// ErrPersistence means a write to the result store or blob store failed after
	// matching succeeded. Earlier writes are not rolled back.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned when an analysis does not exist for the caller.
	ErrNotFound = errors.New("analysis not found")
)
