package middleware

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// Input validation for request parameters and uploads.

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	// DetectContentType does not know TIFF
	"application/octet-stream": true,
}

// ValidateImageUpload checks size and sniffs the first bytes of an upload.
// Decoding is left to the image processor.
func ValidateImageUpload(fh *multipart.FileHeader, head []byte, maxBytes int64) error {
	if fh == nil || fh.Size == 0 || len(head) == 0 {
		return fmt.Errorf("image file is empty")
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return fmt.Errorf("image is %d bytes, limit is %d", fh.Size, maxBytes)
	}
	ct := http.DetectContentType(head)
	if !imageContentTypes[ct] {
		return fmt.Errorf("unsupported content type %s", ct)
	}
	return nil
}

// ValidateImportFilename accepts .xlsx and .csv names without path parts.
func ValidateImportFilename(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return fmt.Errorf("invalid file name")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return nil
	default:
		return fmt.Errorf("unsupported file type %q (allowed: .xlsx, .csv)", filepath.Ext(name))
	}
}

// SanitizeString removes control characters and surrounding space.
func SanitizeString(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateKeyword sanitizes a search keyword and caps its length.
func ValidateKeyword(keyword string) (string, error) {
	keyword = SanitizeString(keyword)
	if keyword == "" {
		return "", fmt.Errorf("keyword cannot be empty")
	}
	if n := len([]rune(keyword)); n > 100 {
		return "", fmt.Errorf("keyword too long (%d chars, max 100)", n)
	}
	return keyword, nil
}

// ValidateID parses a positive numeric path id.
func ValidateID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage clamps a page number to at least 1.
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

// QueryInt reads an int query parameter, returning def when absent or invalid.
func QueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
