package analysis

import (
	"strings"
	"time"

	"github.com/mombo-site/mombo-api/internal/domain/user"
)

// RiskLevel is the request-level verdict.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMiddle RiskLevel = "middle"
	RiskLow    RiskLevel = "low"
)

// Dictionary levels that drive the verdict.
const (
	LevelFirst  = "1등급"
	LevelSecond = "2등급"
)

// TrackedLevels are always present in a RiskCount, even at zero.
var TrackedLevels = []string{LevelFirst, LevelSecond}

// TotalKey is the RiskCount entry holding the sum of counted levels.
const TotalKey = "total"

// RiskCount maps a level label to the number of matched ingredients at that
// level. Derived per request, never stored.
type RiskCount map[string]int

// Total returns the counted sum.
func (c RiskCount) Total() int { return c[TotalKey] }

// Image is an encoded image together with the format it was decoded from
// ("jpeg", "png", "gif", "bmp", "tiff").
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Ext returns the file extension used for uploads and OCR metadata.
func (i Image) Ext() string {
	switch i.Format {
	case "jpeg":
		return "jpg"
	case "":
		return "bin"
	default:
		return i.Format
	}
}

// ContentType returns the MIME type of the encoded data.
func (i Image) ContentType() string {
	if i.Format == "" {
		return "application/octet-stream"
	}
	return "image/" + strings.ToLower(i.Format)
}

// Match is one dictionary hit, as reported to the caller.
type Match struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// Result is the persisted record of one analysis request.
// ImageURL stays nil until the blob upload succeeds and is never changed after.
type Result struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ImageKey  string    `json:"-"`
	ImageURL  *string   `json:"image"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
	Matches   []Match   `json:"ingredient_results,omitempty"`
}

// MatchRecord links a Result to an Ingredient.
type MatchRecord struct {
	ID           int64 `json:"id"`
	ResultID     int64 `json:"result_id"`
	IngredientID int64 `json:"ingredient_id"`
}

// Report is the response body of a successful analysis.
type Report struct {
	AnalysisID          int64        `json:"analysisId"`
	RiskLevel           RiskLevel    `json:"riskLevel"`
	User                user.Summary `json:"user"`
	AnalysisImage       string       `json:"analysisImage"`
	RiskIngredientCount RiskCount    `json:"riskIngredientCount"`
	IngredientAnalysis  []Match      `json:"ingredientAnalysis"`
	ElapsedMS           int64        `json:"elapsedMs"`
}

// PaginatedResults is a page of a user's analysis history.
type PaginatedResults struct {
	Data       []*Result `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}
