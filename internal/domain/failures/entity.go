package failures

import "time"

// Phase names the pipeline stage a failure happened in.
type Phase string

const (
	PhasePreprocess Phase = "preprocess"
	PhaseOCR        Phase = "ocr"
	PhaseNormalize  Phase = "normalize"
	PhaseMatch      Phase = "match"
	PhasePersist    Phase = "persist"
)

// Failure is a journaled pipeline failure.
type Failure struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ResultID    int64     `json:"result_id,omitempty"` // 0 when no result row exists yet
	Phase       Phase     `json:"phase"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
