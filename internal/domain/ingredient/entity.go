package ingredient

import "time"

// Ingredient is one row of the curated dictionary. NameKr is the lookup key.
type Ingredient struct {
	ID         int64     `json:"id"`
	CategoryID string    `json:"category_id,omitempty"`
	EffectType string    `json:"effect_type,omitempty"`
	NameKr     string    `json:"name"`
	NameEn     string    `json:"name_en,omitempty"`
	Level      string    `json:"level"`
	Reason     string    `json:"reason,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// ImportSummary reports the outcome of a bulk dictionary import.
type ImportSummary struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
