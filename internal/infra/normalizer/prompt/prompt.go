package prompt

import (
	"encoding/json"
	"fmt"
)

// SystemPrompt tells the model to act as the ingredient-name correction service.
func SystemPrompt() string {
	return `You correct Korean drug and cosmetic ingredient names read by OCR from a product label. You must produce one valid JSON object only (no markdown, no commentary).

Requirements:
- Output must be a single JSON object with exactly one key, "corrected_ingredients".
- "corrected_ingredients" is an array of strings.
- For every input token, output its canonical Korean ingredient name when you recognize it, otherwise output the token unchanged.
- Fix OCR mistakes only (spacing, similar-looking Hangul, broken syllables). Never invent ingredients that are not in the input.
- Keep the input order.

Schema:
{"corrected_ingredients": ["<string>", ...]}`
}

// UserPrompt wraps the raw tokens as a JSON payload.
func UserPrompt(tokens []string) string {
	if tokens == nil {
		tokens = []string{}
	}
	b, _ := json.Marshal(map[string][]string{"ingredients": tokens})
	return fmt.Sprintf("Correct these OCR tokens and respond with the JSON per schema: %s", b)
}
