package clova

import "github.com/mombo-site/mombo-api/internal/infra/schema"

var responseSchema = schema.MustCompile("clova_ocr_response", map[string]any{
	"type":     "object",
	"required": []string{"images"},
	"properties": map[string]any{
		"images": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"fields"},
				"properties": map[string]any{
					"fields": map[string]any{
						"type":  "array",
						"items": fieldSchema(),
					},
				},
			},
		},
	},
})

func fieldSchema() map[string]any {
	vertex := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "number"},
			"y": map[string]any{"type": "number"},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"boundingPoly"},
		"properties": map[string]any{
			"inferText": map[string]any{"type": "string"},
			"boundingPoly": map[string]any{
				"type":     "object",
				"required": []string{"vertices"},
				"properties": map[string]any{
					"vertices": map[string]any{"type": "array", "items": vertex},
				},
			},
		},
	}
}
