package analysis

// OCRResult is the typed shape of the OCR provider's response.
type OCRResult struct {
	Version   string     `json:"version,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
	Images    []OCRImage `json:"images"`
}

type OCRImage struct {
	UID         string     `json:"uid,omitempty"`
	Name        string     `json:"name,omitempty"`
	InferResult string     `json:"inferResult,omitempty"`
	Message     string     `json:"message,omitempty"`
	Fields      []OCRField `json:"fields"`
}

type OCRField struct {
	InferText       string       `json:"inferText"`
	InferConfidence float64      `json:"inferConfidence,omitempty"`
	BoundingPoly    BoundingPoly `json:"boundingPoly"`
}

type BoundingPoly struct {
	Vertices []Vertex `json:"vertices"`
}

type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Fields returns the fields of the first image, the only one ever sent.
func (r OCRResult) Fields() []OCRField {
	if len(r.Images) == 0 {
		return nil
	}
	return r.Images[0].Fields
}
