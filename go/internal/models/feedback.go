package models

const (
	MinRating = 0
	MaxRating = 100
)

// Feedback is the evaluator's verdict on one response.
type Feedback struct {
	Rating       int      `json:"rating"`
	Narrative    string   `json:"narrative"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// ClampRating forces Rating into [MinRating, MaxRating].
func (f Feedback) ClampRating() Feedback {
	switch {
	case f.Rating < MinRating:
		f.Rating = MinRating
	case f.Rating > MaxRating:
		f.Rating = MaxRating
	}
	return f
}
