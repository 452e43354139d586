package classifier

import (
	"fmt"
	"strings"

	"github.com/litterly/waste-classification-service/lexicon"
	"github.com/litterly/waste-classification-service/models"
)

const (
	KeywordConfidence  = 0.8
	FallbackConfidence = 0.5
	FallbackKeyword    = "unknown"
)

// TextClassifier guesses waste categories from a free-text description by
// keyword substring matching. It is stateless and never fails.
type TextClassifier struct{}

func NewTextClassifier() *TextClassifier {
	return &TextClassifier{}
}

// Classify emits at most one match per category, taking the first keyword of
// that category found in the text. With no match it returns a single General
// prediction, so the result is never empty.
func (c *TextClassifier) Classify(text string) *models.ClassificationResult {
	lower := strings.ToLower(text)

	var matches []models.Prediction
	for _, entry := range lexicon.Entries() {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				matches = append(matches, models.TextMatch{
					ClassName:      entry.Category.Label(),
					Confidence:     KeywordConfidence,
					MatchedKeyword: keyword,
				})
				break
			}
		}
	}

	if len(matches) == 0 {
		return &models.ClassificationResult{
			Success: true,
			Predictions: []models.Prediction{models.TextMatch{
				ClassName:      lexicon.General.Label(),
				Confidence:     FallbackConfidence,
				MatchedKeyword: FallbackKeyword,
			}},
			TotalDetections: 1,
			Message:         "Could not determine specific waste type from description",
		}
	}

	return &models.ClassificationResult{
		Success:         true,
		Predictions:     matches,
		TotalDetections: len(matches),
		Message:         fmt.Sprintf("Identified %d waste categories from text description", len(matches)),
	}
}
