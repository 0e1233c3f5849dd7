package usecase

import (
	"strings"
	"unicode/utf8"

	"raglite/internal/domain"
)

// DefaultAnswerBudget is the default character budget for composed answers.
const DefaultAnswerBudget = 600

// BuildAnswer concatenates ranked hit texts into a readable answer with
// citations. Duplicate texts are used once, hits are consumed in the given
// score order, and the total length stays under maxChars.
func BuildAnswer(hits []domain.Hit, maxChars int) domain.Answer {
	if maxChars <= 0 {
		maxChars = DefaultAnswerBudget
	}

	used := make(map[string]struct{})
	var parts []string
	var citations []domain.Citation

	total := 0
	for _, h := range hits {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		if _, seen := used[text]; seen {
			continue
		}

		sep := 0
		if len(parts) > 0 {
			sep = 2
		}
		// Budget counts characters, not bytes, so multibyte text is
		// not cut short.
		chars := utf8.RuneCountInString(text)
		if total+chars+sep > maxChars {
			break
		}

		parts = append(parts, text)
		used[text] = struct{}{}
		total += chars + sep

		citations = append(citations, domain.Citation{
			DocID: h.DocID,
			Text:  text,
			Score: h.Score,
		})
	}

	return domain.Answer{
		Text:      strings.Join(parts, "  "),
		Citations: citations,
	}
}
