package classifier

import (
	"context"
	"strings"

	"guardian/internal/content"
	"guardian/internal/scanning/models"
	strutil "guardian/pkg/platform/strings"
)

// DefaultTerms seeds the keyword classifier when no lists are configured.
var DefaultTerms = map[models.ViolationType][]string{
	models.ViolationHateSpeech:        {"subhuman", "vermin", "go back to where you came from"},
	models.ViolationViolence:          {"kill you", "shoot up", "behead", "bomb threat"},
	models.ViolationIllegalContent:    {"buy cocaine", "counterfeit passport", "stolen credit card"},
	models.ViolationChildExploitation: {"underage nude", "child sexual", "csam"},
}

// Keyword scores text against per-type term lists. The first hit of a type
// scores 0.6 and every further distinct hit adds 0.1, capped at 0.99.
type Keyword struct {
	terms map[models.ViolationType][]string
}

// NewKeyword normalizes the term lists; nil uses DefaultTerms.
func NewKeyword(terms map[models.ViolationType][]string) *Keyword {
	if terms == nil {
		terms = DefaultTerms
	}
	k := &Keyword{terms: make(map[models.ViolationType][]string, len(terms))}
	for t, list := range terms {
		if norm := strutil.NormalizeTerms(list); len(norm) > 0 {
			k.terms[t] = norm
		}
	}
	return k
}

func (*Keyword) Name() string { return "keyword" }

func (k *Keyword) Classify(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := searchableText(in)

	var scores []Score
	for _, t := range models.AllViolationTypes {
		hits := strutil.MatchTerms(text, k.terms[t])
		if len(hits) == 0 {
			continue
		}
		evidence := make([]string, 0, len(hits))
		for _, h := range hits {
			evidence = append(evidence, "keyword:"+h)
		}
		scores = append(scores, Score{
			Type:       t,
			Confidence: min(float64(5+len(hits))/10, 0.99),
			Evidence:   evidence,
		})
	}
	return scores, nil
}

// searchableText is the payload for text items plus title and tags for all.
func searchableText(in Input) string {
	parts := []string{in.Metadata.Title}
	parts = append(parts, in.Metadata.Tags...)
	if in.Type == content.TypeText {
		parts = append(parts, string(in.Payload))
	}
	return strings.Join(parts, "\n")
}
