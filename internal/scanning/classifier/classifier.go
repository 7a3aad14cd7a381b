// Package classifier holds the pluggable content classifiers. A classifier
// scores content per violation type; the scanning service turns scores into
// violations.
package classifier

import (
	"context"

	"guardian/internal/content"
	"guardian/internal/scanning/models"
)

// Input is the content under analysis.
type Input struct {
	ContentID string
	Type      content.Type
	Payload   []byte
	Metadata  content.Metadata
}

// Score is one violation type's likelihood.
type Score struct {
	Type       models.ViolationType
	Confidence float64
	Evidence   []string
}

// Classifier is implemented by every scoring strategy. Implementations must
// be safe for concurrent use and honor ctx cancellation.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, in Input) ([]Score, error)
}

// Fixed returns the same scores for every input. It stands in for a model
// in development and tests.
type Fixed struct {
	Scores []Score
}

func (Fixed) Name() string { return "fixed" }

func (f Fixed) Classify(ctx context.Context, _ Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Score, len(f.Scores))
	copy(out, f.Scores)
	return out, nil
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, in Input) ([]Score, error)

func (Func) Name() string { return "func" }

func (f Func) Classify(ctx context.Context, in Input) ([]Score, error) {
	return f(ctx, in)
}
