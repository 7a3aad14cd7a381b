package classifier

import (
	"context"
	"errors"

	"guardian/pkg/platform/circuit"
	"guardian/pkg/platform/dependency"
)

// Guarded wraps a classifier with a circuit breaker. While the circuit is
// open calls fail immediately with a circuit_open dependency error.
type Guarded struct {
	inner   Classifier
	breaker *circuit.Breaker
}

func NewGuarded(inner Classifier, breaker *circuit.Breaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Classify(ctx context.Context, in Input) ([]Score, error) {
	var scores []Score
	err := g.breaker.Do(func() error {
		var err error
		scores, err = g.inner.Classify(ctx, in)
		return err
	})
	if errors.Is(err, circuit.ErrOpen) {
		return nil, dependency.NewError(dependency.CircuitOpen, g.inner.Name(), "classifier circuit open", err)
	}
	return scores, err
}
